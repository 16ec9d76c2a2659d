package frame

import (
	"errors"
	"fmt"

	"github.com/danmuck/plcbridge/internal/protocol/schema"
)

var (
	ErrUnknownField = errors.New("frame: unknown field")
	ErrFrameSize    = errors.New("frame: size mismatch")
	ErrNilSchema    = errors.New("frame: nil schema")
	ErrShortWrite   = errors.New("frame: short write")

	ErrTypeMismatch = schema.ErrTypeMismatch
	ErrOutOfRange   = schema.ErrOutOfRange
)

// FieldError reports a rejected get or set on one named field.
type FieldError struct {
	Field string
	Op    string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("frame: %s %q: %v", e.Op, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// SizeError reports a buffer whose length is not the schema size.
type SizeError struct {
	Got  int
	Want int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("frame: got %d bytes, want %d", e.Got, e.Want)
}

func (e *SizeError) Unwrap() error {
	return ErrFrameSize
}
