package schema

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType     = errors.New("schema: unknown type")
	ErrInvalidLength   = errors.New("schema: invalid string length")
	ErrDuplicateField  = errors.New("schema: duplicate field name")
	ErrEmptyName       = errors.New("schema: empty field name")
	ErrNoFields        = errors.New("schema: no fields")
	ErrFinalized       = errors.New("schema: builder already finalized")
	ErrDefaultMismatch = errors.New("schema: default does not fit field type")
	ErrUnsupported     = errors.New("schema: unsupported value")
	ErrTypeMismatch    = errors.New("schema: value type mismatch")
	ErrOutOfRange      = errors.New("schema: value out of range")
)

// BuildError reports an invalid field definition. It is fatal for the schema being built.
type BuildError struct {
	Field string
	Index int
	Err   error
}

func (e *BuildError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema: field[%d]: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("schema: field[%d] %q: %v", e.Index, e.Field, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
