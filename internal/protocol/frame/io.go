package frame

import (
	"io"

	"github.com/danmuck/plcbridge/internal/protocol/schema"
)

// ReadFrame reads exactly one fixed-size record of s from r. The record width is the
// only frame boundary. Short reads are retried by io.ReadFull; a stream that ends
// mid-record yields io.ErrUnexpectedEOF and no frame.
func ReadFrame(r io.Reader, s *schema.Schema) (*DataFrame, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	buf := make([]byte, s.Size())
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return &DataFrame{schema: s, buf: buf}, nil
}

// WriteFrame writes the full record of f to w, looping on partial writes.
func WriteFrame(w io.Writer, f *DataFrame) error {
	buf := f.Bytes()
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}
