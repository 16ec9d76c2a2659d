package frame

import (
	"fmt"
	"strings"

	"github.com/danmuck/plcbridge/internal/protocol/schema"
)

// DataFrame is one live instance of a schema's values. The schema is shared and
// read-only; the buffer is owned by this frame alone and always holds the encoded
// record, so serializing is a copy.
type DataFrame struct {
	schema *schema.Schema
	buf    []byte
}

// New returns a frame of s initialized with every field's default. It panics
// with ErrNilSchema when s is nil; Decode and ReadFrame return that error instead.
func New(s *schema.Schema) *DataFrame {
	if s == nil {
		panic(ErrNilSchema)
	}
	f := &DataFrame{schema: s, buf: make([]byte, s.Size())}
	f.Reset()
	return f
}

// Decode deserializes b into a new frame. b must be exactly s.Size() bytes.
func Decode(s *schema.Schema, b []byte) (*DataFrame, error) {
	if s == nil {
		return nil, ErrNilSchema
	}
	if len(b) != s.Size() {
		return nil, &SizeError{Got: len(b), Want: s.Size()}
	}
	buf := make([]byte, len(b))
	copy(buf, b)
	return &DataFrame{schema: s, buf: buf}, nil
}

func (f *DataFrame) Schema() *schema.Schema { return f.schema }

// Size returns the encoded size, always equal to the schema size.
func (f *DataFrame) Size() int { return len(f.buf) }

// Bytes serializes the frame. The returned slice is a copy.
func (f *DataFrame) Bytes() []byte {
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	return out
}

func (f *DataFrame) MarshalBinary() ([]byte, error) {
	return f.Bytes(), nil
}

// UnmarshalBinary replaces the frame contents. On a size mismatch the frame is untouched.
func (f *DataFrame) UnmarshalBinary(b []byte) error {
	if len(b) != len(f.buf) {
		return &SizeError{Got: len(b), Want: len(f.buf)}
	}
	copy(f.buf, b)
	return nil
}

// Clone returns a deep copy sharing only the schema.
func (f *DataFrame) Clone() *DataFrame {
	return &DataFrame{schema: f.schema, buf: f.Bytes()}
}

// Reset restores every field to its schema default.
func (f *DataFrame) Reset() {
	order := f.schema.ByteOrder().Binary()
	for i := 0; i < f.schema.Len(); i++ {
		spec := f.schema.Field(i)
		encodeField(order, spec, f.buf[spec.Offset:spec.End()], spec.Default)
	}
}

// Get decodes one field.
func (f *DataFrame) Get(name string) (schema.Value, error) {
	spec, ok := f.schema.Lookup(name)
	if !ok {
		return schema.Value{}, &FieldError{Field: name, Op: "get", Err: ErrUnknownField}
	}
	return decodeField(f.schema.ByteOrder().Binary(), spec, f.buf[spec.Offset:spec.End()]), nil
}

// Set converts a native Go value and stores it; see SetValue.
func (f *DataFrame) Set(name string, v any) error {
	val, err := schema.ValueOf(v)
	if err != nil {
		return &FieldError{Field: name, Op: "set", Err: err}
	}
	return f.SetValue(name, val)
}

// SetValue type-checks v against the field and encodes it in place. Out-of-range
// numbers are rejected, STRING values are truncated to the field width.
func (f *DataFrame) SetValue(name string, v schema.Value) error {
	spec, ok := f.schema.Lookup(name)
	if !ok {
		return &FieldError{Field: name, Op: "set", Err: ErrUnknownField}
	}
	norm, err := spec.Normalize(v)
	if err != nil {
		return &FieldError{Field: name, Op: "set", Err: err}
	}
	encodeField(f.schema.ByteOrder().Binary(), spec, f.buf[spec.Offset:spec.End()], norm)
	return nil
}

func (f *DataFrame) Bool(name string) (bool, error) {
	v, err := f.typed(name, schema.KindBool)
	return v.AsBool(), err
}

func (f *DataFrame) Int(name string) (int64, error) {
	v, err := f.typed(name, schema.KindInt)
	return v.AsInt(), err
}

func (f *DataFrame) Uint(name string) (uint64, error) {
	v, err := f.typed(name, schema.KindUint)
	return v.AsUint(), err
}

func (f *DataFrame) Float(name string) (float64, error) {
	v, err := f.typed(name, schema.KindFloat)
	return v.AsFloat(), err
}

// Text returns a CHAR or STRING field.
func (f *DataFrame) Text(name string) (string, error) {
	v, err := f.typed(name, schema.KindBytes)
	return v.Text(), err
}

func (f *DataFrame) typed(name string, kind schema.Kind) (schema.Value, error) {
	v, err := f.Get(name)
	if err != nil {
		return schema.Value{}, err
	}
	if v.Kind() != kind {
		return schema.Value{}, &FieldError{
			Field: name,
			Op:    "get",
			Err:   fmt.Errorf("%w: stored %s, asked %s", ErrTypeMismatch, v.Kind(), kind),
		}
	}
	return v, nil
}

// Values decodes every field into a map of native Go values.
func (f *DataFrame) Values() map[string]any {
	order := f.schema.ByteOrder().Binary()
	out := make(map[string]any, f.schema.Len())
	for i := 0; i < f.schema.Len(); i++ {
		spec := f.schema.Field(i)
		out[spec.Name] = decodeField(order, spec, f.buf[spec.Offset:spec.End()]).Interface()
	}
	return out
}

// String renders the frame as "DataFrame(name=value, ...)" in field order.
func (f *DataFrame) String() string {
	order := f.schema.ByteOrder().Binary()
	parts := make([]string, 0, f.schema.Len())
	for i := 0; i < f.schema.Len(); i++ {
		spec := f.schema.Field(i)
		v := decodeField(order, spec, f.buf[spec.Offset:spec.End()])
		parts = append(parts, spec.Name+"="+v.String())
	}
	return "DataFrame(" + strings.Join(parts, ", ") + ")"
}
