package schema

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ByteOrder selects the encoding of multi-byte fields for a whole schema.
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

// Binary returns the encoding/binary implementation for o.
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (o ByteOrder) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// ParseByteOrder accepts "big"/"network"/">"/"!" and "little"/"<". Empty means big.
func ParseByteOrder(raw string) (ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "big", "big-endian", "network", ">", "!":
		return BigEndian, nil
	case "little", "little-endian", "<":
		return LittleEndian, nil
	default:
		return BigEndian, fmt.Errorf("schema: unknown byte order %q", raw)
	}
}

// FieldDef is one unfinalized field definition. Length is only read for STRING.
type FieldDef struct {
	Name    string
	Type    TypeCode
	Length  int
	Default Value
}

// Schema is the immutable, ordered field layout shared by every frame built from it.
type Schema struct {
	fields []FieldSpec
	index  map[string]int
	size   int
	order  ByteOrder
}

// Size returns the encoded record size in bytes.
func (s *Schema) Size() int { return s.size }

// Len returns the number of fields.
func (s *Schema) Len() int { return len(s.fields) }

// ByteOrder returns the byte order of multi-byte fields.
func (s *Schema) ByteOrder() ByteOrder { return s.order }

// Field returns the i-th field in declaration order.
func (s *Schema) Field(i int) FieldSpec { return s.fields[i] }

// Fields returns a copy of the field list in declaration order.
func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Lookup finds a field by name.
func (s *Schema) Lookup(name string) (FieldSpec, bool) {
	i, ok := s.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// Compatible reports whether frames of s and o share the same wire layout.
func (s *Schema) Compatible(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil || s.size != o.size || s.order != o.order || len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		a, b := s.fields[i], o.fields[i]
		if a.Name != b.Name || a.Type != b.Type || a.Width != b.Width {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	parts := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("Schema(%s, %s, %d bytes)", strings.Join(parts, ", "), s.order, s.size)
}

// Option configures a Builder.
type Option func(*Builder)

// WithByteOrder fixes the byte order of the schema being built.
func WithByteOrder(o ByteOrder) Option {
	return func(b *Builder) {
		b.order = o
	}
}

// Builder accumulates field definitions until Build computes the layout.
// Errors from chained calls are held and reported by Build.
type Builder struct {
	defs      []FieldDef
	order     ByteOrder
	finalized bool
	err       error
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{order: BigEndian}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends a fixed-width field. def may be nil, a Value, or a native Go value.
func (b *Builder) Add(name string, t TypeCode, def any) *Builder {
	v, err := ValueOf(def)
	if err != nil {
		b.fail(&BuildError{Field: name, Index: len(b.defs), Err: fmt.Errorf("%w: %v", ErrDefaultMismatch, err)})
		return b
	}
	return b.AddDef(FieldDef{Name: name, Type: t, Default: v})
}

// AddString appends a STRING(n) field.
func (b *Builder) AddString(name string, n int, def string) *Builder {
	return b.AddDef(FieldDef{Name: name, Type: TypeString, Length: n, Default: String(def)})
}

// AddDef appends a field definition as is.
func (b *Builder) AddDef(def FieldDef) *Builder {
	if b.finalized {
		b.fail(&BuildError{Field: def.Name, Index: len(b.defs), Err: ErrFinalized})
		return b
	}
	b.defs = append(b.defs, def)
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build validates the definitions, computes offsets, and returns the immutable schema.
// The builder is finalized afterwards, even when Build fails.
func (b *Builder) Build() (*Schema, error) {
	if b.finalized && b.err == nil {
		b.err = &BuildError{Index: len(b.defs), Err: ErrFinalized}
	}
	b.finalized = true
	if b.err != nil {
		log.Debug().Err(b.err).Msg("schema.Build rejected")
		return nil, b.err
	}
	if len(b.defs) == 0 {
		return nil, &BuildError{Err: ErrNoFields}
	}

	s := &Schema{
		fields: make([]FieldSpec, 0, len(b.defs)),
		index:  make(map[string]int, len(b.defs)),
		order:  b.order,
	}
	offset := 0
	for i, def := range b.defs {
		spec, err := finalizeField(def, offset)
		if err == nil {
			if _, dup := s.index[spec.Name]; dup {
				err = ErrDuplicateField
			}
		}
		if err != nil {
			buildErr := &BuildError{Field: def.Name, Index: i, Err: err}
			log.Debug().Err(buildErr).Msg("schema.Build rejected")
			return nil, buildErr
		}
		s.index[spec.Name] = len(s.fields)
		s.fields = append(s.fields, spec)
		offset += spec.Width
	}
	s.size = offset
	log.Debug().Int("fields", len(s.fields)).Int("size", s.size).Str("order", s.order.String()).Msg("schema.Build ok")
	return s, nil
}

func finalizeField(def FieldDef, offset int) (FieldSpec, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return FieldSpec{}, ErrEmptyName
	}
	if !def.Type.Valid() {
		return FieldSpec{}, fmt.Errorf("%w: %s", ErrUnknownType, def.Type)
	}
	width := def.Type.Width()
	if def.Type == TypeString {
		if def.Length <= 0 {
			return FieldSpec{}, fmt.Errorf("%w: %d", ErrInvalidLength, def.Length)
		}
		width = def.Length
	}
	spec := FieldSpec{Name: name, Type: def.Type, Width: width, Offset: offset}
	if !def.Default.IsValid() {
		spec.Default = spec.Zero()
		return spec, nil
	}
	v, err := spec.Normalize(def.Default)
	if err != nil {
		return FieldSpec{}, fmt.Errorf("%w: %v", ErrDefaultMismatch, err)
	}
	spec.Default = v
	return spec, nil
}
