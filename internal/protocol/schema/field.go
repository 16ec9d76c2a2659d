package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldSpec is one finalized field: type, fixed width, packed offset, default.
type FieldSpec struct {
	Name    string
	Type    TypeCode
	Width   int
	Offset  int
	Default Value
}

// End returns the offset one past the last byte of the field.
func (f FieldSpec) End() int {
	return f.Offset + f.Width
}

func (f FieldSpec) String() string {
	if f.Type == TypeString {
		return fmt.Sprintf("%s STRING(%d) @%d", f.Name, f.Width, f.Offset)
	}
	return fmt.Sprintf("%s %s @%d", f.Name, f.Type, f.Offset)
}

// Zero returns the zero value of the field's type in canonical form.
func (f FieldSpec) Zero() Value {
	switch f.Type.class() {
	case classBool:
		return Bool(false)
	case classUnsigned:
		return Uint(0)
	case classSigned:
		return Int(0)
	case classFloat:
		return Float(0)
	case classChar:
		return String("\x00")
	default:
		return String("")
	}
}

// Normalize checks v against the field type and returns it in the canonical variant the
// field decodes to. Integer fields take int or uint variants, float fields also take
// integers; out-of-range values are rejected, never wrapped. STRING values longer than
// the field are truncated and trailing NULs dropped, CHAR requires exactly one byte.
func (f FieldSpec) Normalize(v Value) (Value, error) {
	switch f.Type.class() {
	case classBool:
		if v.kind != KindBool {
			return Value{}, mismatch(f, v)
		}
		return v, nil

	case classUnsigned:
		hi := unsignedMax(f.Width)
		switch v.kind {
		case KindUint:
			if v.u > hi {
				return Value{}, outOfRange(f, v)
			}
			return v, nil
		case KindInt:
			if v.i < 0 || uint64(v.i) > hi {
				return Value{}, outOfRange(f, v)
			}
			return Uint(uint64(v.i)), nil
		}
		return Value{}, mismatch(f, v)

	case classSigned:
		lo, hi := signedRange(f.Width)
		switch v.kind {
		case KindInt:
			if v.i < lo || v.i > hi {
				return Value{}, outOfRange(f, v)
			}
			return v, nil
		case KindUint:
			if v.u > uint64(hi) {
				return Value{}, outOfRange(f, v)
			}
			return Int(int64(v.u)), nil
		}
		return Value{}, mismatch(f, v)

	case classFloat:
		switch v.kind {
		case KindFloat, KindInt, KindUint:
		default:
			return Value{}, mismatch(f, v)
		}
		x := v.AsFloat()
		if f.Type == TypeReal {
			if !math.IsInf(x, 0) && !math.IsNaN(x) && math.Abs(x) > math.MaxFloat32 {
				return Value{}, outOfRange(f, v)
			}
			x = float64(float32(x))
		}
		return Float(x), nil

	case classChar:
		if v.kind != KindBytes {
			return Value{}, mismatch(f, v)
		}
		if len(v.s) != 1 {
			return Value{}, fmt.Errorf("%w: field %q CHAR needs exactly one byte, got %d", ErrOutOfRange, f.Name, len(v.s))
		}
		return v, nil

	case classString:
		if v.kind != KindBytes {
			return Value{}, mismatch(f, v)
		}
		s := v.s
		if len(s) > f.Width {
			s = s[:f.Width]
		}
		return String(strings.TrimRight(s, "\x00")), nil
	}
	return Value{}, fmt.Errorf("%w: %s", ErrUnknownType, f.Type)
}

// Parse reads a textual value for f, as typed on a command line, and normalizes it.
func (f FieldSpec) Parse(raw string) (Value, error) {
	var (
		v   Value
		err error
	)
	switch f.Type.class() {
	case classBool:
		var b bool
		b, err = strconv.ParseBool(strings.TrimSpace(raw))
		v = Bool(b)
	case classUnsigned:
		var u uint64
		u, err = strconv.ParseUint(strings.TrimSpace(raw), 0, 64)
		v = Uint(u)
	case classSigned:
		var i int64
		i, err = strconv.ParseInt(strings.TrimSpace(raw), 0, 64)
		v = Int(i)
	case classFloat:
		var x float64
		x, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
		v = Float(x)
	default:
		v = String(raw)
	}
	if err != nil {
		return Value{}, fmt.Errorf("%w: field %q is %s: %v", ErrTypeMismatch, f.Name, f.Type, err)
	}
	return f.Normalize(v)
}

func mismatch(f FieldSpec, v Value) error {
	return fmt.Errorf("%w: field %q is %s, got %s", ErrTypeMismatch, f.Name, f.Type, v.kind)
}

func outOfRange(f FieldSpec, v Value) error {
	return fmt.Errorf("%w: field %q is %s, got %s", ErrOutOfRange, f.Name, f.Type, v)
}

func unsignedMax(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(width)) - 1
}

func signedRange(width int) (int64, int64) {
	if width >= 8 {
		return math.MinInt64, math.MaxInt64
	}
	bits := 8*uint(width) - 1
	return -(1 << bits), 1<<bits - 1
}
