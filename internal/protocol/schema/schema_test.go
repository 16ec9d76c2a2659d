package schema

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/danmuck/plcbridge/internal/testutil/testlog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestBuildOffsetsDeterministic(t *testing.T) {
	testlog.Start(t)
	for _, order := range []ByteOrder{BigEndian, LittleEndian} {
		s, err := NewBuilder(WithByteOrder(order)).
			Add("a", TypeDWord, nil).
			Add("b", TypeReal, nil).
			Add("c", TypeBool, nil).
			Build()
		if err != nil {
			t.Fatalf("build (%s): %v", order, err)
		}
		want := map[string]int{"a": 0, "b": 4, "c": 8}
		for name, off := range want {
			f, ok := s.Lookup(name)
			if !ok {
				t.Fatalf("missing field %q", name)
			}
			if f.Offset != off {
				t.Fatalf("field %q offset=%d want=%d", name, f.Offset, off)
			}
		}
		if s.Size() != 9 {
			t.Fatalf("size=%d want=9", s.Size())
		}
		if s.ByteOrder() != order {
			t.Fatalf("order=%s want=%s", s.ByteOrder(), order)
		}
	}
}

func TestBuildDuplicateNameRejected(t *testing.T) {
	testlog.Start(t)
	_, err := NewBuilder().
		Add("x", TypeInt, nil).
		Add("x", TypeBool, nil).
		Build()
	if !errors.Is(err, ErrDuplicateField) {
		t.Fatalf("expected ErrDuplicateField, got %v", err)
	}
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BuildError, got %T", err)
	}
	if be.Field != "x" || be.Index != 1 {
		t.Fatalf("unexpected build error: %+v", be)
	}
}

func TestBuildUnknownTypeRejected(t *testing.T) {
	testlog.Start(t)
	_, err := NewBuilder().Add("x", TypeCode(200), nil).Build()
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestBuildRejectsBadDefinitions(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		b    *Builder
		want error
	}{
		{"empty", NewBuilder(), ErrNoFields},
		{"blank name", NewBuilder().Add("  ", TypeBool, nil), ErrEmptyName},
		{"zero string", NewBuilder().AddString("s", 0, ""), ErrInvalidLength},
		{"default type", NewBuilder().Add("b", TypeBool, 1), ErrDefaultMismatch},
		{"default range", NewBuilder().Add("w", TypeWord, 70000), ErrDefaultMismatch},
		{"default unsupported", NewBuilder().Add("w", TypeWord, struct{}{}), ErrDefaultMismatch},
	}
	for _, tc := range cases {
		if _, err := tc.b.Build(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestBuilderFinalized(t *testing.T) {
	testlog.Start(t)
	b := NewBuilder().Add("a", TypeByte, nil)
	s, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	b.Add("late", TypeByte, nil)
	if _, err := b.Build(); !errors.Is(err, ErrFinalized) {
		t.Fatalf("expected ErrFinalized, got %v", err)
	}
	if s.Len() != 1 || s.Size() != 1 {
		t.Fatalf("finalized schema mutated: len=%d size=%d", s.Len(), s.Size())
	}
}

func TestBuildDefaultsCanonical(t *testing.T) {
	testlog.Start(t)
	s, err := NewBuilder().
		Add("speed", TypeDWord, 1500).
		Add("temp", TypeReal, 25.5).
		Add("on", TypeBool, true).
		Add("c", TypeChar, nil).
		AddString("tag", 4, "pump-01").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	speed, _ := s.Lookup("speed")
	if speed.Default.Kind() != KindUint || speed.Default.AsUint() != 1500 {
		t.Fatalf("unexpected speed default: %v (%s)", speed.Default, speed.Default.Kind())
	}
	c, _ := s.Lookup("c")
	if c.Default.Text() != "\x00" {
		t.Fatalf("unexpected char default: %q", c.Default.Text())
	}
	tag, _ := s.Lookup("tag")
	if tag.Default.Text() != "pump" || tag.Width != 4 || tag.Offset != 10 {
		t.Fatalf("unexpected tag field: %+v", tag)
	}
	if s.Size() != 14 {
		t.Fatalf("size=%d want=14", s.Size())
	}
}

func TestParseType(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		in   string
		code TypeCode
		n    int
	}{
		{"DWORD", TypeDWord, 0},
		{"dword", TypeDWord, 0},
		{"UDINT", TypeUDInt, 0},
		{"LREAL", TypeLReal, 0},
		{"STRING(10)", TypeString, 10},
		{"string[ 3 ]", TypeString, 3},
		{"?", TypeBool, 0},
		{"B", TypeByte, 0},
		{"b", TypeSInt, 0},
		{"H", TypeWord, 0},
		{"h", TypeInt, 0},
		{"I", TypeDWord, 0},
		{"q", TypeLInt, 0},
		{"f", TypeReal, 0},
		{"d", TypeLReal, 0},
		{"c", TypeChar, 0},
		{"10s", TypeString, 10},
	}
	for _, tc := range cases {
		code, n, err := ParseType(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if code != tc.code || n != tc.n {
			t.Fatalf("parse %q: got=%s/%d want=%s/%d", tc.in, code, n, tc.code, tc.n)
		}
	}

	for _, bad := range []string{"", "FLOAT", "x", "STRING", "STRING(0)", "STRING(abc)", "0s"} {
		if _, _, err := ParseType(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if _, _, err := ParseType("STRING(-1)"); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestNormalizeRanges(t *testing.T) {
	testlog.Start(t)
	s, err := NewBuilder().
		Add("sint", TypeSInt, nil).
		Add("usint", TypeUSInt, nil).
		Add("lword", TypeLWord, nil).
		Add("real", TypeReal, nil).
		Add("lreal", TypeLReal, nil).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	field := func(name string) FieldSpec {
		f, _ := s.Lookup(name)
		return f
	}

	ok := []struct {
		field string
		in    Value
	}{
		{"sint", Int(-128)},
		{"sint", Int(127)},
		{"sint", Uint(127)},
		{"usint", Int(255)},
		{"lword", Uint(math.MaxUint64)},
		{"real", Float(math.Inf(1))},
		{"real", Int(3)},
		{"lreal", Float(math.MaxFloat64)},
	}
	for _, tc := range ok {
		if _, err := field(tc.field).Normalize(tc.in); err != nil {
			t.Fatalf("%s=%v: %v", tc.field, tc.in, err)
		}
	}

	bad := []struct {
		field string
		in    Value
		want  error
	}{
		{"sint", Int(-129), ErrOutOfRange},
		{"sint", Int(128), ErrOutOfRange},
		{"sint", Uint(200), ErrOutOfRange},
		{"usint", Int(-1), ErrOutOfRange},
		{"usint", Uint(256), ErrOutOfRange},
		{"lword", Int(-1), ErrOutOfRange},
		{"real", Float(math.MaxFloat64), ErrOutOfRange},
		{"real", Bool(true), ErrTypeMismatch},
		{"usint", Float(1), ErrTypeMismatch},
		{"sint", String("1"), ErrTypeMismatch},
	}
	for _, tc := range bad {
		if _, err := field(tc.field).Normalize(tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s=%v: expected %v, got %v", tc.field, tc.in, tc.want, err)
		}
	}

	got, err := field("real").Normalize(Float(0.1))
	if err != nil {
		t.Fatalf("normalize real: %v", err)
	}
	if got.AsFloat() != float64(float32(0.1)) {
		t.Fatalf("real not rounded to float32: %v", got.AsFloat())
	}
}

func TestCompatible(t *testing.T) {
	testlog.Start(t)
	build := func(order ByteOrder, second TypeCode) *Schema {
		s, err := NewBuilder(WithByteOrder(order)).Add("a", TypeInt, nil).Add("b", second, nil).Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		return s
	}
	a := build(BigEndian, TypeWord)
	if !a.Compatible(build(BigEndian, TypeWord)) {
		t.Fatalf("expected identical layouts to be compatible")
	}
	if a.Compatible(build(LittleEndian, TypeWord)) {
		t.Fatalf("byte order must break compatibility")
	}
	if a.Compatible(build(BigEndian, TypeInt)) {
		t.Fatalf("type change must break compatibility")
	}
}

func TestParseByteOrder(t *testing.T) {
	testlog.Start(t)
	for _, in := range []string{"", "big", "Network", ">", "!"} {
		if o, err := ParseByteOrder(in); err != nil || o != BigEndian {
			t.Fatalf("%q: got=%s err=%v", in, o, err)
		}
	}
	for _, in := range []string{"little", "<", "LITTLE-ENDIAN"} {
		if o, err := ParseByteOrder(in); err != nil || o != LittleEndian {
			t.Fatalf("%q: got=%s err=%v", in, o, err)
		}
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFieldSpecParse(t *testing.T) {
	testlog.Start(t)
	s, err := NewBuilder().
		Add("on", TypeBool, nil).
		Add("speed", TypeDWord, nil).
		Add("delta", TypeSInt, nil).
		Add("temp", TypeReal, nil).
		AddString("tag", 4, "").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	parse := func(name, raw string) (Value, error) {
		spec, ok := s.Lookup(name)
		if !ok {
			t.Fatalf("missing field %s", name)
		}
		return spec.Parse(raw)
	}

	if v, err := parse("on", "true"); err != nil || !v.AsBool() {
		t.Fatalf("bool: v=%v err=%v", v, err)
	}
	if v, err := parse("speed", "0x5DC"); err != nil || v.AsUint() != 1500 {
		t.Fatalf("dword: v=%v err=%v", v, err)
	}
	if v, err := parse("delta", "-7"); err != nil || v.AsInt() != -7 {
		t.Fatalf("sint: v=%v err=%v", v, err)
	}
	if v, err := parse("temp", "25.5"); err != nil || v.AsFloat() != 25.5 {
		t.Fatalf("real: v=%v err=%v", v, err)
	}
	if v, err := parse("tag", "pump-12"); err != nil || v.Text() != "pump" {
		t.Fatalf("string: v=%v err=%v", v, err)
	}
	if _, err := parse("delta", "200"); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := parse("speed", "fast"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestBuildLeavesErrorReportingToCaller(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.InfoLevel)
	t.Cleanup(func() { log.Logger = prev })

	_, err := NewBuilder().Add("a", TypeInt, 0).Add("a", TypeInt, 0).Build()
	if !errors.Is(err, ErrDuplicateField) {
		t.Fatalf("expected ErrDuplicateField, got %v", err)
	}
	_, err = NewBuilder().Add("b", TypeCode(200), 0).Build()
	if err == nil {
		t.Fatalf("expected unknown type error")
	}
	if strings.Contains(buf.String(), "schema.Build rejected") {
		t.Fatalf("rejected build logged above debug: %s", buf.String())
	}
}
