package frame

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/danmuck/plcbridge/internal/protocol/schema"
	"github.com/danmuck/plcbridge/internal/testutil/testlog"
)

func allTypesSchema(t *testing.T, order schema.ByteOrder) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder(schema.WithByteOrder(order)).
		Add("bool", schema.TypeBool, nil).
		Add("byte", schema.TypeByte, nil).
		Add("usint", schema.TypeUSInt, nil).
		Add("sint", schema.TypeSInt, nil).
		Add("word", schema.TypeWord, nil).
		Add("uint", schema.TypeUInt, nil).
		Add("int", schema.TypeInt, nil).
		Add("dword", schema.TypeDWord, nil).
		Add("udint", schema.TypeUDInt, nil).
		Add("dint", schema.TypeDInt, nil).
		Add("lword", schema.TypeLWord, nil).
		Add("ulint", schema.TypeULInt, nil).
		Add("lint", schema.TypeLInt, nil).
		Add("real", schema.TypeReal, nil).
		Add("lreal", schema.TypeLReal, nil).
		Add("char", schema.TypeChar, nil).
		AddString("str", 8, "").
		Build()
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return s
}

var allTypesValues = map[string]any{
	"bool":  true,
	"byte":  uint8(0xAB),
	"usint": 255,
	"sint":  -128,
	"word":  uint16(0xBEEF),
	"uint":  65535,
	"int":   -32768,
	"dword": uint32(0xDEADBEEF),
	"udint": 4294967295,
	"dint":  math.MinInt32,
	"lword": uint64(math.MaxUint64),
	"ulint": uint64(1) << 63,
	"lint":  int64(math.MinInt64),
	"real":  float32(-3.25),
	"lreal": math.Pi,
	"char":  "Z",
	"str":   "pump-01",
}

func TestRoundTripAllTypes(t *testing.T) {
	testlog.Start(t)
	for _, order := range []schema.ByteOrder{schema.BigEndian, schema.LittleEndian} {
		s := allTypesSchema(t, order)
		f := New(s)
		for name, v := range allTypesValues {
			if err := f.Set(name, v); err != nil {
				t.Fatalf("set %s=%v: %v", name, v, err)
			}
		}
		wire := f.Bytes()
		if len(wire) != s.Size() {
			t.Fatalf("serialized %d bytes, want %d", len(wire), s.Size())
		}
		out, err := Decode(s, wire)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		for name := range allTypesValues {
			want, _ := f.Get(name)
			got, err := out.Get(name)
			if err != nil {
				t.Fatalf("get %s: %v", name, err)
			}
			if !got.Equal(want) {
				t.Fatalf("%s (%s): got=%v want=%v", name, order, got, want)
			}
		}
		if !bytes.Equal(out.Bytes(), wire) {
			t.Fatalf("re-serialize mismatch (%s)", order)
		}
	}
}

func TestTypedGetters(t *testing.T) {
	testlog.Start(t)
	f := New(allTypesSchema(t, schema.BigEndian))
	for name, v := range allTypesValues {
		if err := f.Set(name, v); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}
	if v, err := f.Int("sint"); err != nil || v != -128 {
		t.Fatalf("sint: %v %v", v, err)
	}
	if v, err := f.Uint("dword"); err != nil || v != 0xDEADBEEF {
		t.Fatalf("dword: %v %v", v, err)
	}
	if v, err := f.Float("real"); err != nil || v != -3.25 {
		t.Fatalf("real: %v %v", v, err)
	}
	if v, err := f.Bool("bool"); err != nil || !v {
		t.Fatalf("bool: %v %v", v, err)
	}
	if v, err := f.Text("str"); err != nil || v != "pump-01" {
		t.Fatalf("str: %q %v", v, err)
	}
	if _, err := f.Int("dword"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch reading unsigned as signed, got %v", err)
	}
}

func TestBigEndianLayoutBytes(t *testing.T) {
	testlog.Start(t)
	s, err := schema.NewBuilder().
		Add("a", schema.TypeDWord, nil).
		Add("b", schema.TypeReal, nil).
		Add("c", schema.TypeBool, nil).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f := New(s)
	if err := f.Set("a", 1500); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := f.Set("b", 25.5); err != nil {
		t.Fatalf("set b: %v", err)
	}
	if err := f.Set("c", true); err != nil {
		t.Fatalf("set c: %v", err)
	}
	want := []byte{0x00, 0x00, 0x05, 0xDC, 0x41, 0xCC, 0x00, 0x00, 0x01}
	if got := f.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("wire=% x want=% x", got, want)
	}

	le, err := schema.NewBuilder(schema.WithByteOrder(schema.LittleEndian)).
		Add("a", schema.TypeDWord, 1500).
		Build()
	if err != nil {
		t.Fatalf("build le: %v", err)
	}
	if got := New(le).Bytes(); !bytes.Equal(got, []byte{0xDC, 0x05, 0x00, 0x00}) {
		t.Fatalf("little endian wire=% x", got)
	}
}

func TestStringTruncationAndPadding(t *testing.T) {
	testlog.Start(t)
	s, err := schema.NewBuilder().AddString("s", 5, "").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f := New(s)
	if err := f.Set("s", "hello world"); err != nil {
		t.Fatalf("set long: %v", err)
	}
	if got := f.Bytes(); !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("long wire=%q", got)
	}
	if v, _ := f.Text("s"); v != "hello" {
		t.Fatalf("long value=%q", v)
	}

	if err := f.Set("s", "hi"); err != nil {
		t.Fatalf("set short: %v", err)
	}
	if got := f.Bytes(); !bytes.Equal(got, []byte{'h', 'i', 0, 0, 0}) {
		t.Fatalf("short wire=%q", got)
	}
	if v, _ := f.Text("s"); v != "hi" {
		t.Fatalf("short value=%q", v)
	}
}

func TestCharPolicy(t *testing.T) {
	testlog.Start(t)
	s, err := schema.NewBuilder().Add("c", schema.TypeChar, "A").Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f := New(s)
	if v, _ := f.Text("c"); v != "A" {
		t.Fatalf("default char=%q", v)
	}
	for _, bad := range []string{"", "AB", "é"} {
		if err := f.Set("c", bad); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("char %q: expected ErrOutOfRange, got %v", bad, err)
		}
	}
	if err := f.Set("c", []byte{0x7F}); err != nil {
		t.Fatalf("set byte char: %v", err)
	}
	if got := f.Bytes(); got[0] != 0x7F {
		t.Fatalf("char wire=% x", got)
	}
}

func TestSetRejectsOutOfRangeWithoutMutation(t *testing.T) {
	testlog.Start(t)
	s, err := schema.NewBuilder().
		Add("w", schema.TypeWord, 7).
		Add("i", schema.TypeInt, nil).
		Add("r", schema.TypeReal, nil).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f := New(s)
	before := f.Bytes()

	cases := []struct {
		field string
		value any
	}{
		{"w", 65536},
		{"w", -1},
		{"i", 32768},
		{"i", -32769},
		{"r", math.MaxFloat64},
	}
	for _, tc := range cases {
		err := f.Set(tc.field, tc.value)
		if !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("%s=%v: expected ErrOutOfRange, got %v", tc.field, tc.value, err)
		}
		var fe *FieldError
		if !errors.As(err, &fe) || fe.Field != tc.field || fe.Op != "set" {
			t.Fatalf("%s=%v: expected *FieldError, got %#v", tc.field, tc.value, err)
		}
	}
	if !bytes.Equal(f.Bytes(), before) {
		t.Fatalf("rejected sets mutated the frame")
	}
	if v, _ := f.Uint("w"); v != 7 {
		t.Fatalf("w=%d want=7", v)
	}
}

func TestSetTypeMismatchAndUnknownField(t *testing.T) {
	testlog.Start(t)
	f := New(allTypesSchema(t, schema.BigEndian))
	if err := f.Set("bool", 1); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if err := f.Set("dword", "1"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	if err := f.Set("word", 1.5); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for float into WORD, got %v", err)
	}
	if err := f.Set("missing", 1); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if _, err := f.Get("missing"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	if err := f.Set("word", struct{}{}); !errors.Is(err, schema.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestDecodeSizeMismatch(t *testing.T) {
	testlog.Start(t)
	s := allTypesSchema(t, schema.BigEndian)
	for _, n := range []int{0, s.Size() - 1, s.Size() + 1} {
		out, err := Decode(s, make([]byte, n))
		if out != nil {
			t.Fatalf("len=%d: returned a frame on size mismatch", n)
		}
		var se *SizeError
		if !errors.As(err, &se) || !errors.Is(err, ErrFrameSize) {
			t.Fatalf("len=%d: expected SizeError, got %v", n, err)
		}
		if se.Got != n || se.Want != s.Size() {
			t.Fatalf("unexpected size error: %+v", se)
		}
	}

	f := New(s)
	before := f.Bytes()
	if err := f.UnmarshalBinary(make([]byte, s.Size()-1)); !errors.Is(err, ErrFrameSize) {
		t.Fatalf("expected ErrFrameSize, got %v", err)
	}
	if !bytes.Equal(f.Bytes(), before) {
		t.Fatalf("failed unmarshal mutated the frame")
	}
}

func TestCloneIsDeep(t *testing.T) {
	testlog.Start(t)
	s, err := schema.NewBuilder().Add("speed", schema.TypeDWord, 10).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	template := New(s)
	c := template.Clone()
	if c.Schema() != template.Schema() {
		t.Fatalf("clone must share the schema")
	}
	if err := c.Set("speed", 99); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := template.Uint("speed"); v != 10 {
		t.Fatalf("template mutated through clone: %d", v)
	}
	c.Reset()
	if v, _ := c.Uint("speed"); v != 10 {
		t.Fatalf("reset did not restore default: %d", v)
	}
}

func TestValuesAndString(t *testing.T) {
	testlog.Start(t)
	s, err := schema.NewBuilder().
		Add("motor_speed", schema.TypeDWord, 1500).
		Add("enabled", schema.TypeBool, true).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	f := New(s)
	vals := f.Values()
	if vals["motor_speed"] != uint64(1500) || vals["enabled"] != true {
		t.Fatalf("unexpected values: %#v", vals)
	}
	if got := f.String(); got != "DataFrame(motor_speed=1500, enabled=true)" {
		t.Fatalf("unexpected string: %s", got)
	}
}

type chunkWriter struct {
	buf   bytes.Buffer
	chunk int
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) > w.chunk {
		p = p[:w.chunk]
	}
	return w.buf.Write(p)
}

func TestReadWriteFrameStream(t *testing.T) {
	testlog.Start(t)
	s := allTypesSchema(t, schema.BigEndian)
	a := New(s)
	b := New(s)
	if err := b.Set("lint", -5); err != nil {
		t.Fatalf("set: %v", err)
	}

	w := &chunkWriter{chunk: 3}
	if err := WriteFrame(w, a); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := WriteFrame(w, b); err != nil {
		t.Fatalf("write b: %v", err)
	}
	if w.buf.Len() != 2*s.Size() {
		t.Fatalf("stream len=%d want=%d", w.buf.Len(), 2*s.Size())
	}

	r := bytes.NewReader(w.buf.Bytes())
	gotA, err := ReadFrame(r, s)
	if err != nil {
		t.Fatalf("read a: %v", err)
	}
	gotB, err := ReadFrame(r, s)
	if err != nil {
		t.Fatalf("read b: %v", err)
	}
	if !bytes.Equal(gotA.Bytes(), a.Bytes()) || !bytes.Equal(gotB.Bytes(), b.Bytes()) {
		t.Fatalf("stream records mismatch")
	}
	if _, err := ReadFrame(r, s); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	testlog.Start(t)
	s := allTypesSchema(t, schema.BigEndian)
	wire := New(s).Bytes()
	got, err := ReadFrame(bytes.NewReader(wire[:len(wire)-1]), s)
	if got != nil {
		t.Fatalf("returned a partial frame")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestNilSchemaHandling(t *testing.T) {
	testlog.Start(t)
	if _, err := Decode(nil, nil); !errors.Is(err, ErrNilSchema) {
		t.Fatalf("decode: expected ErrNilSchema, got %v", err)
	}
	if _, err := ReadFrame(bytes.NewReader(nil), nil); !errors.Is(err, ErrNilSchema) {
		t.Fatalf("read: expected ErrNilSchema, got %v", err)
	}

	r := func() (r any) {
		defer func() { r = recover() }()
		New(nil)
		return nil
	}()
	if err, ok := r.(error); !ok || !errors.Is(err, ErrNilSchema) {
		t.Fatalf("expected New(nil) to panic with ErrNilSchema, got %v", r)
	}
}
