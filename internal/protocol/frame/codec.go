package frame

import (
	"encoding/binary"
	"math"
	"strings"

	"github.com/danmuck/plcbridge/internal/protocol/schema"
)

// encodeField writes an already normalized value into dst, which spans exactly the field.
func encodeField(order binary.ByteOrder, f schema.FieldSpec, dst []byte, v schema.Value) {
	switch {
	case f.Type == schema.TypeBool:
		if v.AsBool() {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case f.Type == schema.TypeChar:
		dst[0] = v.Text()[0]
	case f.Type == schema.TypeString:
		n := copy(dst, v.Text())
		clear(dst[n:])
	case f.Type == schema.TypeReal:
		order.PutUint32(dst, math.Float32bits(float32(v.AsFloat())))
	case f.Type == schema.TypeLReal:
		order.PutUint64(dst, math.Float64bits(v.AsFloat()))
	default:
		putUint(order, dst, v.AsUint())
	}
}

// putUint writes the low len(dst) bytes of u; two's complement makes this valid for
// signed fields as well.
func putUint(order binary.ByteOrder, dst []byte, u uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(u)
	case 2:
		order.PutUint16(dst, uint16(u))
	case 4:
		order.PutUint32(dst, uint32(u))
	case 8:
		order.PutUint64(dst, u)
	}
}

func getUint(order binary.ByteOrder, src []byte) uint64 {
	switch len(src) {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(order.Uint16(src))
	case 4:
		return uint64(order.Uint32(src))
	case 8:
		return order.Uint64(src)
	}
	return 0
}

func decodeField(order binary.ByteOrder, f schema.FieldSpec, src []byte) schema.Value {
	switch {
	case f.Type == schema.TypeBool:
		return schema.Bool(src[0] != 0)
	case f.Type == schema.TypeChar:
		return schema.String(string(src[:1]))
	case f.Type == schema.TypeString:
		return schema.String(strings.TrimRight(string(src), "\x00"))
	case f.Type == schema.TypeReal:
		return schema.Float(float64(math.Float32frombits(order.Uint32(src))))
	case f.Type == schema.TypeLReal:
		return schema.Float(math.Float64frombits(order.Uint64(src)))
	case f.Type.Signed():
		u := getUint(order, src)
		switch len(src) {
		case 1:
			return schema.Int(int64(int8(u)))
		case 2:
			return schema.Int(int64(int16(u)))
		case 4:
			return schema.Int(int64(int32(u)))
		default:
			return schema.Int(int64(u))
		}
	default:
		return schema.Uint(getUint(order, src))
	}
}
