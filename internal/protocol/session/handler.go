package session

import (
	"context"

	"github.com/danmuck/plcbridge/internal/protocol/frame"
	"github.com/danmuck/plcbridge/internal/protocol/schema"
)

// Handler turns one received record into the reply for that cycle. A nil reply
// with a nil error skips the write. An error drops the peer.
type Handler interface {
	Handle(ctx context.Context, req *frame.DataFrame) (*frame.DataFrame, error)
}

type HandlerFunc func(ctx context.Context, req *frame.DataFrame) (*frame.DataFrame, error)

func (fn HandlerFunc) Handle(ctx context.Context, req *frame.DataFrame) (*frame.DataFrame, error) {
	return fn(ctx, req)
}

// EchoHandler replies with the received record unchanged.
func EchoHandler() Handler {
	return HandlerFunc(func(_ context.Context, req *frame.DataFrame) (*frame.DataFrame, error) {
		return req, nil
	})
}

// ProcessHandler replies with integer fields incremented by one, wrapping inside
// the field width, and float fields doubled. Other fields are echoed.
func ProcessHandler() Handler {
	return HandlerFunc(func(_ context.Context, req *frame.DataFrame) (*frame.DataFrame, error) {
		resp := req.Clone()
		for _, spec := range req.Schema().Fields() {
			v, err := req.Get(spec.Name)
			if err != nil {
				return nil, err
			}
			var next schema.Value
			switch {
			case spec.Type.Signed():
				next = schema.Int(wrapSigned(v.AsInt()+1, spec.Width))
			case spec.Type.Unsigned():
				next = schema.Uint(wrapUnsigned(v.AsUint()+1, spec.Width))
			case spec.Type == schema.TypeReal:
				next = schema.Float(float64(float32(v.AsFloat() * 2)))
			case spec.Type.Float():
				next = schema.Float(v.AsFloat() * 2)
			default:
				continue
			}
			if err := resp.SetValue(spec.Name, next); err != nil {
				return nil, err
			}
		}
		return resp, nil
	})
}

func wrapUnsigned(u uint64, width int) uint64 {
	if width >= 8 {
		return u
	}
	return u & (1<<(8*uint(width)) - 1)
}

// wrapSigned truncates to width bytes and sign-extends.
func wrapSigned(i int64, width int) int64 {
	if width >= 8 {
		return i
	}
	shift := 64 - 8*uint(width)
	return i << shift >> shift
}
