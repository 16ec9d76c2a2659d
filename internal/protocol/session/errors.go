package session

import (
	"errors"
	"fmt"
)

var (
	ErrAddressRequired     = errors.New("session: address required")
	ErrTemplateRequired    = errors.New("session: template frame required")
	ErrHandlerRequired     = errors.New("session: handler required")
	ErrNotConnected        = errors.New("session: not connected")
	ErrConnecting          = errors.New("session: connect already in progress")
	ErrClosed              = errors.New("session: closed")
	ErrConnectionExhausted = errors.New("session: connection attempts exhausted")
	ErrNoData              = errors.New("session: no data")
	ErrSchemaMismatch      = errors.New("session: frame schema does not match session schema")
	ErrNotListening        = errors.New("session: server not listening")
	ErrAlreadyListening    = errors.New("session: server already listening")
)

// ConnectError reports a failed dial.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("session: connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// BindError reports a listener that could not be opened.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("session: bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// IOError reports a mid-session read or write failure. The connection is gone
// once an IOError is returned.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("session: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
