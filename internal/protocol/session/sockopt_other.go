//go:build !unix

package session

import "syscall"

func reuseAddr(_, _ string, _ syscall.RawConn) error { return nil }
