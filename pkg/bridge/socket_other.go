//go:build !unix

// ABOUTME: Socket options for non-unix platforms
// ABOUTME: No extra options are applied
package bridge

import "syscall"

func controlSocket(network, address string, c syscall.RawConn) error {
	return nil
}
