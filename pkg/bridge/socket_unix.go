//go:build unix

// ABOUTME: Socket options for unix platforms
// ABOUTME: Sets SO_REUSEADDR so a restarted bridge can rebind its port at once
package bridge

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func controlSocket(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
