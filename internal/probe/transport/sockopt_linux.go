//go:build linux

package transport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func applySocketOptions(fd uintptr, opts SocketOptions) error {
	if opts.Mark != 0 {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_MARK, opts.Mark); err != nil {
			return fmt.Errorf("failed to set SO_MARK: %w", err)
		}
	}
	if opts.UserTimeout > 0 {
		ms := int(opts.UserTimeout.Milliseconds())
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, ms); err != nil {
			return fmt.Errorf("failed to set TCP_USER_TIMEOUT: %w", err)
		}
	}
	return nil
}
