//go:build !linux

package transport

func applySocketOptions(fd uintptr, opts SocketOptions) error {
	return nil
}
