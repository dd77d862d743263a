package probe

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint is the host and TCP port a probe session targets. The zero value
// is not usable; build one with NewEndpoint or ParseEndpoint.
type Endpoint struct {
	host string
	port uint16
}

// NewEndpoint validates host and port. Host may be an IPv4/IPv6 literal or a name.
func NewEndpoint(host string, port uint16) (Endpoint, error) {
	host = strings.TrimSpace(host)
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return Endpoint{}, errors.New("endpoint host is empty")
	}
	if port == 0 {
		return Endpoint{}, errors.New("endpoint port must be non-zero")
	}
	return Endpoint{host: host, port: port}, nil
}

// ParseEndpoint parses "host:port" (IPv6 hosts in brackets).
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint '%s': %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid port in endpoint '%s': %w", s, err)
	}
	return NewEndpoint(host, uint16(port))
}

// Host returns the host without IPv6 brackets.
func (e Endpoint) Host() string { return e.host }

// Port returns the TCP port.
func (e Endpoint) Port() uint16 { return e.port }

// String returns the dialable "host:port" form.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.host, strconv.Itoa(int(e.port)))
}
