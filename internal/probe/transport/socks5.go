package transport

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

// SOCKS5Dialer reaches the endpoint through a SOCKS5 proxy.
type SOCKS5Dialer struct {
	base      *TCPDialer
	proxyAddr string
	auth      *proxy.Auth
}

func NewSOCKS5Dialer(base *TCPDialer, proxyAddr string) *SOCKS5Dialer {
	return &SOCKS5Dialer{base: base, proxyAddr: proxyAddr}
}

// WithAuth sets username/password authentication for the proxy.
func (d *SOCKS5Dialer) WithAuth(user, password string) *SOCKS5Dialer {
	d.auth = &proxy.Auth{User: user, Password: password}
	return d
}

func (d *SOCKS5Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	dialer, err := proxy.SOCKS5("tcp", d.proxyAddr, d.auth, &d.base.Dialer)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
	}
	conn, err := contextDialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("SOCKS5 dial via %s failed: %w", d.proxyAddr, err)
	}
	return conn, nil
}
