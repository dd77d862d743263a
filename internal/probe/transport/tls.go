package transport

import (
	"context"
	"crypto/x509"
	"fmt"
	"net"
	"strings"

	utls "github.com/refraction-networking/utls"
)

// TLSOptions configure the uTLS carrier.
type TLSOptions struct {
	ServerName  string
	Insecure    bool
	Fingerprint utls.ClientHelloID
	RootCAs     *x509.CertPool // nil means the system pool
}

// ParseFingerprint maps a config name to a uTLS ClientHello.
func ParseFingerprint(name string) (utls.ClientHelloID, error) {
	switch strings.ToLower(name) {
	case "", "chrome":
		return utls.HelloChrome_Auto, nil
	case "firefox":
		return utls.HelloFirefox_Auto, nil
	case "safari":
		return utls.HelloSafari_Auto, nil
	case "ios":
		return utls.HelloIOS_Auto, nil
	case "golang":
		return utls.HelloGolang, nil
	case "randomized":
		return utls.HelloRandomized, nil
	default:
		return utls.ClientHelloID{}, fmt.Errorf("unknown tls fingerprint '%s'", name)
	}
}

// TLSDialer wraps the TCP carrier in a uTLS client.
type TLSDialer struct {
	base *TCPDialer
	opts TLSOptions
}

func NewTLSDialer(base *TCPDialer, opts TLSOptions) *TLSDialer {
	return &TLSDialer{base: base, opts: opts}
}

func (d *TLSDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.base.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	serverName := d.opts.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			conn.Close()
			return nil, err
		}
		serverName = host
	}
	config := &utls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: d.opts.Insecure,
		RootCAs:            d.opts.RootCAs,
		NextProtos:         []string{"http/1.1"},
	}

	uconn := utls.UClient(conn, config, d.opts.Fingerprint)
	if err := uconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake with %s failed: %w", address, err)
	}
	return uconn, nil
}
