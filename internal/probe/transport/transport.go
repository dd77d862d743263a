package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"echoprobe/internal/shared/types"
)

// ContextDialer is the method set every carrier in this package implements.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// New builds the dialer selected by conf.Type. ioTimeout feeds the TCP
// user timeout socket option on platforms that support it.
func New(conf types.TransportConf, ioTimeout time.Duration) (ContextDialer, error) {
	base := NewTCPDialer(SocketOptions{
		Mark:        conf.SocketMark,
		UserTimeout: ioTimeout,
	})

	switch strings.ToLower(conf.Type) {
	case "tcp", "":
		return base, nil
	case "ws":
		return NewWSDialer(base, conf.WSPath), nil
	case "mux":
		return NewMuxDialer(base, nil), nil
	case "tls":
		hello, err := ParseFingerprint(conf.TLSFingerprint)
		if err != nil {
			return nil, err
		}
		return NewTLSDialer(base, TLSOptions{
			ServerName:  conf.TLSServerName,
			Insecure:    conf.TLSInsecure,
			Fingerprint: hello,
		}), nil
	case "socks5":
		if conf.Socks5Address == "" {
			return nil, fmt.Errorf("socks5 transport requires a proxy address")
		}
		d := NewSOCKS5Dialer(base, conf.Socks5Address)
		if conf.Socks5Username != "" {
			d = d.WithAuth(conf.Socks5Username, conf.Socks5Password)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported transport type: '%s'", conf.Type)
	}
}
