package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"echoprobe/internal/shared"
)

// WSDialer carries the echo over websocket binary messages.
type WSDialer struct {
	base             *TCPDialer
	path             string
	HandshakeTimeout time.Duration
}

func NewWSDialer(base *TCPDialer, path string) *WSDialer {
	if path == "" {
		path = "/"
	}
	return &WSDialer{base: base, path: path, HandshakeTimeout: 15 * time.Second}
}

func (d *WSDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	u := url.URL{Scheme: "ws", Host: address, Path: d.path}
	dialer := websocket.Dialer{
		NetDialContext:   d.base.DialContext,
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   4 * 1024,
		WriteBufferSize:  4 * 1024,
	}

	wsConn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s failed (%s): %w", u.String(), resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s failed: %w", u.String(), err)
	}
	return shared.NewWebSocketConnAdapter(wsConn), nil
}
