package server

import (
	"net"

	"golang.org/x/net/websocket"
)

// wsTransport adapts a *websocket.Conn to controller.Transport.
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(v interface{}) error {
	return websocket.JSON.Send(t.conn, v)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
