// Package events provides a reconnecting publish/subscribe session
// over a duplex message transport, used to deliver renderer playback
// state changes.
package events

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
)

// ErrNormalClosure is wrapped by Conn implementations when the peer
// closed the connection cleanly. A normal closure is terminal: the
// channel does not reconnect.
var ErrNormalClosure = errors.New("transport closed normally")

// Conn is a connected duplex message transport. ReadMessage blocks
// until a message arrives or the connection dies.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	Close() error
}

// Dialer opens a Conn to the event bus.
type Dialer func(ctx context.Context, url string) (Conn, error)

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil, ErrNormalClosure
		}
		return nil, err
	}
	return payload, nil
}

func (c *wsConn) WriteMessage(payload []byte) error {
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WebsocketDialer is the default Dialer, connecting over a websocket.
func WebsocketDialer(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}
