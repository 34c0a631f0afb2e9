package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// gorillaTransport adapts a gorilla *websocket.Conn to the Transport
// interface. The HTTP upgrade has already accepted the connection, so
// the adapter synthesizes the connect event on the first Receive and
// treats accept events as no-ops.
type gorillaTransport struct {
	conn *websocket.Conn

	mu        sync.Mutex
	handshook bool
}

// NewGorillaTransport wraps an already-upgraded gorilla connection.
func NewGorillaTransport(conn *websocket.Conn) Transport {
	return &gorillaTransport{conn: conn}
}

func (t *gorillaTransport) Receive(ctx context.Context) (Event, error) {
	t.mu.Lock()
	if !t.handshook {
		t.handshook = true
		t.mu.Unlock()
		return Event{Type: EventConnect}, nil
	}
	t.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	} else {
		_ = t.conn.SetReadDeadline(time.Time{})
	}

	msgType, data, err := t.conn.ReadMessage()
	if err != nil {
		code := CloseAbnormalClosure
		reason := ""
		if ce, ok := err.(*websocket.CloseError); ok {
			code = ce.Code
			reason = ce.Text
		}
		return Event{Type: EventDisconnect, Code: code, Reason: reason}, nil
	}

	switch msgType {
	case websocket.TextMessage:
		return Event{Type: EventReceive, Text: string(data)}, nil
	case websocket.BinaryMessage:
		return Event{Type: EventReceive, Bytes: data}, nil
	default:
		// Control frames are handled by gorilla internally; anything
		// else ends the connection.
		return Event{Type: EventDisconnect, Code: CloseProtocolError}, nil
	}
}

func (t *gorillaTransport) Send(ctx context.Context, ev Event) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else {
		_ = t.conn.SetWriteDeadline(time.Time{})
	}

	switch ev.Type {
	case EventAccept:
		// The upgrade response already accepted the connection.
		return nil
	case EventClose:
		code := ev.Code
		if code == 0 {
			code = CloseNormal
		}
		msg := websocket.FormatCloseMessage(code, ev.Reason)
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
		return t.conn.Close()
	default:
		if ev.Bytes != nil {
			return t.conn.WriteMessage(websocket.BinaryMessage, ev.Bytes)
		}
		return t.conn.WriteMessage(websocket.TextMessage, []byte(ev.Text))
	}
}

var defaultUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Upgrade switches an HTTP request to the WebSocket protocol and returns
// the resulting connection. A nil upgrader uses package defaults.
func Upgrade(u *websocket.Upgrader, w http.ResponseWriter, r *http.Request) (*Conn, error) {
	if u == nil {
		u = &defaultUpgrader
	}
	raw, err := u.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(NewGorillaTransport(raw)), nil
}
