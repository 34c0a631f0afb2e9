package ws

import "net/http"

// Event type strings exchanged with the transport.
const (
	EventConnect    = "websocket.connect"
	EventAccept     = "websocket.accept"
	EventReceive    = "websocket.receive"
	EventSend       = "websocket.send"
	EventClose      = "websocket.close"
	EventDisconnect = "websocket.disconnect"
)

// Standard close codes.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseProtocolError   = 1002
	CloseAbnormalClosure = 1006
)

// Event is one message crossing the transport boundary, in either
// direction. Which fields are meaningful depends on Type: Text or Bytes
// for receive/send events, Code and Reason for close/disconnect events,
// Subprotocol and Headers for accept events.
type Event struct {
	Type        string
	Text        string
	Bytes       []byte
	Code        int
	Reason      string
	Subprotocol string
	Headers     http.Header
}

// Payload returns the event body as bytes regardless of whether the
// transport delivered it as text or binary.
func (e Event) Payload() []byte {
	if e.Bytes != nil {
		return e.Bytes
	}
	return []byte(e.Text)
}
