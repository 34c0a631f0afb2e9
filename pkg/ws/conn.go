package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// State is the lifecycle position of a connection.
type State int

const (
	// StateInit is the state before the handshake has been observed.
	StateInit State = iota
	// StateConnect means the handshake event has arrived.
	StateConnect
	// StateReceive means at least one data event has arrived.
	StateReceive
	// StateDisconnect is terminal.
	StateDisconnect
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateConnect:
		return "connect"
	case StateReceive:
		return "receive"
	case StateDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Transport carries events between a Conn and the underlying socket.
// Implementations translate their wire protocol into Events and back;
// they never see connection state.
type Transport interface {
	Receive(ctx context.Context) (Event, error)
	Send(ctx context.Context, ev Event) error
}

// Conn is a WebSocket connection with state tracking. The zero value is
// not usable; construct with NewConn.
type Conn struct {
	transport Transport
	state     State
	closeCode int
}

// NewConn wraps a Transport in a connection starting in StateInit.
func NewConn(t Transport) *Conn {
	return &Conn{transport: t, closeCode: CloseAbnormalClosure}
}

// State returns the current lifecycle state.
func (c *Conn) State() State { return c.state }

// AcceptOption customizes the accept event emitted by Accept.
type AcceptOption func(*Event)

// WithSubprotocol sets the negotiated subprotocol on the accept event.
func WithSubprotocol(proto string) AcceptOption {
	return func(ev *Event) { ev.Subprotocol = proto }
}

// WithAcceptHeaders adds response headers to the accept event.
func WithAcceptHeaders(h http.Header) AcceptOption {
	return func(ev *Event) { ev.Headers = h }
}

// Accept completes the opening handshake: it performs one receive, which
// is expected to observe the connect event, then sends the accept event.
// Accept does nothing when called after the connection has left StateInit.
func (c *Conn) Accept(ctx context.Context, opts ...AcceptOption) error {
	if c.state != StateInit {
		return nil
	}
	if _, err := c.receive(ctx); err != nil {
		return err
	}
	ev := Event{Type: EventAccept}
	for _, opt := range opts {
		opt(&ev)
	}
	return c.send(ctx, ev)
}

// receive pulls the next event from the transport and advances the state
// machine. Once disconnected it fails immediately without touching the
// transport.
func (c *Conn) receive(ctx context.Context) (Event, error) {
	if c.state == StateDisconnect {
		return Event{}, &DisconnectError{Code: c.closeCode}
	}

	ev, err := c.transport.Receive(ctx)
	if err != nil {
		c.state = StateDisconnect
		return Event{}, err
	}

	switch ev.Type {
	case EventConnect:
		c.state = StateConnect
	case EventReceive:
		c.state = StateReceive
	default:
		c.state = StateDisconnect
		if ev.Code != 0 {
			c.closeCode = ev.Code
		}
		return ev, &DisconnectError{Code: c.closeCode}
	}
	return ev, nil
}

func (c *Conn) send(ctx context.Context, ev Event) error {
	if c.state == StateDisconnect {
		return &DisconnectError{Code: c.closeCode}
	}
	return c.transport.Send(ctx, ev)
}

// receiveData returns the next data event, accepting the connection first
// if the handshake has not been completed yet.
func (c *Conn) receiveData(ctx context.Context) (Event, error) {
	if c.state == StateInit {
		if err := c.Accept(ctx); err != nil {
			return Event{}, err
		}
	}
	return c.receive(ctx)
}

// ReceiveText returns the next inbound message as text.
func (c *Conn) ReceiveText(ctx context.Context) (string, error) {
	ev, err := c.receiveData(ctx)
	if err != nil {
		return "", err
	}
	if ev.Text != "" || ev.Bytes == nil {
		return ev.Text, nil
	}
	return string(ev.Bytes), nil
}

// ReceiveBytes returns the next inbound message as bytes.
func (c *Conn) ReceiveBytes(ctx context.Context) ([]byte, error) {
	ev, err := c.receiveData(ctx)
	if err != nil {
		return nil, err
	}
	return ev.Payload(), nil
}

// ReceiveJSON decodes the next inbound message into v.
func (c *Conn) ReceiveJSON(ctx context.Context, v any) error {
	data, err := c.ReceiveBytes(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// SendText sends a text message, accepting the connection first if the
// handshake has not been completed yet.
func (c *Conn) SendText(ctx context.Context, text string) error {
	if c.state == StateInit {
		if err := c.Accept(ctx); err != nil {
			return err
		}
	}
	return c.send(ctx, Event{Type: EventSend, Text: text})
}

// SendBytes sends a binary message.
func (c *Conn) SendBytes(ctx context.Context, data []byte) error {
	if c.state == StateInit {
		if err := c.Accept(ctx); err != nil {
			return err
		}
	}
	return c.send(ctx, Event{Type: EventSend, Bytes: data})
}

// SendJSON encodes v and sends it as a text message.
func (c *Conn) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendText(ctx, string(data))
}

// Close sends a close event with the given code and reason and moves the
// connection to the disconnect state. Closing an already-disconnected
// connection is a no-op.
func (c *Conn) Close(ctx context.Context, code int, reason string) error {
	if c.state == StateDisconnect {
		return nil
	}
	err := c.send(ctx, Event{Type: EventClose, Code: code, Reason: reason})
	c.state = StateDisconnect
	c.closeCode = code
	return err
}
