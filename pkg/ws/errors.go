package ws

import (
	"errors"
	"fmt"
)

// DisconnectError reports that the peer has disconnected, either because
// a disconnect event arrived or because an operation was attempted after
// the connection already reached the disconnect state.
type DisconnectError struct {
	// Code is the WebSocket close code from the disconnect event, or
	// CloseAbnormalClosure when none was delivered.
	Code int
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("ws: connection disconnected (code %d)", e.Code)
}

// IsDisconnect reports whether err is, or wraps, a DisconnectError.
func IsDisconnect(err error) bool {
	var de *DisconnectError
	return errors.As(err, &de)
}
