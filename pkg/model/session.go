package model

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func (x SessionID) String() string {
	return string(x)
}

type SessionState string

const (
	SessionDisconnected SessionState = "Disconnected"
	SessionConnecting   SessionState = "Connecting"
	SessionConnected    SessionState = "Connected"
)

// Validate checks if the session state is valid
func (s SessionState) Validate() error {
	switch s {
	case SessionDisconnected, SessionConnecting, SessionConnected:
		return nil
	default:
		return goerr.New("invalid session state", goerr.V("state", s))
	}
}

// Live reports whether the state holds a channel or a pending handshake.
func (s SessionState) Live() bool {
	return s == SessionConnecting || s == SessionConnected
}
