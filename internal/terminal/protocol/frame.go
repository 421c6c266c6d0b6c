package protocol

import "errors"

// Type tags a frame. The values are the wire codes used by both codecs.
type Type string

const (
	// Client → remote
	TypeInput  Type = "i"
	TypeResize Type = "rs"
	TypeClose  Type = "cl"

	// Remote → client
	TypeOutput    Type = "o"
	TypeConnected Type = "co"
)

var (
	ErrUnknownType    = errors.New("protocol: unknown frame type")
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	ErrInvalidField   = errors.New("protocol: field cannot be encoded")
)

// String returns the upper-case frame name used in logs and metrics.
func (t Type) String() string {
	switch t {
	case TypeInput:
		return "INPUT"
	case TypeResize:
		return "RESIZE"
	case TypeClose:
		return "CLOSE"
	case TypeOutput:
		return "OUTPUT"
	case TypeConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN(" + string(t) + ")"
	}
}

// Valid reports whether t is a known frame type.
func (t Type) Valid() bool {
	switch t {
	case TypeInput, TypeResize, TypeClose, TypeOutput, TypeConnected:
		return true
	}
	return false
}

// Payload is the body of a frame. Each payload knows its own type.
type Payload interface {
	FrameType() Type
	Session() string
}

// InputPayload carries keystrokes typed into the local surface.
type InputPayload struct {
	SessionID string `json:"sessionId"`
	Command   string `json:"command"`
}

// ResizePayload reports the local viewport size.
type ResizePayload struct {
	SessionID string `json:"sessionId"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

// ClosePayload asks the remote side to tear the session down.
type ClosePayload struct {
	SessionID string `json:"sessionId"`
}

// OutputPayload carries remote shell output for display.
type OutputPayload struct {
	SessionID string `json:"sessionId"`
	Body      string `json:"body"`
}

// ConnectedPayload acknowledges an established session.
type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
	CanWrite  bool   `json:"canWrite"`
}

func (InputPayload) FrameType() Type     { return TypeInput }
func (ResizePayload) FrameType() Type    { return TypeResize }
func (ClosePayload) FrameType() Type     { return TypeClose }
func (OutputPayload) FrameType() Type    { return TypeOutput }
func (ConnectedPayload) FrameType() Type { return TypeConnected }

func (p InputPayload) Session() string     { return p.SessionID }
func (p ResizePayload) Session() string    { return p.SessionID }
func (p ClosePayload) Session() string     { return p.SessionID }
func (p OutputPayload) Session() string    { return p.SessionID }
func (p ConnectedPayload) Session() string { return p.SessionID }

// Input frames a keystroke payload.
func Input(sessionID, command string) InputPayload {
	return InputPayload{SessionID: sessionID, Command: command}
}

// Resize frames a viewport size report.
func Resize(sessionID string, cols, rows int) ResizePayload {
	return ResizePayload{SessionID: sessionID, Cols: cols, Rows: rows}
}

// Close frames a session termination request.
func Close(sessionID string) ClosePayload {
	return ClosePayload{SessionID: sessionID}
}

// Output frames remote output.
func Output(sessionID, body string) OutputPayload {
	return OutputPayload{SessionID: sessionID, Body: body}
}

// Connected frames a session acknowledgement.
func Connected(sessionID string, canWrite bool) ConnectedPayload {
	return ConnectedPayload{SessionID: sessionID, CanWrite: canWrite}
}
