package session

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
)

// Channel carries frames to the remote shell. Delivery, retries and
// backpressure are the channel's concern; Send must not block indefinitely.
type Channel interface {
	Send(typ protocol.Type, payload protocol.Payload) error
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(typ protocol.Type, payload protocol.Payload) error

func (f ChannelFunc) Send(typ protocol.Type, payload protocol.Payload) error { return f(typ, payload) }

// Clipboard is the host clipboard utility.
type Clipboard interface {
	// ReadText returns the clipboard text, or "" when empty.
	ReadText(ctx context.Context) (string, error)
	// Copy stores text. Silent suppresses any user-facing notification.
	Copy(text string, silent bool) error
}

// Bell plays an audible or visual bell.
type Bell interface {
	Ring()
}

// Observer receives controller telemetry. monitoring.Metrics satisfies it.
type Observer interface {
	FrameSent(frameType string)
	FrameDropped(frameType, reason string)
	SendFailed(frameType string, err error)
	ResourceFailed(resource, op string, err error)
	SessionOpened()
	SessionClosed()
}

type nopObserver struct{}

func (nopObserver) FrameSent(string)                     {}
func (nopObserver) FrameDropped(string, string)          {}
func (nopObserver) SendFailed(string, error)             {}
func (nopObserver) ResourceFailed(string, string, error) {}
func (nopObserver) SessionOpened()                       {}
func (nopObserver) SessionClosed()                       {}

type nopClipboard struct{}

func (nopClipboard) ReadText(context.Context) (string, error) { return "", nil }
func (nopClipboard) Copy(string, bool) error                  { return nil }

type nopBell struct{}

func (nopBell) Ring() {}
