// Package transport holds what the channel implementations share: the
// receiving side of a session and its binding to a controller.
package transport

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
)

// ErrClosed is returned by Send after the channel is closed.
var ErrClosed = errors.New("transport: channel closed")

// Receiver handles frames arriving from the remote: OUTPUT, CONNECTED and
// CLOSE.
type Receiver interface {
	Receive(p protocol.Payload)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(p protocol.Payload)

func (f ReceiverFunc) Receive(p protocol.Payload) { f(p) }

// Terminal is the part of a session controller driven by remote frames.
type Terminal interface {
	SessionID() string
	Write(data []byte)
	Connect()
	SetCanWrite(canWrite bool)
}

// Dispatcher routes remote frames to a controller. OUTPUT is displayed,
// CONNECTED connects and applies write permission, and CLOSE is handed to
// OnClose. Frames for other sessions are ignored.
type Dispatcher struct {
	term    Terminal
	onClose func()
	logger  *logging.Logger

	once sync.Once
}

// NewDispatcher binds term. onClose runs at most once, on the first CLOSE.
func NewDispatcher(term Terminal, onClose func(), logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{term: term, onClose: onClose, logger: logger}
}

func (d *Dispatcher) Receive(p protocol.Payload) {
	if p.Session() != d.term.SessionID() {
		d.logger.Debug("Dropping frame for another session",
			zap.String("frame_type", p.FrameType().String()),
			zap.String("frame_session", p.Session()))
		return
	}

	switch v := p.(type) {
	case protocol.OutputPayload:
		d.term.Write([]byte(v.Body))
	case protocol.ConnectedPayload:
		d.term.Connect()
		d.term.SetCanWrite(v.CanWrite)
	case protocol.ClosePayload:
		d.once.Do(func() {
			if d.onClose != nil {
				d.onClose()
			}
		})
	default:
		d.logger.Warn("Unexpected frame from remote", zap.String("frame_type", p.FrameType().String()))
	}
}
