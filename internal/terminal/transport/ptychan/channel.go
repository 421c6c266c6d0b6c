// Package ptychan connects a session to a local shell running behind a
// pseudo-terminal.
package ptychan

import (
	"fmt"
	"sync"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
)

// Channel is a session channel backed by a local shell. INPUT is written
// to the PTY, RESIZE sets its window size and CLOSE kills the shell.
// Output, the initial CONNECTED and a CLOSE on exit go to the receiver.
type Channel struct {
	mgr       *shell.Manager
	sessionID string
	recv      transport.Receiver
	shellID   id.ShellID

	mu     sync.Mutex
	closed bool
}

// Open starts a shell and acknowledges the session as writable.
func Open(mgr *shell.Manager, sessionID string, spec shell.Spec, recv transport.Receiver) (*Channel, error) {
	ch := &Channel{mgr: mgr, sessionID: sessionID, recv: recv}
	info, err := mgr.Start(spec, shell.SinkFuncs{
		OnOutput: func(_ id.ShellID, data []byte) {
			recv.Receive(protocol.Output(sessionID, string(data)))
		},
		OnExit: func(id.ShellID, error) {
			ch.mu.Lock()
			ch.closed = true
			ch.mu.Unlock()
			recv.Receive(protocol.Close(sessionID))
		},
	})
	if err != nil {
		return nil, err
	}
	ch.shellID = info.ID
	recv.Receive(protocol.Connected(sessionID, true))
	return ch, nil
}

// ShellID returns the shell behind the channel.
func (c *Channel) ShellID() id.ShellID { return c.shellID }

func (c *Channel) Send(typ protocol.Type, payload protocol.Payload) error {
	if payload.Session() != c.sessionID {
		return fmt.Errorf("ptychan: frame for session %q on channel %q", payload.Session(), c.sessionID)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return transport.ErrClosed
	}
	if typ == protocol.TypeClose {
		c.closed = true
	}
	c.mu.Unlock()

	switch v := payload.(type) {
	case protocol.InputPayload:
		return c.mgr.Write(c.shellID, []byte(v.Command))
	case protocol.ResizePayload:
		return c.mgr.Resize(c.shellID, v.Cols, v.Rows)
	case protocol.ClosePayload:
		return c.mgr.Kill(c.shellID)
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownType, typ)
	}
}
