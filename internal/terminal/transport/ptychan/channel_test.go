package ptychan

import (
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/shell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
)

type inbox struct {
	mu     sync.Mutex
	frames []protocol.Payload
	closed chan struct{}
}

func newInbox() *inbox { return &inbox{closed: make(chan struct{})} }

func (b *inbox) Receive(p protocol.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, p)
	if p.FrameType() == protocol.TypeClose {
		close(b.closed)
	}
}

func (b *inbox) output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sb strings.Builder
	for _, f := range b.frames {
		if o, ok := f.(protocol.OutputPayload); ok {
			sb.WriteString(o.Body)
		}
	}
	return sb.String()
}

func (b *inbox) first() protocol.Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range b.frames {
		if f.FrameType() == protocol.TypeConnected {
			return f
		}
	}
	return nil
}

func TestChannel_RoundTrip(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	box := newInbox()
	ch, err := Open(shell.NewManager(nil), "s1", shell.Spec{Shell: "/bin/sh"}, box)
	require.NoError(t, err)
	assert.Equal(t, protocol.Connected("s1", true), box.first())

	require.NoError(t, ch.Send(protocol.TypeResize, protocol.Resize("s1", 90, 20)))
	require.NoError(t, ch.Send(protocol.TypeInput, protocol.Input("s1", "echo pty-$((1+1))\n")))
	assert.Error(t, ch.Send(protocol.TypeInput, protocol.Input("other", "x")))

	require.Eventually(t, func() bool {
		return strings.Contains(box.output(), "pty-2")
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, ch.Send(protocol.TypeClose, protocol.Close("s1")))
	assert.ErrorIs(t, ch.Send(protocol.TypeInput, protocol.Input("s1", "x")), transport.ErrClosed)

	select {
	case <-box.closed:
	case <-time.After(10 * time.Second):
		t.Fatal("no CLOSE after kill")
	}
}
