package wschan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
)

// peer is a websocket server that records what it reads and lets the
// test push raw messages back.
type peer struct {
	mu       sync.Mutex
	received []string
	conns    chan *websocket.Conn
}

func startPeer(t *testing.T) (*peer, string) {
	t.Helper()
	p := &peer{conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			p.mu.Lock()
			p.received = append(p.received, string(data))
			p.mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)
	return p, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (p *peer) messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.received...)
}

type inbox struct {
	mu     sync.Mutex
	frames []protocol.Payload
}

func (b *inbox) Receive(p protocol.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, p)
}

func (b *inbox) all() []protocol.Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Payload(nil), b.frames...)
}

func TestClient_SendEncodes(t *testing.T) {
	p, url := startPeer(t)
	c, err := Dial(context.Background(), url, &inbox{}, Options{}, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(protocol.TypeInput, protocol.Input("s1", "ls -la | wc\r")))
	require.NoError(t, c.Send(protocol.TypeResize, protocol.Resize("s1", 120, 40)))
	require.NoError(t, c.Send(protocol.TypeClose, protocol.Close("s1")))

	want := []string{"i|s1|ls -la | wc\r", "rs|s1|120|40", "cl|s1"}
	require.Eventually(t, func() bool { return len(p.messages()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, p.messages())
}

func TestClient_SendRejectsMismatchedType(t *testing.T) {
	_, url := startPeer(t)
	c, err := Dial(context.Background(), url, &inbox{}, Options{}, nil)
	require.NoError(t, err)
	defer c.Close()

	err = c.Send(protocol.TypeResize, protocol.Input("s1", "x"))
	assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
}

func TestClient_ReceivesFrames(t *testing.T) {
	p, url := startPeer(t)
	box := &inbox{}
	c, err := Dial(context.Background(), url, box, Options{Codec: protocol.JSONCodec{}}, nil)
	require.NoError(t, err)
	defer c.Close()

	conn := <-p.conns
	enc := protocol.JSONCodec{}
	for _, f := range []protocol.Payload{protocol.Connected("s1", true), protocol.Output("s1", "hi")} {
		data, err := enc.Encode(f)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	data, err := enc.Encode(protocol.Close("s1"))
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	require.Eventually(t, func() bool { return len(box.all()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []protocol.Payload{
		protocol.Connected("s1", true),
		protocol.Output("s1", "hi"),
		protocol.Close("s1"),
	}, box.all())
}

func TestClient_RateLimited(t *testing.T) {
	_, url := startPeer(t)
	c, err := Dial(context.Background(), url, &inbox{},
		Options{FramesPerSecond: 1, Burst: 1, WriteTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(protocol.TypeInput, protocol.Input("s1", "a")))
	assert.Error(t, c.Send(protocol.TypeInput, protocol.Input("s1", "b")))
}

func TestClient_PeerHangup(t *testing.T) {
	p, url := startPeer(t)
	c, err := Dial(context.Background(), url, &inbox{}, Options{}, nil)
	require.NoError(t, err)

	conn := <-p.conns
	require.NoError(t, conn.Close())

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not notice hangup")
	}
	assert.Error(t, c.Err())
	assert.ErrorIs(t, c.Send(protocol.TypeInput, protocol.Input("s1", "x")), transport.ErrClosed)
	assert.NoError(t, c.Close())
}

func TestClient_Close(t *testing.T) {
	_, url := startPeer(t)
	c, err := Dial(context.Background(), url, &inbox{}, Options{}, nil)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	<-c.Done()
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Send(protocol.TypeInput, protocol.Input("s1", "x")), transport.ErrClosed)
}

func TestDial_Refused(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/nowhere", &inbox{}, Options{}, nil)
	assert.Error(t, err)
}
