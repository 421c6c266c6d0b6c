package sshchan

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
)

// echoServer is an SSH server whose shell echoes input back prefixed with
// "echo:" and exits on "exit".
type echoServer struct {
	addr    string
	hostKey ssh.PublicKey
	resizes chan [2]uint32
	ptys    chan string
}

func startEchoServer(t *testing.T) *echoServer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(_ ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv := &echoServer{
		addr:    ln.Addr().String(),
		hostKey: signer.PublicKey(),
		resizes: make(chan [2]uint32, 4),
		ptys:    make(chan string, 1),
	}
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(nc, cfg)
		}
	}()
	return srv
}

func (s *echoServer) serve(nc net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		_ = nc.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.handleRequests(requests)
		go s.echo(ch)
	}
}

func (s *echoServer) handleRequests(requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "pty-req":
			var pty struct {
				Term             string
				Cols, Rows, W, H uint32
				Modes            string
			}
			if ssh.Unmarshal(req.Payload, &pty) == nil {
				s.ptys <- pty.Term + ":" + strconv.Itoa(int(pty.Cols)) + "x" + strconv.Itoa(int(pty.Rows))
			}
			_ = req.Reply(true, nil)
		case "shell":
			_ = req.Reply(true, nil)
		case "window-change":
			var win struct{ Cols, Rows, W, H uint32 }
			if ssh.Unmarshal(req.Payload, &win) == nil {
				s.resizes <- [2]uint32{win.Cols, win.Rows}
			}
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *echoServer) echo(ch ssh.Channel) {
	buf := make([]byte, 1024)
	for {
		n, err := ch.Read(buf)
		if err != nil {
			return
		}
		in := string(buf[:n])
		if strings.Contains(in, "exit") {
			_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
			_ = ch.Close()
			return
		}
		_, _ = ch.Write([]byte("echo:" + in))
	}
}

func (s *echoServer) config() Config {
	host, port, _ := net.SplitHostPort(s.addr)
	p, _ := strconv.Atoi(port)
	return Config{User: "tester", Host: host, Port: p, Password: "secret", Timeout: 5 * time.Second}
}

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

func TestChannel_RoundTrip(t *testing.T) {
	srv := startEchoServer(t)
	box := newInbox()

	ch, err := Dial(context.Background(), srv.config(), "s1", 100, 30, box, nil)
	require.NoError(t, err)
	assert.Equal(t, "xterm-256color:100x30", <-srv.ptys)

	require.NoError(t, ch.Send(protocol.TypeInput, protocol.Input("s1", "hello")))
	require.Eventually(t, func() bool {
		return strings.Contains(box.output(), "echo:hello")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, ch.Send(protocol.TypeResize, protocol.Resize("s1", 120, 40)))
	select {
	case got := <-srv.resizes:
		assert.Equal(t, [2]uint32{120, 40}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no window-change")
	}

	assert.Error(t, ch.Send(protocol.TypeInput, protocol.Input("other", "x")))

	require.NoError(t, ch.Send(protocol.TypeInput, protocol.Input("s1", "exit")))
	select {
	case <-box.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("no CLOSE after remote exit")
	}
	<-ch.Done()
	assert.ErrorIs(t, ch.Send(protocol.TypeInput, protocol.Input("s1", "x")), transport.ErrClosed)

	box.mu.Lock()
	first := box.frames[0]
	box.mu.Unlock()
	assert.Equal(t, protocol.Connected("s1", true), first)
}

func TestChannel_LocalClose(t *testing.T) {
	srv := startEchoServer(t)
	box := newInbox()

	ch, err := Dial(context.Background(), srv.config(), "s1", 80, 24, box, nil)
	require.NoError(t, err)

	require.NoError(t, ch.Send(protocol.TypeClose, protocol.Close("s1")))
	select {
	case <-ch.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	assert.NoError(t, ch.Close())
}

func TestDial_WrongPassword(t *testing.T) {
	srv := startEchoServer(t)
	cfg := srv.config()
	cfg.Password = "wrong"

	_, err := Dial(context.Background(), cfg, "s1", 80, 24, newInbox(), nil)
	assert.ErrorContains(t, err, "handshake")
}

func TestDial_StrictHostKey(t *testing.T) {
	srv := startEchoServer(t)
	dir := t.TempDir()

	known := filepath.Join(dir, "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(srv.addr)}, srv.hostKey)
	require.NoError(t, os.WriteFile(known, []byte(line+"\n"), 0o600))

	cfg := srv.config()
	cfg.StrictHostKey = true
	cfg.KnownHosts = known
	ch, err := Dial(context.Background(), cfg, "s1", 80, 24, newInbox(), nil)
	require.NoError(t, err)
	require.NoError(t, ch.Close())

	other := filepath.Join(dir, "other_hosts")
	require.NoError(t, os.WriteFile(other, nil, 0o600))
	cfg.KnownHosts = other
	_, err = Dial(context.Background(), cfg, "s1", 80, 24, newInbox(), nil)
	assert.Error(t, err)
}

func TestAuthMethods(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	methods, err := AuthMethods(&Config{Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, methods, 1)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	methods, err = AuthMethods(&Config{KeyPath: keyPath, Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, methods, 2)

	_, err = AuthMethods(&Config{KeyPath: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	_, err = AuthMethods(&Config{UseAgent: true})
	assert.ErrorContains(t, err, "SSH_AUTH_SOCK")
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{Host: "example.com"}).withDefaults()
	assert.Equal(t, 22, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "xterm-256color", cfg.Term)
	assert.Equal(t, "example.com:22", cfg.Address())
}
