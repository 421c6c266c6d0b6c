// Package sshchan connects a session to a remote shell over SSH.
package sshchan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
)

const readBufferSize = 32 * 1024

// Channel is a session channel over an SSH shell. INPUT goes to the remote
// stdin, RESIZE becomes a window-change request and CLOSE ends the SSH
// session. Remote output, CONNECTED once the shell starts and CLOSE when it
// ends go to the receiver.
type Channel struct {
	sessionID string
	recv      transport.Receiver
	logger    *logging.Logger

	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser

	mu     sync.Mutex
	closed bool
	once   sync.Once
	done   chan struct{}
}

// Dial connects, requests a PTY of cols by rows and starts a login shell.
func Dial(ctx context.Context, cfg Config, sessionID string, cols, rows int, recv transport.Receiver, logger *logging.Logger) (*Channel, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg = cfg.withDefaults()

	auth, err := AuthMethods(&cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh auth: %w", err)
	}
	hostKey, err := HostKeyCallback(&cfg)
	if err != nil {
		return nil, fmt.Errorf("ssh hostkey: %w", err)
	}

	addr := cfg.Address()
	log := logger.Named("ssh").With(zap.String("addr", addr), zap.String("session_id", sessionID))
	log.Debug("Dialing SSH", zap.String("user", cfg.User))

	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	ch, err := start(client, cfg.Term, sessionID, cols, rows, recv, log)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return ch, nil
}

func start(client *ssh.Client, term, sessionID string, cols, rows int, recv transport.Receiver, log *logging.Logger) (*Channel, error) {
	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty(term, rows, cols, modes); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("ssh pty request: %w", err)
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("ssh stdin: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("ssh stdout: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("ssh stderr: %w", err)
	}
	if err := sess.Shell(); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("ssh shell: %w", err)
	}

	ch := &Channel{
		sessionID: sessionID,
		recv:      recv,
		logger:    log,
		client:    client,
		sess:      sess,
		stdin:     stdin,
		done:      make(chan struct{}),
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go ch.pump(stdout, &readers)
	go ch.pump(stderr, &readers)
	go ch.wait(&readers)

	recv.Receive(protocol.Connected(sessionID, true))
	return ch, nil
}

func (c *Channel) pump(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.recv.Receive(protocol.Output(c.sessionID, string(buf[:n])))
		}
		if err != nil {
			return
		}
	}
}

func (c *Channel) wait(readers *sync.WaitGroup) {
	err := c.sess.Wait()
	readers.Wait()

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
		c.logger.Debug("Remote shell exited")
	case errors.As(err, &exitErr):
		c.logger.Debug("Remote shell exited", zap.Int("status", exitErr.ExitStatus()))
	default:
		c.logger.Debug("SSH session ended", zap.Error(err))
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	_ = c.client.Close()
	close(c.done)
	c.recv.Receive(protocol.Close(c.sessionID))
}

func (c *Channel) Send(typ protocol.Type, payload protocol.Payload) error {
	if payload.Session() != c.sessionID {
		return fmt.Errorf("sshchan: frame for session %q on channel %q", payload.Session(), c.sessionID)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	switch v := payload.(type) {
	case protocol.InputPayload:
		_, err := io.WriteString(c.stdin, v.Command)
		return err
	case protocol.ResizePayload:
		return c.sess.WindowChange(v.Rows, v.Cols)
	case protocol.ClosePayload:
		return c.Close()
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnknownType, typ)
	}
}

// Close ends the SSH session and connection.
func (c *Channel) Close() error {
	var err error
	c.once.Do(func() {
		err = multierr.Combine(ignoreEOF(c.stdin.Close()), ignoreEOF(c.sess.Close()))
	})
	return err
}

// Done is closed once the remote shell has ended.
func (c *Channel) Done() <-chan struct{} { return c.done }

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
