package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/session"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport/ptychan"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport/sshchan"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport/wschan"
)

// remote is a dialed channel that can be torn down.
type remote interface {
	session.Channel
	Close() error
	// Done is closed when the connection is lost. It may be nil.
	Done() <-chan struct{}
}

var errNotDialed = errors.New("termctl: channel not connected yet")

// link lets the controller exist before the channel it sends on.
type link struct {
	mu sync.RWMutex
	ch session.Channel
}

func (l *link) set(ch session.Channel) {
	l.mu.Lock()
	l.ch = ch
	l.mu.Unlock()
}

func (l *link) Send(typ protocol.Type, payload protocol.Payload) error {
	l.mu.RLock()
	ch := l.ch
	l.mu.RUnlock()
	if ch == nil {
		return errNotDialed
	}
	return ch.Send(typ, payload)
}

type ptyRemote struct {
	*ptychan.Channel
	mgr       *shell.Manager
	sessionID string
}

func (p *ptyRemote) Close() error {
	err := p.Send(protocol.TypeClose, protocol.Close(p.sessionID))
	if errors.Is(err, transport.ErrClosed) {
		err = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if serr := p.mgr.Shutdown(ctx); err == nil {
		err = serr
	}
	return err
}

func (p *ptyRemote) Done() <-chan struct{} { return nil }

// wsURL adds the codec to the endpoint unless the URL already names one.
func wsURL(raw, codec string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", raw, err)
	}
	q := u.Query()
	if q.Get("codec") == "" {
		q.Set("codec", codec)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// dial opens the selected channel. Frames from the remote side go to recv.
func (o *options) dial(ctx context.Context, recv transport.Receiver, cols, rows int, password string,
	prompt func(string) ([]byte, error), logger *logging.Logger) (remote, error) {
	switch o.transport {
	case transportSSH:
		ch, err := sshchan.Dial(ctx, sshchan.Config{
			User:          o.sshUser,
			Host:          o.sshHost,
			Port:          o.sshPort,
			KeyPath:       o.sshKey,
			Password:      password,
			UseAgent:      o.sshAgent,
			StrictHostKey: o.sshStrict,
			KnownHosts:    o.sshKnownHosts,
			Timeout:       o.cfg.SSH.ConnTimeout,
			Prompt:        prompt,
		}, o.sessionID, cols, rows, recv, logger)
		if err != nil {
			return nil, err
		}
		return ch, nil

	case transportWS:
		codec, err := protocol.ByName(o.codec)
		if err != nil {
			return nil, err
		}
		endpoint, err := wsURL(o.url, codec.Name())
		if err != nil {
			return nil, err
		}
		c, err := wschan.Dial(ctx, endpoint, recv, wschan.Options{
			Codec:           codec,
			FramesPerSecond: o.cfg.Channel.FramesPerSecond,
			Burst:           o.cfg.Channel.Burst,
			WriteTimeout:    o.cfg.Channel.WriteTimeout,
			PingInterval:    o.cfg.Channel.PingInterval,
		}, logger)
		if err != nil {
			return nil, err
		}
		// The server starts the shell on the first frame; give it the size.
		if err := c.Send(protocol.TypeResize, protocol.Resize(o.sessionID, cols, rows)); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("sending initial size: %w", err)
		}
		return c, nil

	default:
		mgr := shell.NewManager(logger)
		ch, err := ptychan.Open(mgr, o.sessionID, shell.Spec{
			Shell:      o.shell,
			WorkingDir: o.cfg.Terminal.WorkingDir,
			Cols:       cols,
			Rows:       rows,
		}, recv)
		if err != nil {
			return nil, err
		}
		return &ptyRemote{Channel: ch, mgr: mgr, sessionID: o.sessionID}, nil
	}
}
