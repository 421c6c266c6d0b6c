// Package wschan carries session frames over a websocket.
package wschan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
)

// Options tune a Client. Zero values take the defaults below.
type Options struct {
	Codec           protocol.Codec
	FramesPerSecond int
	Burst           int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	Header          http.Header
}

const (
	DefaultFramesPerSecond = 200
	DefaultBurst           = 400
	DefaultWriteTimeout    = 10 * time.Second
	DefaultPingInterval    = 30 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = protocol.PipeCodec{}
	}
	if o.FramesPerSecond <= 0 {
		o.FramesPerSecond = DefaultFramesPerSecond
	}
	if o.Burst <= 0 {
		o.Burst = DefaultBurst
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	return o
}

// Client is a session channel over a websocket. Outbound frames are
// encoded with the codec and paced by a token bucket; inbound frames are
// decoded and handed to the receiver.
type Client struct {
	conn    *websocket.Conn
	codec   protocol.Codec
	limiter *rate.Limiter
	recv    transport.Receiver
	logger  *logging.Logger
	opts    Options

	writeMu sync.Mutex

	mu     sync.Mutex
	closed bool
	err    error

	once sync.Once
	done chan struct{}
}

// Dial opens a websocket to url and starts reading frames for recv.
func Dial(ctx context.Context, url string, recv transport.Receiver, opts Options, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts = opts.withDefaults()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		codec:   opts.Codec,
		limiter: rate.NewLimiter(rate.Limit(opts.FramesPerSecond), opts.Burst),
		recv:    recv,
		logger:  logger.Named("ws").With(zap.String("url", url), zap.String("codec", opts.Codec.Name())),
		opts:    opts,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()
	c.logger.Debug("WebSocket connected")
	return c, nil
}

// Send encodes payload and writes it as one text message. It waits for
// the rate limiter no longer than the write timeout.
func (c *Client) Send(typ protocol.Type, payload protocol.Payload) error {
	if c.isClosed() {
		return transport.ErrClosed
	}
	if payload.FrameType() != typ {
		return fmt.Errorf("%w: %s carrying %s", protocol.ErrMalformedFrame, typ, payload.FrameType())
	}
	data, err := c.codec.Encode(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wschan: send %s: %w", typ, err)
	}
	return c.write(websocket.TextMessage, data)
}

func (c *Client) write(kind int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}

func (c *Client) readLoop() {
	defer c.finish(nil)
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !c.isClosed() {
				c.logger.Warn("WebSocket read failed", zap.Error(err))
				c.finish(err)
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		p, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("Dropping undecodable frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		c.recv.Receive(p)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close sends a close message and tears down the connection.
func (c *Client) Close() error {
	if c.isClosed() {
		return nil
	}
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout))
	c.writeMu.Unlock()

	c.finish(nil)
	err := c.conn.Close()
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return werr
	}
	return err
}

// Done is closed once the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the read error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
