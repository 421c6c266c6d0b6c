package ws

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport/ptychan"
)

// MaxFrameBytes caps a single inbound message.
const MaxFrameBytes = 1 << 20

// Config controls how connections are served.
type Config struct {
	// Codec is used unless the client asks for another with ?codec=.
	Codec protocol.Codec
	// Shell is the template for shells started on behalf of a session.
	Shell        shell.Spec
	WriteTimeout time.Duration
	// CheckOrigin decides whether a browser origin may connect. Nil allows
	// all.
	CheckOrigin func(origin string) bool
	// Spawn configures the breaker every shell start goes through.
	Spawn resilience.Settings
	// Tracer, when set, records one span per connection.
	Tracer *tracing.Tracer
}

// Handler serves terminal sessions over websocket connections. Each
// session ID seen on a connection gets its own local shell.
type Handler struct {
	shells   *shell.Manager
	cfg      Config
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	spawn    *resilience.Breaker
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(shells *shell.Manager, cfg Config, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Codec == nil {
		cfg.Codec = protocol.PipeCodec{}
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	h := &Handler{
		shells:  shells,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.Named("ws"),
	}
	onChange := cfg.Spawn.OnStateChange
	cfg.Spawn.OnStateChange = func(name string, from, to resilience.State) {
		h.logger.Warn("Shell spawn breaker changed state",
			zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		if onChange != nil {
			onChange(name, from, to)
		}
	}
	h.spawn = resilience.New("shell-spawn", cfg.Spawn)
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return cfg.CheckOrigin == nil || cfg.CheckOrigin(r.Header.Get("Origin"))
		},
	}
	return h
}

// SpawnState reports whether new shells are being started.
func (h *Handler) SpawnState() resilience.State { return h.spawn.State() }

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	codec := h.cfg.Codec
	if name := c.Query("codec"); name != "" {
		var err error
		if codec, err = protocol.ByName(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cn := &connection{
		h:        h,
		conn:     conn,
		codec:    codec,
		sessions: make(map[string]*entry),
	}
	connID := id.NewConnectionID().String()
	cn.logger = h.logger.With(zap.String("conn_id", connID), zap.String("codec", codec.Name()))
	if tracer := h.cfg.Tracer; tracer != nil {
		span, _ := tracer.StartSpan(c.Request.Context(), "ws.connection")
		span.SetTag("conn_id", connID)
		cn.logger = cn.logger.With(zap.String("trace_id", string(span.TraceID)))
		defer func() {
			span.SetTag("sessions_opened", strconv.Itoa(cn.opened))
			tracer.End(span)
		}()
	}
	cn.serve()
}

type entry struct {
	ch *ptychan.Channel
}

type connection struct {
	h      *Handler
	conn   *websocket.Conn
	codec  protocol.Codec
	logger *logging.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]*entry
	opened   int
}

func (cn *connection) serve() {
	cn.h.metrics.IncWSConnections()
	cn.logger.Info("Terminal connection opened")
	defer func() {
		cn.closeAll()
		_ = cn.conn.Close()
		cn.h.metrics.DecWSConnections()
		cn.logger.Info("Terminal connection closed")
	}()

	cn.conn.SetReadLimit(MaxFrameBytes)
	for {
		_, data, err := cn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				cn.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		p, err := cn.codec.Decode(data)
		if err != nil {
			cn.h.metrics.RecordWSMessage("in", "invalid")
			cn.logger.Warn("Dropping undecodable frame", zap.Error(err))
			continue
		}
		cn.h.metrics.RecordWSMessage("in", p.FrameType().String())
		cn.dispatch(p)
	}
}

func (cn *connection) dispatch(p protocol.Payload) {
	sid := p.Session()
	typ := p.FrameType()
	log := cn.logger.With(zap.String("session_id", sid), zap.String("frame_type", typ.String()))

	switch typ {
	case protocol.TypeInput, protocol.TypeResize, protocol.TypeClose:
	default:
		log.Warn("Client sent a server-only frame")
		return
	}

	cn.mu.Lock()
	e, ok := cn.sessions[sid]
	cn.mu.Unlock()

	if !ok {
		if typ == protocol.TypeClose {
			return
		}
		var err error
		if e, err = cn.open(sid, p); err != nil {
			log.Error("Failed to start shell", zap.Error(err))
			cn.send(protocol.Close(sid))
			return
		}
	}

	err := e.ch.Send(typ, p)
	switch {
	case errors.Is(err, transport.ErrClosed):
		cn.forget(sid, e)
	case err != nil:
		log.Warn("Shell rejected frame", zap.Error(err))
	}
	if typ == protocol.TypeClose {
		cn.forget(sid, e)
	}
}

func (cn *connection) open(sid string, first protocol.Payload) (*entry, error) {
	spec := cn.h.cfg.Shell
	if r, ok := first.(protocol.ResizePayload); ok {
		spec.Cols, spec.Rows = r.Cols, r.Rows
	}

	e := &entry{}
	cn.mu.Lock()
	cn.sessions[sid] = e
	cn.opened++
	cn.mu.Unlock()

	var ch *ptychan.Channel
	err := cn.h.spawn.Do(func() error {
		var err error
		ch, err = ptychan.Open(cn.h.shells, sid, spec, transport.ReceiverFunc(func(out protocol.Payload) {
			cn.send(out)
			if out.FrameType() == protocol.TypeClose {
				cn.forget(sid, e)
			}
		}))
		return err
	})
	if err != nil {
		cn.forget(sid, e)
		return nil, err
	}
	e.ch = ch
	cn.h.metrics.SetShellsActive(cn.h.shells.Count())
	cn.logger.Info("Shell started", zap.String("session_id", sid), zap.String("shell_id", ch.ShellID().String()))
	return e, nil
}

func (cn *connection) forget(sid string, e *entry) {
	cn.mu.Lock()
	if cn.sessions[sid] == e {
		delete(cn.sessions, sid)
	}
	cn.mu.Unlock()
	cn.h.metrics.SetShellsActive(cn.h.shells.Count())
}

func (cn *connection) send(p protocol.Payload) {
	data, err := cn.codec.Encode(p)
	if err != nil {
		cn.logger.Warn("Failed to encode frame", zap.String("frame_type", p.FrameType().String()), zap.Error(err))
		return
	}

	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	_ = cn.conn.SetWriteDeadline(time.Now().Add(cn.h.cfg.WriteTimeout))
	if err := cn.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		cn.logger.Debug("WebSocket write failed", zap.Error(err))
		return
	}
	cn.h.metrics.RecordWSMessage("out", p.FrameType().String())
}

// closeAll kills every shell the connection started.
func (cn *connection) closeAll() {
	cn.mu.Lock()
	open := cn.sessions
	cn.sessions = make(map[string]*entry)
	cn.mu.Unlock()

	for sid, e := range open {
		if e.ch == nil {
			continue
		}
		if err := e.ch.Send(protocol.TypeClose, protocol.Close(sid)); err != nil && !errors.Is(err, transport.ErrClosed) {
			cn.logger.Warn("Failed to stop shell", zap.String("session_id", sid), zap.Error(err))
		}
	}
}
