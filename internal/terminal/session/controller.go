package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/addon"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/preference"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

var (
	// ErrAlreadyInitialized is returned when Init is called more than once.
	ErrAlreadyInitialized = errors.New("session already initialized")
	// ErrNotInitialized is returned by operations that need a surface before Init.
	ErrNotInitialized = errors.New("session not initialized")
	// ErrClosed is returned by Init after Close.
	ErrClosed = errors.New("session closed")
	// ErrNoSurfaceFactory is returned by Init when no factory was configured.
	ErrNoSurfaceFactory = errors.New("no surface factory configured")
	// ErrNoCatalog is returned by Init when no addon catalog was configured.
	ErrNoCatalog = errors.New("no addon catalog configured")
)

// Status is the lifecycle state of a session.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusDisconnected
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusDisconnected:
		return "DISCONNECTED"
	case StatusClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusClosed
}

// Drop reasons reported to the Observer.
const (
	dropDisconnected = "disconnected"
	dropReadOnly     = "read_only"
	dropClosed       = "closed"
)

// Controller bridges one remote shell, reached through a Channel, to a
// rendering surface. Surface events become gated outbound frames; caller
// operations manipulate the surface and the session state.
//
// State is guarded by mu. The lock is never held while calling into the
// surface or the channel, so surface handlers may call back into the
// controller from any goroutine.
type Controller struct {
	hostID    string
	sessionID string
	channel   Channel

	store     preference.Store
	factory   surface.Factory
	catalog   addon.Catalog
	clipboard Clipboard
	bell      Bell
	observer  Observer
	logger    *logging.Logger

	mu          sync.Mutex
	status      Status
	connected   bool
	canWrite    bool
	initialized bool
	opened      bool
	closed      bool
	surf        surface.Surface
	addons      *addon.Set

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

// New creates a controller for one session. The controller starts in
// CONNECTING, disconnected and read-only.
func New(hostID, sessionID string, ch Channel, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		hostID:    hostID,
		sessionID: sessionID,
		channel:   ch,
		store:     preference.NewStore(preference.Default()),
		clipboard: nopClipboard{},
		bell:      nopBell{},
		observer:  nopObserver{},
		logger:    logging.NewNop(),
		status:    StatusConnecting,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.ForSession(hostID, sessionID)
	return c
}

// HostID returns the host identifier.
func (c *Controller) HostID() string { return c.hostID }

// SessionID returns the session identifier.
func (c *Controller) SessionID() string { return c.sessionID }

// Status returns the lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connected reports whether the remote side is connected.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// CanWrite reports whether user input is forwarded.
func (c *Controller) CanWrite() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canWrite
}

// Init builds the surface from the current preferences, wires its events,
// loads the addons, opens the surface in target and fits the viewport.
// A catalog that cannot supply fit, search or the renderer fails Init.
// Optional addons it cannot supply, and addon load failures, are reported
// and do not fail Init.
func (c *Controller) Init(target surface.MountTarget) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.initialized:
		c.mu.Unlock()
		return ErrAlreadyInitialized
	case c.factory == nil:
		c.mu.Unlock()
		return ErrNoSurfaceFactory
	case c.catalog == nil:
		c.mu.Unlock()
		return ErrNoCatalog
	}
	c.initialized = true
	c.mu.Unlock()

	pref := c.store.Snapshot()

	// Compose addons
	set, err := addon.Compose(pref.Plugins, c.catalog)
	if !set.Complete() {
		c.abortInit(set)
		return fmt.Errorf("failed to compose addons: %w", err)
	}
	for _, e := range multierr.Errors(err) {
		c.logger.Warn("Addon unavailable", zap.Error(e))
		c.observer.ResourceFailed("addon", "compose", e)
	}

	surf, err := c.factory(surface.OptionsFrom(pref))
	if err != nil {
		c.abortInit(set)
		return fmt.Errorf("failed to create surface: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.disposeLate(set, surf)
		return ErrClosed
	}
	c.surf = surf
	c.mu.Unlock()

	// Register events
	c.wire(surf, target)

	// Register addons
	if err := set.Load(surf); err != nil {
		for _, e := range multierr.Errors(err) {
			c.logger.Warn("Addon failed to load", zap.Error(e))
			c.observer.ResourceFailed("addon", "load", e)
		}
	}
	c.mu.Lock()
	if c.closed {
		// Close already took the surface; the set is ours to dispose.
		c.mu.Unlock()
		c.disposeLate(set, nil)
		return ErrClosed
	}
	c.addons = set
	c.mu.Unlock()

	// Open the surface
	if err := surf.Open(target); err != nil {
		c.Close()
		return fmt.Errorf("failed to open surface: %w", err)
	}

	c.mu.Lock()
	c.opened = true
	c.mu.Unlock()
	c.observer.SessionOpened()
	c.logger.Debug("Session initialized",
		zap.String("renderer", set.RendererVariant().String()),
		zap.Int("addons", len(set.All())))

	c.Fit()
	return nil
}

// abortInit undoes a failed Init so it can be retried.
func (c *Controller) abortInit(set *addon.Set) {
	c.disposeLate(set, nil)
	c.mu.Lock()
	c.initialized = false
	c.mu.Unlock()
}

// disposeLate disposes resources Init built that no longer belong to a
// live session.
func (c *Controller) disposeLate(set *addon.Set, surf surface.Surface) {
	for _, err := range multierr.Errors(set.Dispose()) {
		c.reportDisposeFailure("addon", err)
	}
	if surf != nil {
		if err := disposeSurface(surf); err != nil {
			c.reportDisposeFailure("surface", fmt.Errorf("dispose surface: %w", err))
		}
	}
}

// Connect marks the session connected and focuses the surface. It is a
// no-op once the session has reached a terminal state.
func (c *Controller) Connect() {
	c.mu.Lock()
	if c.status.Terminal() {
		c.mu.Unlock()
		c.logger.Debug("Ignoring connect on finished session", zap.Stringer("status", c.Status()))
		return
	}
	c.status = StatusConnected
	c.connected = true
	surf := c.surf
	c.mu.Unlock()

	if surf != nil {
		surf.Focus()
	}
}

// SetCanWrite sets whether user input is forwarded. The cursor blinks only
// while writable, and then only if the display preference asks for it.
func (c *Controller) SetCanWrite(canWrite bool) {
	c.mu.Lock()
	c.canWrite = canWrite
	surf := c.surf
	c.mu.Unlock()

	if surf == nil {
		return
	}
	blink := canWrite && c.store.Snapshot().Display.CursorBlink
	if err := surf.SetOption(surface.OptionCursorBlink, blink); err != nil {
		c.logger.Debug("Failed to toggle cursor blink", zap.Error(err))
	}
}

// Write displays remote output. It is never gated.
func (c *Controller) Write(data []byte) {
	if surf := c.surface(); surf != nil {
		surf.Write(data)
	}
}

// Fit resizes the surface to its mount target.
func (c *Controller) Fit() {
	c.mu.Lock()
	set := c.addons
	closed := c.closed
	c.mu.Unlock()

	if closed || set == nil || set.Fit() == nil {
		return
	}
	if err := set.Fit().Fit(); err != nil {
		c.logger.Debug("Fit failed", zap.Error(err))
	}
}

// Focus focuses the surface.
func (c *Controller) Focus() {
	if surf := c.surface(); surf != nil {
		surf.Focus()
	}
}

// Clear clears the screen and the selection.
func (c *Controller) Clear() {
	c.withSurface(func(s surface.Surface) {
		s.Clear()
		s.ClearSelection()
	})
}

// SelectAll selects the whole buffer.
func (c *Controller) SelectAll() {
	c.withSurface(surface.Surface.SelectAll)
}

// ToTop scrolls to the top of the scrollback.
func (c *Controller) ToTop() {
	c.withSurface(surface.Surface.ScrollToTop)
}

// ToBottom scrolls to the live screen.
func (c *Controller) ToBottom() {
	c.withSurface(surface.Surface.ScrollToBottom)
}

// Paste inserts text at the cursor. Paste is a local action and is not
// gated; the resulting input event is.
func (c *Controller) Paste(value string) {
	c.withSurface(func(s surface.Surface) { s.Paste(value) })
}

// PasteTrimEnd pastes value, stripping trailing whitespace when the
// paste-auto-trim preference is set.
func (c *Controller) PasteTrimEnd(value string) {
	if c.store.Snapshot().Interact.PasteAutoTrim {
		value = trimEnd(value)
	}
	c.Paste(value)
}

// CopySelection copies the current selection to the clipboard, trimming
// trailing whitespace when copy-auto-trim is set, and returns what was
// copied. An empty selection is returned as is and nothing is copied.
func (c *Controller) CopySelection() string {
	surf := c.surface()
	if surf == nil {
		return ""
	}

	selection := surf.Selection()
	if selection != "" {
		if c.store.Snapshot().Interact.CopyAutoTrim {
			selection = trimEnd(selection)
		}
		if err := c.clipboard.Copy(selection, false); err != nil {
			c.logger.Warn("Failed to copy selection", zap.Error(err))
			c.observer.ResourceFailed("clipboard", "copy", err)
		}
	}
	surf.Focus()
	return selection
}

// GetOption reads a live surface option. It returns nil before Init.
func (c *Controller) GetOption(name string) any {
	if surf := c.surface(); surf != nil {
		return surf.Option(name)
	}
	return nil
}

// SetOption changes a live surface option.
func (c *Controller) SetOption(name string, value any) error {
	surf := c.surface()
	if surf == nil {
		return ErrNotInitialized
	}
	return surf.SetOption(name, value)
}

// Disconnect notifies the remote side with a CLOSE frame. The frame is sent
// whatever the connected and writable state, so the server can always clean
// up. The session then moves to DISCONNECTED.
func (c *Controller) Disconnect() {
	c.send(protocol.TypeClose, protocol.Close(c.sessionID))

	c.mu.Lock()
	if c.status != StatusClosed {
		c.status = StatusDisconnected
	}
	c.connected = false
	c.mu.Unlock()
}

// Close disposes every addon and then the surface. Each disposal is
// attempted even if an earlier one fails; failures are reported to the
// observer and returned. Close never panics, and a second call returns nil
// without side effects.
func (c *Controller) Close() []error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.status = StatusClosed
	c.connected = false
	surf, set, opened := c.surf, c.addons, c.opened
	c.surf, c.addons = nil, nil
	c.mu.Unlock()

	// Abandon in-flight clipboard reads and wait for their handlers
	c.cancel()
	c.pending.Wait()

	var errs []error
	if set != nil {
		for _, err := range multierr.Errors(set.Dispose()) {
			c.reportDisposeFailure("addon", err)
			errs = append(errs, err)
		}
	}
	if surf != nil {
		if err := disposeSurface(surf); err != nil {
			err = fmt.Errorf("dispose surface: %w", err)
			c.reportDisposeFailure("surface", err)
			errs = append(errs, err)
		}
	}
	if opened {
		c.observer.SessionClosed()
	}

	c.logger.Debug("Session closed", zap.Int("dispose_failures", len(errs)))
	return errs
}

func (c *Controller) reportDisposeFailure(resource string, err error) {
	c.logger.Warn("Failed to dispose resource", zap.String("resource", resource), zap.Error(err))
	c.observer.ResourceFailed(resource, "dispose", err)
}

func disposeSurface(s surface.Surface) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Dispose()
}

// surface returns the live surface, or nil before Init and after Close.
func (c *Controller) surface() surface.Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surf
}

// withSurface runs fn on the live surface and then restores focus.
func (c *Controller) withSurface(fn func(surface.Surface)) {
	surf := c.surface()
	if surf == nil {
		return
	}
	fn(surf)
	surf.Focus()
}

// gate reports whether user input may be sent, and why not.
func (c *Controller) gate() (ok bool, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return false, dropClosed
	case !c.connected:
		return false, dropDisconnected
	case !c.canWrite:
		return false, dropReadOnly
	}
	return true, ""
}

func (c *Controller) send(typ protocol.Type, payload protocol.Payload) {
	if c.channel == nil {
		c.observer.SendFailed(typ.String(), errors.New("no channel"))
		return
	}
	if err := c.channel.Send(typ, payload); err != nil {
		c.logger.Warn("Failed to send frame", zap.Stringer("frame_type", typ), zap.Error(err))
		c.observer.SendFailed(typ.String(), err)
		return
	}
	c.observer.FrameSent(typ.String())
}

func trimEnd(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
