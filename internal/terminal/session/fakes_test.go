package session

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/addon"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

// fakeSurface records calls and lets tests fire surface events.
type fakeSurface struct {
	mu sync.Mutex

	opts       surface.Options
	target     surface.MountTarget
	openErr    error
	disposeErr error

	written   []string
	pasted    []string
	addons    []surface.Addon
	selection string
	// words maps a screen cell to the word covering it.
	words map[[2]int]string
	cols      int
	rows      int

	focus, clear, clearSel, selectAll, top, bottom, disposed int

	onData   func(string)
	onBell   func()
	onSelect func()
	onResize func(int, int)
}

func newFakeSurface(opts surface.Options) *fakeSurface {
	return &fakeSurface{opts: opts, cols: 80, rows: 24}
}

func (s *fakeSurface) Open(target surface.MountTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = target
	return s.openErr
}

func (s *fakeSurface) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, string(data))
}

// Paste raises a data event the way a real emulator does.
func (s *fakeSurface) Paste(text string) {
	s.mu.Lock()
	s.pasted = append(s.pasted, text)
	fn := s.onData
	s.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

func (s *fakeSurface) Focus()          { s.count(&s.focus) }
func (s *fakeSurface) Clear()          { s.count(&s.clear) }
func (s *fakeSurface) ClearSelection() { s.count(&s.clearSel) }
func (s *fakeSurface) SelectAll()      { s.count(&s.selectAll) }
func (s *fakeSurface) ScrollToTop()    { s.count(&s.top) }
func (s *fakeSurface) ScrollToBottom() { s.count(&s.bottom) }

func (s *fakeSurface) count(n *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*n++
}

func (s *fakeSurface) get(n *int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *n
}

func (s *fakeSurface) Selection() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

func (s *fakeSurface) HasSelection() bool { return s.Selection() != "" }

func (s *fakeSurface) SelectWordAt(row, col int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	word, ok := s.words[[2]int{row, col}]
	if ok {
		s.selection = word
	}
	return ok
}

func (s *fakeSurface) Option(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Get(name)
}

func (s *fakeSurface) SetOption(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Set(name, value)
}

func (s *fakeSurface) LoadAddon(a surface.Addon) error {
	s.mu.Lock()
	s.addons = append(s.addons, a)
	s.mu.Unlock()
	return a.Activate(s)
}

func (s *fakeSurface) OnData(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

func (s *fakeSurface) OnBell(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBell = fn
}

func (s *fakeSurface) OnSelectionChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSelect = fn
}

func (s *fakeSurface) OnResize(fn func(int, int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResize = fn
}

func (s *fakeSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

func (s *fakeSurface) Resize(cols, rows int) {
	s.mu.Lock()
	changed := cols != s.cols || rows != s.rows
	s.cols, s.rows = cols, rows
	fn := s.onResize
	s.mu.Unlock()
	if changed && fn != nil {
		fn(cols, rows)
	}
}

func (s *fakeSurface) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed++
	if s.disposed > 1 {
		return nil
	}
	return s.disposeErr
}

func (s *fakeSurface) typeKeys(data string) { s.onData(data) }
func (s *fakeSurface) ringBell()            { s.onBell() }

func (s *fakeSurface) selectText(text string) {
	s.mu.Lock()
	s.selection = text
	fn := s.onSelect
	s.mu.Unlock()
	fn()
}

func (s *fakeSurface) pastes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pasted...)
}

// fakeTarget is a fixed-size mount target.
type fakeTarget struct {
	cols, rows  int
	contextMenu func(*surface.ContextMenuEvent)
}

func (t *fakeTarget) Size() (int, int, error) { return t.cols, t.rows, nil }

func (t *fakeTarget) OnContextMenu(fn func(*surface.ContextMenuEvent)) { t.contextMenu = fn }

func (t *fakeTarget) rightClick() *surface.ContextMenuEvent { return t.rightClickAt(0, 0) }

func (t *fakeTarget) rightClickAt(row, col int) *surface.ContextMenuEvent {
	ev := &surface.ContextMenuEvent{Row: row, Col: col}
	t.contextMenu(ev)
	return ev
}

// stubAddon counts lifecycle calls.
type stubAddon struct {
	mu         sync.Mutex
	name       string
	loadErr    error
	disposeErr error
	surf       surface.Surface
	disposed   int
}

func (a *stubAddon) Activate(s surface.Surface) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.surf = s
	return a.loadErr
}

func (a *stubAddon) Dispose() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disposed++
	if a.disposed > 1 {
		return nil
	}
	return a.disposeErr
}

// stubFit resizes the surface to the target it was opened in.
type stubFit struct {
	stubAddon
	target *fakeTarget
	fits   int
}

func (f *stubFit) Fit() error {
	f.mu.Lock()
	f.fits++
	s := f.surf
	f.mu.Unlock()
	if s == nil {
		return errors.New("not activated")
	}
	s.Resize(f.target.cols, f.target.rows)
	return nil
}

type stubCatalog struct {
	fit         *stubFit
	search      *stubAddon
	hyperlink   *stubAddon
	image       *stubAddon
	accelerated *stubAddon
	fallback    *stubAddon
}

func newStubCatalog(target *fakeTarget) *stubCatalog {
	return &stubCatalog{
		fit:         &stubFit{stubAddon: stubAddon{name: "fit"}, target: target},
		search:      &stubAddon{name: "search"},
		hyperlink:   &stubAddon{name: "hyperlink"},
		image:       &stubAddon{name: "image"},
		accelerated: &stubAddon{name: "accelerated"},
		fallback:    &stubAddon{name: "fallback"},
	}
}

func (c *stubCatalog) Fit() surface.Fitter      { return c.fit }
func (c *stubCatalog) Search() surface.Addon    { return c.search }
func (c *stubCatalog) Hyperlink() surface.Addon { return c.hyperlink }
func (c *stubCatalog) Image() surface.Addon     { return c.image }
func (c *stubCatalog) Renderer(v addon.Renderer) surface.Addon {
	if v == addon.RendererAccelerated {
		return c.accelerated
	}
	return c.fallback
}

type sentFrame struct {
	typ     protocol.Type
	payload protocol.Payload
}

// recordingChannel stores every frame it is asked to send.
type recordingChannel struct {
	mu     sync.Mutex
	frames []sentFrame
	err    error
}

func (ch *recordingChannel) Send(typ protocol.Type, payload protocol.Payload) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.frames = append(ch.frames, sentFrame{typ: typ, payload: payload})
	return ch.err
}

func (ch *recordingChannel) sent(typ protocol.Type) []protocol.Payload {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	var out []protocol.Payload
	for _, f := range ch.frames {
		if f.typ == typ {
			out = append(out, f.payload)
		}
	}
	return out
}

// gatedClipboard blocks ReadText until release is closed or ctx ends.
type gatedClipboard struct {
	mu      sync.Mutex
	text    string
	readErr error
	copied  []string
	started chan struct{}
	release chan struct{}
	// deaf ignores cancellation once the read has started.
	deaf bool
}

func newGatedClipboard(text string) *gatedClipboard {
	return &gatedClipboard{
		text:    text,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (cb *gatedClipboard) ReadText(ctx context.Context) (string, error) {
	select {
	case cb.started <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if cb.deaf {
		<-cb.release
		return cb.text, cb.readErr
	}
	select {
	case <-cb.release:
		return cb.text, cb.readErr
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (cb *gatedClipboard) Copy(text string, _ bool) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.copied = append(cb.copied, text)
	return nil
}

func (cb *gatedClipboard) copies() []string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return append([]string(nil), cb.copied...)
}

type countingBell struct {
	mu    sync.Mutex
	rings int
}

func (b *countingBell) Ring() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rings++
}

func (b *countingBell) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rings
}
