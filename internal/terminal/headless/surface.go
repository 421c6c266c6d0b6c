package headless

import (
	"strings"
	"sync"

	ansicode "github.com/danielgatis/go-ansicode"
	headlessterm "github.com/danielgatis/go-headless-term"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

const (
	bracketedPasteStart = "\x1b[200~"
	bracketedPasteEnd   = "\x1b[201~"
	focusIn             = "\x1b[I"
	focusOut            = "\x1b[O"
)

// Renderer draws the visible viewport of a surface.
type Renderer interface {
	Render(s *Surface) error
}

// Surface is a surface.Surface backed by an in-memory VT emulator. Remote
// output goes through Write; local keystrokes through Input and Paste.
type Surface struct {
	term *headlessterm.Terminal

	mu         sync.Mutex
	opts       surface.Options
	target     surface.MountTarget
	opened     bool
	disposed   bool
	focused    bool
	offset     int
	keepImages bool
	renderer   Renderer
	addons     []surface.Addon

	onData     func(string)
	onBell     func()
	onSelect   func()
	onResize   func(cols, rows int)
	renderErrs func(error)
}

// Option configures a Surface.
type Option func(*config)

type config struct {
	clipboard headlessterm.ClipboardProvider
	title     headlessterm.TitleProvider
	cols      int
	rows      int
	onError   func(error)
}

// WithClipboardProvider answers OSC 52 clipboard requests from the remote.
func WithClipboardProvider(p headlessterm.ClipboardProvider) Option {
	return func(c *config) { c.clipboard = p }
}

// WithTitleProvider receives window title changes from the remote.
func WithTitleProvider(p headlessterm.TitleProvider) Option {
	return func(c *config) { c.title = p }
}

// WithInitialSize sets the size before the first fit.
func WithInitialSize(cols, rows int) Option {
	return func(c *config) { c.cols, c.rows = cols, rows }
}

// WithRenderErrorHandler receives renderer failures.
func WithRenderErrorHandler(fn func(error)) Option {
	return func(c *config) { c.onError = fn }
}

// New creates a surface from options.
func New(opts surface.Options, extra ...Option) *Surface {
	cfg := config{cols: headlessterm.DEFAULT_COLS, rows: headlessterm.DEFAULT_ROWS}
	for _, o := range extra {
		o(&cfg)
	}

	s := &Surface{opts: opts, renderErrs: cfg.onError}
	termOpts := []headlessterm.Option{
		headlessterm.WithSize(cfg.rows, cfg.cols),
		headlessterm.WithScrollback(headlessterm.NewMemoryScrollback(opts.Scrollback)),
		headlessterm.WithBell(bellProvider{s}),
		headlessterm.WithResponse(responseWriter{s}),
	}
	if cfg.clipboard != nil {
		termOpts = append(termOpts, headlessterm.WithClipboard(cfg.clipboard))
	}
	if cfg.title != nil {
		termOpts = append(termOpts, headlessterm.WithTitle(cfg.title))
	}
	s.term = headlessterm.New(termOpts...)
	return s
}

// Factory returns a surface.Factory producing headless surfaces.
func Factory(extra ...Option) surface.Factory {
	return func(opts surface.Options) (surface.Surface, error) {
		return New(opts, extra...), nil
	}
}

// Terminal exposes the underlying emulator.
func (s *Surface) Terminal() *headlessterm.Terminal { return s.term }

// Open attaches the surface to target.
func (s *Surface) Open(target surface.MountTarget) error {
	s.mu.Lock()
	switch {
	case s.disposed:
		s.mu.Unlock()
		return surface.ErrDisposed
	case s.opened:
		s.mu.Unlock()
		return surface.ErrAlreadyOpen
	}
	s.opened = true
	s.target = target
	s.mu.Unlock()

	s.render()
	return nil
}

// Target returns the mount target, or nil before Open.
func (s *Surface) Target() surface.MountTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Write feeds remote output to the emulator.
func (s *Surface) Write(data []byte) {
	if s.isDisposed() {
		return
	}
	_, _ = s.term.Write(data)

	s.mu.Lock()
	keep := s.keepImages
	s.mu.Unlock()
	if !keep && s.term.ImageCount() > 0 {
		s.term.ClearImages()
	}
	s.render()
}

// Input forwards keystrokes typed by the user as a data event.
func (s *Surface) Input(data string) {
	if data == "" || s.isDisposed() {
		return
	}
	s.emitData(data)
}

// Paste sends text as if typed. Line endings become CR, and the text is
// bracketed when the remote program enabled bracketed paste.
func (s *Surface) Paste(text string) {
	if text == "" || s.isDisposed() {
		return
	}
	text = strings.ReplaceAll(text, "\r\n", "\r")
	text = strings.ReplaceAll(text, "\n", "\r")
	if s.term.HasMode(headlessterm.ModeBracketedPaste) {
		text = bracketedPasteStart + text + bracketedPasteEnd
	}
	s.emitData(text)
}

// Focus marks the surface focused, reporting it to the remote when focus
// reporting is on.
func (s *Surface) Focus() { s.setFocus(true) }

// Blur marks the surface unfocused.
func (s *Surface) Blur() { s.setFocus(false) }

// Focused reports whether the surface has focus.
func (s *Surface) Focused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focused
}

func (s *Surface) setFocus(focused bool) {
	s.mu.Lock()
	if s.disposed || s.focused == focused {
		s.mu.Unlock()
		return
	}
	s.focused = focused
	s.mu.Unlock()

	if s.term.HasMode(headlessterm.ModeReportFocusInOut) {
		if focused {
			s.emitData(focusIn)
		} else {
			s.emitData(focusOut)
		}
	}
}

// Clear erases the screen and the scrollback. The cursor line survives and
// moves to the top row, the way xterm clears.
func (s *Surface) Clear() {
	if s.isDisposed() {
		return
	}
	row, col := s.term.CursorPos()
	if row > 0 {
		s.term.ScrollUp(row)
	}
	if s.term.Rows() > 1 {
		s.term.Goto(1, 0)
		s.term.ClearScreen(ansicode.ClearModeBelow)
	}
	s.term.Goto(0, col)
	s.term.ClearScrollback()
	s.setOffset(0)
}

// ClearSelection removes the selection.
func (s *Surface) ClearSelection() {
	if s.isDisposed() {
		return
	}
	had := s.term.HasSelection()
	s.term.ClearSelection()
	if had {
		s.emitSelect()
	}
}

// SelectAll selects the whole screen.
func (s *Surface) SelectAll() {
	if s.isDisposed() {
		return
	}
	s.term.SetSelection(
		headlessterm.Position{Row: 0, Col: 0},
		headlessterm.Position{Row: s.term.Rows() - 1, Col: s.term.Cols() - 1},
	)
	s.emitSelect()
}

// Select sets the selection between two screen positions.
func (s *Surface) Select(start, end headlessterm.Position) {
	if s.isDisposed() {
		return
	}
	s.term.SetSelection(start, end)
	s.emitSelect()
}

// SelectWordAt selects the word under a screen cell, using the configured
// word separators. It reports whether a word was found.
func (s *Surface) SelectWordAt(row, col int) bool {
	if s.isDisposed() || row < 0 || row >= s.term.Rows() {
		return false
	}
	line := []rune(s.term.LineContent(row))
	if col < 0 || col >= len(line) {
		return false
	}

	s.mu.Lock()
	seps := s.opts.WordSeparator
	s.mu.Unlock()

	isSep := func(r rune) bool { return r == ' ' || strings.ContainsRune(seps, r) }
	if isSep(line[col]) {
		return false
	}
	start, end := col, col
	for start > 0 && !isSep(line[start-1]) {
		start--
	}
	for end < len(line)-1 && !isSep(line[end+1]) {
		end++
	}
	s.Select(headlessterm.Position{Row: row, Col: start}, headlessterm.Position{Row: row, Col: end})
	return true
}

// ScrollToTop shows the oldest scrollback line.
func (s *Surface) ScrollToTop() { s.setOffset(s.term.ScrollbackLen()) }

// ScrollToBottom shows the live screen.
func (s *Surface) ScrollToBottom() { s.setOffset(0) }

// ScrollLines moves the viewport by n lines; negative scrolls back.
func (s *Surface) ScrollLines(n int) {
	s.mu.Lock()
	offset := s.offset - n
	s.mu.Unlock()
	s.setOffset(offset)
}

// Offset reports how many lines the viewport is scrolled back.
func (s *Surface) Offset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *Surface) setOffset(offset int) {
	if limit := s.term.ScrollbackLen(); offset > limit {
		offset = limit
	}
	if offset < 0 {
		offset = 0
	}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.offset = offset
	s.mu.Unlock()
	s.render()
}

// Selection returns the selected text.
func (s *Surface) Selection() string {
	if s.isDisposed() {
		return ""
	}
	return s.term.GetSelectedText()
}

// HasSelection reports whether any text is selected.
func (s *Surface) HasSelection() bool {
	return !s.isDisposed() && s.term.HasSelection()
}

// Option reads a live option.
func (s *Surface) Option(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Get(name)
}

// SetOption changes a live option.
func (s *Surface) SetOption(name string, value any) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return surface.ErrDisposed
	}
	if err := s.opts.Set(name, value); err != nil {
		s.mu.Unlock()
		return err
	}
	scrollback := s.opts.Scrollback
	s.mu.Unlock()

	if name == surface.OptionScrollback {
		s.term.SetMaxScrollback(scrollback)
	}
	s.render()
	return nil
}

// Options returns a copy of the live options.
func (s *Surface) Options() surface.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// LoadAddon activates a and keeps it for the surface's lifetime.
func (s *Surface) LoadAddon(a surface.Addon) error {
	if s.isDisposed() {
		return surface.ErrDisposed
	}
	if err := a.Activate(s); err != nil {
		return err
	}
	s.mu.Lock()
	s.addons = append(s.addons, a)
	s.mu.Unlock()
	return nil
}

func (s *Surface) OnData(fn func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onData = fn
}

func (s *Surface) OnBell(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onBell = fn
}

func (s *Surface) OnSelectionChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSelect = fn
}

func (s *Surface) OnResize(fn func(cols, rows int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResize = fn
}

// Size returns the grid size in cells.
func (s *Surface) Size() (cols, rows int) {
	return s.term.Cols(), s.term.Rows()
}

// Resize changes the grid size and raises a resize event when it changed.
func (s *Surface) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 || s.isDisposed() {
		return
	}
	if cols == s.term.Cols() && rows == s.term.Rows() {
		return
	}
	s.term.Resize(rows, cols)

	s.mu.Lock()
	fn := s.onResize
	s.mu.Unlock()
	if fn != nil {
		fn(cols, rows)
	}
	s.render()
}

// Dispose releases the surface. Addons are disposed by their owner.
func (s *Surface) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.onData, s.onBell, s.onSelect, s.onResize = nil, nil, nil, nil
	s.renderer = nil
	s.addons = nil
	s.mu.Unlock()

	s.term.ClearImages()
	s.term.ClearSelection()
	return nil
}

func (s *Surface) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Surface) setRenderer(r Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer = r
}

func (s *Surface) clearRenderer(r Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderer == r {
		s.renderer = nil
	}
}

func (s *Surface) setKeepImages(keep bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keepImages = keep
}

func (s *Surface) render() {
	s.mu.Lock()
	r, opened, onErr := s.renderer, s.opened, s.renderErrs
	s.mu.Unlock()
	if r == nil || !opened {
		return
	}
	if err := r.Render(s); err != nil && onErr != nil {
		onErr(err)
	}
}

func (s *Surface) emitData(data string) {
	s.mu.Lock()
	fn := s.onData
	s.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

func (s *Surface) emitSelect() {
	s.mu.Lock()
	fn := s.onSelect
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Surface) ring() {
	s.mu.Lock()
	fn := s.onBell
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// bellProvider adapts BEL from the emulator to bell events.
type bellProvider struct{ s *Surface }

func (b bellProvider) Ring() { b.s.ring() }

// responseWriter turns emulator replies (cursor reports, device status) into
// data events so they reach the remote like typed input.
type responseWriter struct{ s *Surface }

func (w responseWriter) Write(p []byte) (int, error) {
	if !w.s.isDisposed() {
		w.s.emitData(string(p))
	}
	return len(p), nil
}
