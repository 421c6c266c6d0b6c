package surface

import "errors"

var (
	// ErrDisposed is returned by operations on a surface that has been disposed.
	ErrDisposed = errors.New("surface disposed")
	// ErrAlreadyOpen is returned when Open is called a second time.
	ErrAlreadyOpen = errors.New("surface already open")
	// ErrUnknownOption is returned by SetOption for names the surface does not recognise.
	ErrUnknownOption = errors.New("unknown surface option")
)

// Surface is an embeddable terminal emulator. It parses and displays output,
// tracks selection and scrollback, and reports user-originated events through
// the registered handlers. Handlers may be invoked from any goroutine.
type Surface interface {
	// Open attaches the surface to its mount target. It may be called once.
	Open(target MountTarget) error

	// Write feeds remote output to the emulator.
	Write(data []byte)
	// Paste inserts text at the cursor as if typed, raising a data event.
	Paste(text string)

	Focus()
	Clear()
	ClearSelection()
	SelectAll()
	ScrollToTop()
	ScrollToBottom()

	// Selection returns the selected text, or "" when nothing is selected.
	Selection() string
	HasSelection() bool

	// Option reads a live configuration value; nil when unknown.
	Option(name string) any
	// SetOption changes a live configuration value without reconstruction.
	SetOption(name string, value any) error

	LoadAddon(a Addon) error

	OnData(fn func(data string))
	OnBell(fn func())
	OnSelectionChange(fn func())
	OnResize(fn func(cols, rows int))

	Size() (cols, rows int)
	Resize(cols, rows int)

	// Dispose releases the surface. Calling it again returns nil.
	Dispose() error
}

// Addon is an optional capability attached to a Surface.
type Addon interface {
	// Activate binds the addon to the surface it is loaded into.
	Activate(s Surface) error
	// Dispose releases the addon. It must be safe to call more than once.
	Dispose() error
}

// Fitter is an addon that resizes the surface to its mount target.
type Fitter interface {
	Addon
	Fit() error
}

// MountTarget is the container a surface is opened into.
type MountTarget interface {
	// Size reports the available area in character cells.
	Size() (cols, rows int, err error)
	// OnContextMenu registers the right-click handler.
	OnContextMenu(fn func(*ContextMenuEvent))
}

// WordSelector is implemented by surfaces that can select the word under a
// screen cell.
type WordSelector interface {
	// SelectWordAt selects the word at row, col and reports whether one was
	// found there.
	SelectWordAt(row, col int) bool
}

// ContextMenuEvent is a right-click on the mount target. Row and Col locate
// the clicked cell on the visible screen.
type ContextMenuEvent struct {
	Row, Col int

	prevented bool
}

// PreventDefault suppresses the platform context menu.
func (e *ContextMenuEvent) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *ContextMenuEvent) DefaultPrevented() bool { return e.prevented }

// Factory builds a surface from options.
type Factory func(opts Options) (Surface, error)
