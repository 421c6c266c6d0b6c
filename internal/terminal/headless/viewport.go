package headless

import (
	"errors"
	"sync"

	"golang.org/x/term"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

// ErrNoSize is returned by a viewport that cannot determine its size.
var ErrNoSize = errors.New("viewport size unavailable")

// Viewport is a surface.MountTarget. It measures a local tty when given a
// file descriptor, or reports a fixed size otherwise.
type Viewport struct {
	mu          sync.Mutex
	fd          int
	cols, rows  int
	contextMenu func(*surface.ContextMenuEvent)
}

// NewTTYViewport measures the terminal on fd.
func NewTTYViewport(fd int) *Viewport {
	return &Viewport{fd: fd}
}

// NewFixedViewport always reports cols by rows.
func NewFixedViewport(cols, rows int) *Viewport {
	return &Viewport{fd: -1, cols: cols, rows: rows}
}

// Size returns the viewport size in cells.
func (v *Viewport) Size() (cols, rows int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fd >= 0 {
		cols, rows, err = term.GetSize(v.fd)
		if err != nil {
			return 0, 0, err
		}
		return cols, rows, nil
	}
	if v.cols <= 0 || v.rows <= 0 {
		return 0, 0, ErrNoSize
	}
	return v.cols, v.rows, nil
}

// SetSize changes a fixed viewport's size.
func (v *Viewport) SetSize(cols, rows int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cols, v.rows = cols, rows
}

func (v *Viewport) OnContextMenu(fn func(*surface.ContextMenuEvent)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.contextMenu = fn
}

// ContextMenu raises a secondary-click event on the cell at row, col and
// reports whether a handler suppressed the default menu.
func (v *Viewport) ContextMenu(row, col int) bool {
	v.mu.Lock()
	fn := v.contextMenu
	v.mu.Unlock()

	ev := &surface.ContextMenuEvent{Row: row, Col: col}
	if fn != nil {
		fn(ev)
	}
	return ev.DefaultPrevented()
}
