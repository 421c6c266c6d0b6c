package headless

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	headlessterm "github.com/danielgatis/go-headless-term"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

// VisibleLines returns the text of the rows currently in the viewport,
// accounting for how far it is scrolled back.
func (s *Surface) VisibleLines() []string {
	rows := s.term.Rows()
	offset := s.Offset()
	sb := s.term.ScrollbackLen()
	if offset > sb {
		offset = sb
	}

	lines := make([]string, 0, rows)
	for i := sb - offset; i < sb && len(lines) < rows; i++ {
		lines = append(lines, cellsText(s.term.ScrollbackLine(i)))
	}
	for row := 0; len(lines) < rows; row++ {
		lines = append(lines, s.term.LineContent(row))
	}
	return lines
}

func cellsText(cells []headlessterm.Cell) string {
	var b strings.Builder
	for i := range cells {
		c := &cells[i]
		if c.IsWideSpacer() {
			continue
		}
		if c.Char == 0 {
			b.WriteRune(' ')
		} else {
			b.WriteRune(c.Char)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// cursorStyleCode maps the cursor options to a DECSCUSR parameter.
func cursorStyleCode(style string, blink bool) int {
	code := 1
	switch style {
	case "underline":
		code = 3
	case "bar":
		code = 5
	}
	if !blink {
		code++
	}
	return code
}

// preamble sets theme colours and the cursor shape.
func preamble(buf *bytes.Buffer, opts surface.Options) {
	if opts.Theme.Foreground != "" {
		fmt.Fprintf(buf, "\x1b]10;%s\x07", opts.Theme.Foreground)
	}
	if opts.Theme.Background != "" {
		fmt.Fprintf(buf, "\x1b]11;%s\x07", opts.Theme.Background)
	}
	fmt.Fprintf(buf, "\x1b[%d q", cursorStyleCode(opts.CursorStyle, opts.CursorBlink))
}

func placeCursor(buf *bytes.Buffer, s *Surface) {
	if s.Offset() > 0 || !s.term.CursorVisible() {
		buf.WriteString("\x1b[?25l")
		return
	}
	row, col := s.term.CursorPos()
	fmt.Fprintf(buf, "\x1b[%d;%dH\x1b[?25h", row+1, col+1)
}

// renderer is the addon plumbing shared by both renderers.
type renderer struct {
	mu   sync.Mutex
	out  io.Writer
	surf *Surface
	self Renderer
}

func (r *renderer) activate(s surface.Surface, self Renderer) error {
	hs, ok := s.(*Surface)
	if !ok {
		return ErrUnsupportedSurface
	}
	r.mu.Lock()
	r.surf = hs
	r.self = self
	r.mu.Unlock()
	hs.setRenderer(self)
	return nil
}

func (r *renderer) Dispose() error {
	r.mu.Lock()
	hs, self := r.surf, r.self
	r.surf = nil
	r.mu.Unlock()
	if hs != nil {
		hs.clearRenderer(self)
	}
	return nil
}

// FullRenderer repaints the whole viewport on every change. It is the
// fallback renderer.
type FullRenderer struct {
	renderer
	frames int
}

// NewFullRenderer creates a full-repaint renderer writing to out.
func NewFullRenderer(out io.Writer) *FullRenderer {
	return &FullRenderer{renderer: renderer{out: out}}
}

func (r *FullRenderer) Activate(s surface.Surface) error { return r.activate(s, r) }

// Render writes every visible row.
func (r *FullRenderer) Render(s *Surface) error {
	var buf bytes.Buffer
	preamble(&buf, s.Options())
	buf.WriteString("\x1b[H")
	for i, line := range s.VisibleLines() {
		fmt.Fprintf(&buf, "\x1b[%d;1H%s\x1b[K", i+1, line)
	}
	placeCursor(&buf, s)
	s.term.ClearDirty()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	_, err := r.out.Write(buf.Bytes())
	return err
}

// Frames returns how many frames were drawn.
func (r *FullRenderer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// DamageRenderer repaints only rows with changed cells while the viewport
// shows the live screen, and falls back to a full repaint when scrolled
// back or after a resize. It is the accelerated renderer.
type DamageRenderer struct {
	renderer
	lastOffset int
	lastCols   int
	lastRows   int
	frames     int
	rowsDrawn  int
}

// NewDamageRenderer creates a dirty-row renderer writing to out.
func NewDamageRenderer(out io.Writer) *DamageRenderer {
	return &DamageRenderer{renderer: renderer{out: out}, lastOffset: -1}
}

func (r *DamageRenderer) Activate(s surface.Surface) error { return r.activate(s, r) }

// Render writes the rows that changed since the previous frame.
func (r *DamageRenderer) Render(s *Surface) error {
	cols, rows := s.Size()
	offset := s.Offset()

	r.mu.Lock()
	full := offset != 0 || offset != r.lastOffset || cols != r.lastCols || rows != r.lastRows
	r.lastOffset, r.lastCols, r.lastRows = offset, cols, rows
	r.mu.Unlock()

	var buf bytes.Buffer
	preamble(&buf, s.Options())
	drawn := 0
	if full {
		for i, line := range s.VisibleLines() {
			fmt.Fprintf(&buf, "\x1b[%d;1H%s\x1b[K", i+1, line)
			drawn++
		}
	} else {
		seen := make(map[int]bool)
		for _, pos := range s.term.DirtyCells() {
			if seen[pos.Row] || pos.Row < 0 || pos.Row >= rows {
				continue
			}
			seen[pos.Row] = true
			fmt.Fprintf(&buf, "\x1b[%d;1H%s\x1b[K", pos.Row+1, s.term.LineContent(pos.Row))
			drawn++
		}
	}
	placeCursor(&buf, s)
	s.term.ClearDirty()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.rowsDrawn += drawn
	_, err := r.out.Write(buf.Bytes())
	return err
}

// Stats returns frames drawn and total rows repainted.
func (r *DamageRenderer) Stats() (frames, rows int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames, r.rowsDrawn
}
