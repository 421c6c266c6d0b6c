package headless

import (
	"errors"
	"io"
	"regexp"
	"sort"
	"sync"
	"unicode/utf8"

	headlessterm "github.com/danielgatis/go-headless-term"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/addon"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

var (
	// ErrUnsupportedSurface is returned when an addon is loaded into a
	// surface that is not a headless Surface.
	ErrUnsupportedSurface = errors.New("addon requires a headless surface")
	// ErrNotActivated is returned by addon operations before activation.
	ErrNotActivated = errors.New("addon not activated")
	// ErrNotOpen is returned by Fit before the surface is opened.
	ErrNotOpen = errors.New("surface not open")
)

// base holds the surface an addon was activated on.
type base struct {
	mu   sync.Mutex
	surf *Surface
}

func (b *base) bind(s surface.Surface) (*Surface, error) {
	hs, ok := s.(*Surface)
	if !ok {
		return nil, ErrUnsupportedSurface
	}
	b.mu.Lock()
	b.surf = hs
	b.mu.Unlock()
	return hs, nil
}

func (b *base) bound() (*Surface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.surf == nil {
		return nil, ErrNotActivated
	}
	return b.surf, nil
}

func (b *base) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.surf = nil
}

// FitAddon sizes the surface to its mount target.
type FitAddon struct{ base }

func NewFitAddon() *FitAddon { return &FitAddon{} }

func (f *FitAddon) Activate(s surface.Surface) error {
	_, err := f.bind(s)
	return err
}

// Fit resizes the surface to the cell size reported by the mount target.
func (f *FitAddon) Fit() error {
	s, err := f.bound()
	if err != nil {
		return err
	}
	target := s.Target()
	if target == nil {
		return ErrNotOpen
	}
	cols, rows, err := target.Size()
	if err != nil {
		return err
	}
	s.Resize(cols, rows)
	return nil
}

func (f *FitAddon) Dispose() error {
	f.release()
	return nil
}

// SearchAddon finds text in the screen and scrollback.
type SearchAddon struct {
	base
	query   string
	matches []headlessterm.Position
	index   int
}

func NewSearchAddon() *SearchAddon { return &SearchAddon{} }

func (a *SearchAddon) Activate(s surface.Surface) error {
	_, err := a.bind(s)
	return err
}

// FindNext moves to the next match of query after the current one, wrapping
// around. Screen matches are selected; scrollback matches scroll the
// viewport to them. It reports whether anything matched.
func (a *SearchAddon) FindNext(query string) bool { return a.find(query, 1) }

// FindPrevious is FindNext in reverse.
func (a *SearchAddon) FindPrevious(query string) bool { return a.find(query, -1) }

func (a *SearchAddon) find(query string, step int) bool {
	s, err := a.bound()
	if err != nil || query == "" {
		return false
	}

	a.mu.Lock()
	if query != a.query {
		a.query = query
		a.matches = collectMatches(s, query)
		if step > 0 {
			a.index = -1
		} else {
			a.index = len(a.matches)
		}
	}
	if len(a.matches) == 0 {
		a.mu.Unlock()
		return false
	}
	a.index = (a.index + step + len(a.matches)) % len(a.matches)
	match := a.matches[a.index]
	a.mu.Unlock()

	width := len([]rune(query))
	if match.Row < 0 {
		// scrollback rows are negative, -1 being the newest
		s.ClearSelection()
		s.setOffset(-match.Row)
		return true
	}
	s.ScrollToBottom()
	s.Select(match, headlessterm.Position{Row: match.Row, Col: match.Col + width - 1})
	return true
}

// Reset forgets the cached matches so the next search rescans.
func (a *SearchAddon) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.query = ""
	a.matches = nil
	a.index = 0
}

func collectMatches(s *Surface, query string) []headlessterm.Position {
	matches := append(s.term.SearchScrollback(query), s.term.Search(query)...)
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Before(matches[j]) })
	return matches
}

func (a *SearchAddon) Dispose() error {
	a.Reset()
	a.release()
	return nil
}

// Link is a hyperlink found on screen.
type Link struct {
	URI   string
	Row   int
	Start int
	End   int
}

var urlPattern = regexp.MustCompile(`(?:https?|ftp)://[^\s<>"'` + "`" + `]+[^\s<>"'` + "`" + `.,;:!?)\]]`)

// LinkAddon detects URLs in the visible screen, plus OSC 8 hyperlinks set by
// the remote, and activates them through a handler.
type LinkAddon struct {
	base
	handler func(uri string)
}

// NewLinkAddon creates a link addon that passes activated links to handler.
func NewLinkAddon(handler func(uri string)) *LinkAddon {
	return &LinkAddon{handler: handler}
}

func (l *LinkAddon) Activate(s surface.Surface) error {
	_, err := l.bind(s)
	return err
}

// Links lists every link on the screen.
func (l *LinkAddon) Links() []Link {
	s, err := l.bound()
	if err != nil {
		return nil
	}

	var links []Link
	rows, cols := s.term.Rows(), s.term.Cols()
	for row := 0; row < rows; row++ {
		line := s.term.LineContent(row)
		for _, m := range urlPattern.FindAllStringIndex(line, -1) {
			start := utf8.RuneCountInString(line[:m[0]])
			end := start + utf8.RuneCountInString(line[m[0]:m[1]]) - 1
			links = append(links, Link{URI: line[m[0]:m[1]], Row: row, Start: start, End: end})
		}

		// OSC 8 runs
		cur := -1
		for col := 0; col < cols; col++ {
			cell := s.term.Cell(row, col)
			var uri string
			if cell != nil && cell.Hyperlink != nil {
				uri = cell.Hyperlink.URI
			}
			switch {
			case uri == "":
				cur = -1
			case cur >= 0 && links[cur].URI == uri:
				links[cur].End = col
			default:
				links = append(links, Link{URI: uri, Row: row, Start: col, End: col})
				cur = len(links) - 1
			}
		}
	}
	return links
}

// LinkAt returns the link covering a screen cell.
func (l *LinkAddon) LinkAt(row, col int) (Link, bool) {
	for _, link := range l.Links() {
		if link.Row == row && col >= link.Start && col <= link.End {
			return link, true
		}
	}
	return Link{}, false
}

// Open activates the link at a screen cell.
func (l *LinkAddon) Open(row, col int) bool {
	link, ok := l.LinkAt(row, col)
	if !ok || l.handler == nil {
		return false
	}
	l.handler(link.URI)
	return true
}

func (l *LinkAddon) Dispose() error {
	l.release()
	return nil
}

// DefaultImageMemory bounds image storage when the image addon is loaded.
const DefaultImageMemory int64 = 64 << 20

// ImageAddon keeps sixel and kitty graphics sent by the remote. Without it
// the surface discards images as they arrive.
type ImageAddon struct {
	base
	maxMemory int64
}

// NewImageAddon creates an image addon with a memory budget in bytes.
func NewImageAddon(maxMemory int64) *ImageAddon {
	if maxMemory <= 0 {
		maxMemory = DefaultImageMemory
	}
	return &ImageAddon{maxMemory: maxMemory}
}

func (a *ImageAddon) Activate(s surface.Surface) error {
	hs, err := a.bind(s)
	if err != nil {
		return err
	}
	hs.term.SetImageMaxMemory(a.maxMemory)
	hs.setKeepImages(true)
	return nil
}

// Images returns how many images are stored.
func (a *ImageAddon) Images() int {
	s, err := a.bound()
	if err != nil {
		return 0
	}
	return s.term.ImageCount()
}

func (a *ImageAddon) Dispose() error {
	s, err := a.bound()
	if err != nil {
		return nil
	}
	s.setKeepImages(false)
	s.term.ClearImages()
	a.release()
	return nil
}

// Catalog builds headless addons for the composer.
type Catalog struct {
	// Out receives rendered frames; nil discards them.
	Out io.Writer
	// OpenLink handles activated hyperlinks.
	OpenLink func(uri string)
	// ImageMemory is the image budget in bytes.
	ImageMemory int64
}

var _ addon.Catalog = (*Catalog)(nil)

func (c *Catalog) Fit() surface.Fitter      { return NewFitAddon() }
func (c *Catalog) Search() surface.Addon    { return NewSearchAddon() }
func (c *Catalog) Hyperlink() surface.Addon { return NewLinkAddon(c.OpenLink) }
func (c *Catalog) Image() surface.Addon     { return NewImageAddon(c.ImageMemory) }

func (c *Catalog) Renderer(variant addon.Renderer) surface.Addon {
	out := c.Out
	if out == nil {
		out = io.Discard
	}
	if variant == addon.RendererAccelerated {
		return NewDamageRenderer(out)
	}
	return NewFullRenderer(out)
}
