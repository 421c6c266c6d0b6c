package addon

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/preference"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

// Kind tags a capability in the addon set.
type Kind int

const (
	KindFit Kind = iota
	KindSearch
	KindHyperlink
	KindImage
	KindRenderer
)

func (k Kind) String() string {
	switch k {
	case KindFit:
		return "fit"
	case KindSearch:
		return "search"
	case KindHyperlink:
		return "hyperlink"
	case KindImage:
		return "image"
	case KindRenderer:
		return "renderer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Renderer selects the rendering backend variant.
type Renderer int

const (
	RendererFallback Renderer = iota
	RendererAccelerated
)

func (r Renderer) String() string {
	if r == RendererAccelerated {
		return "accelerated"
	}
	return "fallback"
}

// Descriptor identifies one entry of the set. Renderer is meaningful only
// for KindRenderer.
type Descriptor struct {
	Kind     Kind
	Renderer Renderer
}

func (d Descriptor) String() string {
	if d.Kind == KindRenderer {
		return d.Kind.String() + "(" + d.Renderer.String() + ")"
	}
	return d.Kind.String()
}

var (
	// ErrNoCatalog is returned by Compose when there is nothing to build addons from.
	ErrNoCatalog = errors.New("no addon catalog")
	// ErrMissingAddon reports a requested entry the catalog could not supply.
	ErrMissingAddon = errors.New("catalog supplied no addon")
)

// Catalog constructs addon instances. A constructor returns nil when the
// host cannot provide the capability; Compose reports that as ErrMissingAddon.
type Catalog interface {
	Fit() surface.Fitter
	Search() surface.Addon
	Hyperlink() surface.Addon
	Image() surface.Addon
	Renderer(variant Renderer) surface.Addon
}

// Entry pairs a descriptor with its instance.
type Entry struct {
	Descriptor
	Addon surface.Addon
}

// Set is the composed collection of addons for one surface.
type Set struct {
	fit       surface.Fitter
	search    surface.Addon
	hyperlink surface.Addon
	image     surface.Addon
	renderer  surface.Addon
	variant   Renderer

	mu       sync.Mutex
	disposed bool
}

// Compose builds the addon set for the plugin settings. Fit and search are
// always requested, exactly one renderer variant is chosen, and hyperlink and
// image are requested only when enabled. Every requested entry the catalog
// returns nil for is reported in the error, wrapping ErrMissingAddon; the
// returned set holds the entries that were supplied. Use Complete to tell a
// missing optional entry from a missing required one.
func Compose(plugins preference.Plugins, catalog Catalog) (*Set, error) {
	s := &Set{variant: RendererFallback}
	if plugins.EnableWebglPlugin {
		s.variant = RendererAccelerated
	}
	if catalog == nil {
		return s, ErrNoCatalog
	}

	var errs error
	request := func(d Descriptor, a surface.Addon) surface.Addon {
		if a == nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrMissingAddon, d))
		}
		return a
	}

	s.fit = catalog.Fit()
	if s.fit == nil {
		request(Descriptor{Kind: KindFit}, nil)
	}
	s.search = request(Descriptor{Kind: KindSearch}, catalog.Search())
	if plugins.EnableWeblinkPlugin {
		s.hyperlink = request(Descriptor{Kind: KindHyperlink}, catalog.Hyperlink())
	}
	s.renderer = request(Descriptor{Kind: KindRenderer, Renderer: s.variant}, catalog.Renderer(s.variant))
	if plugins.EnableImagePlugin {
		s.image = request(Descriptor{Kind: KindImage}, catalog.Image())
	}
	return s, errs
}

// Complete reports whether the entries every surface needs are present:
// fit, search and one renderer.
func (s *Set) Complete() bool {
	return s.fit != nil && s.search != nil && s.renderer != nil
}

// All returns the present entries.
func (s *Set) All() []Entry {
	entries := make([]Entry, 0, 5)
	add := func(d Descriptor, a surface.Addon) {
		if a != nil {
			entries = append(entries, Entry{Descriptor: d, Addon: a})
		}
	}
	add(Descriptor{Kind: KindFit}, s.fit)
	add(Descriptor{Kind: KindSearch}, s.search)
	add(Descriptor{Kind: KindHyperlink}, s.hyperlink)
	add(Descriptor{Kind: KindRenderer, Renderer: s.variant}, s.renderer)
	add(Descriptor{Kind: KindImage}, s.image)
	return entries
}

// Has reports whether an entry of kind k is present.
func (s *Set) Has(k Kind) bool {
	for _, e := range s.All() {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Fit returns the fit addon, or nil when the catalog supplied none.
func (s *Set) Fit() surface.Fitter { return s.fit }

// RendererVariant reports which renderer was chosen.
func (s *Set) RendererVariant() Renderer { return s.variant }

// Load loads every entry into the surface. A failing addon does not stop
// the others; all failures are returned combined. A set missing a required
// entry loads what it has and reports the gap.
func (s *Set) Load(surf surface.Surface) error {
	var errs error
	if !s.Complete() {
		errs = multierr.Append(errs, s.missing())
	}
	for _, e := range s.All() {
		if err := load(surf, e); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("load %s addon: %w", e.Descriptor, err))
		}
	}
	return errs
}

// Dispose disposes every entry, continuing past failures. A second call
// returns nil without touching the addons.
func (s *Set) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	s.mu.Unlock()

	var errs error
	for _, e := range s.All() {
		if err := dispose(e); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dispose %s addon: %w", e.Descriptor, err))
		}
	}
	return errs
}

func (s *Set) missing() error {
	var errs error
	if s.fit == nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrMissingAddon, Descriptor{Kind: KindFit}))
	}
	if s.search == nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrMissingAddon, Descriptor{Kind: KindSearch}))
	}
	if s.renderer == nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrMissingAddon, Descriptor{Kind: KindRenderer, Renderer: s.variant}))
	}
	return errs
}

func load(surf surface.Surface, e Entry) (err error) {
	defer recoverInto(&err)
	return surf.LoadAddon(e.Addon)
}

func dispose(e Entry) (err error) {
	defer recoverInto(&err)
	return e.Addon.Dispose()
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}
