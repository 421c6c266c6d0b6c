package addon

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/preference"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

type fakeAddon struct {
	name       string
	loadErr    error
	disposeErr error
	activated  int
	disposed   int
}

func (f *fakeAddon) Activate(surface.Surface) error {
	f.activated++
	return f.loadErr
}

func (f *fakeAddon) Dispose() error {
	f.disposed++
	return f.disposeErr
}

type fakeFitter struct{ fakeAddon }

func (f *fakeFitter) Fit() error { return nil }

type fakeCatalog struct {
	fit         *fakeFitter
	search      *fakeAddon
	hyperlink   *fakeAddon
	image       *fakeAddon
	accelerated *fakeAddon
	fallback    *fakeAddon
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		fit:         &fakeFitter{fakeAddon{name: "fit"}},
		search:      &fakeAddon{name: "search"},
		hyperlink:   &fakeAddon{name: "hyperlink"},
		image:       &fakeAddon{name: "image"},
		accelerated: &fakeAddon{name: "accelerated"},
		fallback:    &fakeAddon{name: "fallback"},
	}
}

func (c *fakeCatalog) Fit() surface.Fitter      { return c.fit }
func (c *fakeCatalog) Search() surface.Addon    { return c.search }
func (c *fakeCatalog) Hyperlink() surface.Addon { return c.hyperlink }
func (c *fakeCatalog) Image() surface.Addon     { return c.image }
func (c *fakeCatalog) Renderer(v Renderer) surface.Addon {
	if v == RendererAccelerated {
		return c.accelerated
	}
	return c.fallback
}

// loaderSurface implements only LoadAddon; the composer never calls anything else.
type loaderSurface struct {
	surface.Surface
	loaded []surface.Addon
}

func (s *loaderSurface) LoadAddon(a surface.Addon) error {
	s.loaded = append(s.loaded, a)
	return a.Activate(s)
}

func kinds(s *Set) []string {
	var out []string
	for _, e := range s.All() {
		out = append(out, e.Descriptor.String())
	}
	return out
}

func TestComposeAllFlagCombinations(t *testing.T) {
	for mask := 0; mask < 8; mask++ {
		plugins := preference.Plugins{
			EnableWeblinkPlugin: mask&1 != 0,
			EnableWebglPlugin:   mask&2 != 0,
			EnableImagePlugin:   mask&4 != 0,
		}
		t.Run(fmt.Sprintf("%+v", plugins), func(t *testing.T) {
			set, err := Compose(plugins, newFakeCatalog())
			require.NoError(t, err)

			renderers := 0
			for _, e := range set.All() {
				if e.Kind == KindRenderer {
					renderers++
				}
			}
			assert.Equal(t, 1, renderers, "exactly one renderer")
			assert.True(t, set.Has(KindFit))
			assert.True(t, set.Has(KindSearch))
			assert.Equal(t, plugins.EnableWeblinkPlugin, set.Has(KindHyperlink))
			assert.Equal(t, plugins.EnableImagePlugin, set.Has(KindImage))

			want := RendererFallback
			if plugins.EnableWebglPlugin {
				want = RendererAccelerated
			}
			assert.Equal(t, want, set.RendererVariant())
		})
	}
}

func TestComposeImageWithFallbackRenderer(t *testing.T) {
	catalog := newFakeCatalog()
	set, err := Compose(preference.Plugins{EnableImagePlugin: true}, catalog)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"fit", "search", "renderer(fallback)", "image"}, kinds(set))

	surf := &loaderSurface{}
	require.NoError(t, set.Load(surf))
	assert.Len(t, surf.loaded, 4)
	assert.Equal(t, 0, catalog.accelerated.activated)

	require.NoError(t, set.Dispose())
	for _, a := range []*fakeAddon{&catalog.fit.fakeAddon, catalog.search, catalog.fallback, catalog.image} {
		assert.Equal(t, 1, a.disposed, a.name)
	}
	assert.Equal(t, 0, catalog.hyperlink.disposed)
}

func TestLoadIsolatesFailures(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.search.loadErr = errors.New("no search backend")
	catalog.accelerated.loadErr = errors.New("no gpu")

	set, err := Compose(preference.Plugins{EnableWebglPlugin: true, EnableWeblinkPlugin: true}, catalog)
	require.NoError(t, err)
	err = set.Load(&loaderSurface{})

	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Contains(t, err.Error(), "load search addon")
	assert.Contains(t, err.Error(), "load renderer(accelerated) addon")
	assert.Equal(t, 1, catalog.hyperlink.activated, "later addons still load")
	assert.Equal(t, 1, catalog.fit.activated)
}

func TestDisposeContinuesPastFailuresAndIsIdempotent(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.fit.disposeErr = errors.New("fit leak")
	catalog.fallback.disposeErr = errors.New("renderer leak")

	set, err := Compose(preference.Plugins{}, catalog)
	require.NoError(t, err)
	err = set.Dispose()

	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 1, catalog.search.disposed)

	assert.NoError(t, set.Dispose())
	assert.Equal(t, 1, catalog.search.disposed)
	assert.Equal(t, 1, catalog.fit.disposed)
}

type panickyAddon struct{ mock.Mock }

func (p *panickyAddon) Activate(s surface.Surface) error { return p.Called(s).Error(0) }
func (p *panickyAddon) Dispose() error {
	p.Called()
	panic("dispose exploded")
}

type panickyCatalog struct {
	*fakeCatalog
	image *panickyAddon
}

func (c panickyCatalog) Image() surface.Addon { return c.image }

func TestDisposeRecoversPanics(t *testing.T) {
	bad := &panickyAddon{}
	bad.On("Dispose").Once()

	catalog := panickyCatalog{fakeCatalog: newFakeCatalog(), image: bad}
	set, err := Compose(preference.Plugins{EnableImagePlugin: true}, catalog)
	require.NoError(t, err)

	assert.NotPanics(t, func() { err = set.Dispose() })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispose image addon: panic: dispose exploded")
	assert.Equal(t, 1, catalog.fallback.disposed)
	bad.AssertExpectations(t)
}

type sparseCatalog struct {
	*fakeCatalog
	noFit, noSearch, noRenderer, noHyperlink bool
}

func (c sparseCatalog) Fit() surface.Fitter {
	if c.noFit {
		return nil
	}
	return c.fakeCatalog.Fit()
}

func (c sparseCatalog) Search() surface.Addon {
	if c.noSearch {
		return nil
	}
	return c.search
}

func (c sparseCatalog) Hyperlink() surface.Addon {
	if c.noHyperlink {
		return nil
	}
	return c.hyperlink
}

func (c sparseCatalog) Renderer(v Renderer) surface.Addon {
	if c.noRenderer {
		return nil
	}
	return c.fakeCatalog.Renderer(v)
}

func TestComposeReportsMissingEntries(t *testing.T) {
	tests := []struct {
		name     string
		catalog  sparseCatalog
		plugins  preference.Plugins
		missing  []string
		complete bool
	}{
		{
			name:     "optional hyperlink",
			catalog:  sparseCatalog{fakeCatalog: newFakeCatalog(), noHyperlink: true},
			plugins:  preference.Plugins{EnableWeblinkPlugin: true},
			missing:  []string{"hyperlink"},
			complete: true,
		},
		{
			name:    "fit and search",
			catalog: sparseCatalog{fakeCatalog: newFakeCatalog(), noFit: true, noSearch: true},
			missing: []string{"fit", "search"},
		},
		{
			name:    "renderer",
			catalog: sparseCatalog{fakeCatalog: newFakeCatalog(), noRenderer: true},
			plugins: preference.Plugins{EnableWebglPlugin: true},
			missing: []string{"renderer(accelerated)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Compose(tt.plugins, tt.catalog)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingAddon)

			errs := multierr.Errors(err)
			require.Len(t, errs, len(tt.missing))
			for i, name := range tt.missing {
				assert.Contains(t, errs[i].Error(), name)
			}
			assert.Equal(t, tt.complete, set.Complete())

			loadErr := set.Load(&loaderSurface{})
			if tt.complete {
				assert.NoError(t, loadErr)
			} else {
				assert.ErrorIs(t, loadErr, ErrMissingAddon)
			}
		})
	}
}

func TestComposeWithoutCatalog(t *testing.T) {
	set, err := Compose(preference.Plugins{}, nil)
	assert.ErrorIs(t, err, ErrNoCatalog)
	assert.Empty(t, set.All())
	assert.False(t, set.Complete())
}

func TestDescriptorString(t *testing.T) {
	assert.Equal(t, "renderer(accelerated)", Descriptor{Kind: KindRenderer, Renderer: RendererAccelerated}.String())
	assert.Equal(t, "hyperlink", Descriptor{Kind: KindHyperlink}.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
