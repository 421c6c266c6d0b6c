package session

import (
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/addon"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/preference"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

// Option configures a Controller.
type Option func(*Controller)

// WithStore sets the preference store read at each point of use.
func WithStore(store preference.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

// WithSurfaceFactory sets how Init builds the rendering surface.
func WithSurfaceFactory(factory surface.Factory) Option {
	return func(c *Controller) { c.factory = factory }
}

// WithCatalog sets the addon constructors. Init fails without one.
func WithCatalog(catalog addon.Catalog) Option {
	return func(c *Controller) {
		if catalog != nil {
			c.catalog = catalog
		}
	}
}

// WithClipboard sets the clipboard utility.
func WithClipboard(cb Clipboard) Option {
	return func(c *Controller) {
		if cb != nil {
			c.clipboard = cb
		}
	}
}

// WithBell sets the bell collaborator.
func WithBell(b Bell) Option {
	return func(c *Controller) {
		if b != nil {
			c.bell = b
		}
	}
}

// WithObserver sets the telemetry sink.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the base logger. Session fields are added by the controller.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}
