package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/clipboard"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/headless"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/preference"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/session"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

// addonCatalog keeps the search and link addons it builds so the escape-key
// commands can drive them.
type addonCatalog struct {
	*headless.Catalog
	search *headless.SearchAddon
	links  *headless.LinkAddon
}

func (c *addonCatalog) Search() surface.Addon {
	c.search = headless.NewSearchAddon()
	return c.search
}

func (c *addonCatalog) Hyperlink() surface.Addon {
	c.links = headless.NewLinkAddon(c.OpenLink)
	return c.links
}

// commands runs the local escape-key actions.
type commands struct {
	ctrl   *session.Controller
	clip   *clipboard.OSC52
	search *headless.SearchAddon
	links  *headless.LinkAddon
	stop   func(string)
	logger *logging.Logger
	theme  int
	query  string
}

func (c *commands) apply(cmd command) {
	switch cmd.act {
	case actQuit:
		c.stop("quit")
	case actClear:
		c.ctrl.Clear()
	case actSelectAll:
		c.ctrl.SelectAll()
	case actCopy:
		c.ctrl.CopySelection()
	case actPaste:
		text, err := c.clip.ReadText(context.Background())
		if err != nil {
			c.logger.Debug("Clipboard read failed", zap.Error(err))
			return
		}
		c.ctrl.PasteTrimEnd(text)
	case actTop:
		c.ctrl.ToTop()
	case actBottom:
		c.ctrl.ToBottom()
	case actFit:
		c.ctrl.Fit()
	case actToggleWrite:
		c.ctrl.SetCanWrite(!c.ctrl.CanWrite())
	case actTheme:
		names := preference.ThemeNames()
		c.theme = (c.theme + 1) % len(names)
		if err := c.ctrl.SetOption(surface.OptionTheme, names[c.theme]); err != nil {
			c.logger.Debug("Theme change failed", zap.Error(err))
		}
	case actSearch:
		if c.search != nil {
			c.search.Reset()
		}
		c.query = cmd.query
		c.find(true)
	case actFindNext:
		c.find(true)
	case actFindPrevious:
		c.find(false)
	case actOpenLink:
		c.openLastLink()
	}
}

// find moves to the next or previous match of the last query.
func (c *commands) find(forward bool) bool {
	if c.search == nil || c.query == "" {
		return false
	}
	var found bool
	if forward {
		found = c.search.FindNext(c.query)
	} else {
		found = c.search.FindPrevious(c.query)
	}
	if !found {
		c.logger.Debug("No match", zap.String("query", c.query))
	}
	return found
}

// openLastLink activates the bottom-most link on screen, the one most
// likely printed by the last command.
func (c *commands) openLastLink() bool {
	if c.links == nil {
		c.logger.Debug("Link detection is disabled")
		return false
	}
	found := c.links.Links()
	if len(found) == 0 {
		c.logger.Debug("No link on screen")
		return false
	}
	last := found[len(found)-1]
	return c.links.Open(last.Row, last.Start)
}
