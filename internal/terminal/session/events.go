package session

import (
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
)

// wire registers the surface and mount target handlers. Preferences are
// read when each event fires, not when it is registered.
func (c *Controller) wire(surf surface.Surface, target surface.MountTarget) {
	surf.OnData(c.handleInput)
	surf.OnBell(c.handleBell)
	surf.OnSelectionChange(c.handleSelectionChange)
	surf.OnResize(c.handleResize)
	if target != nil {
		target.OnContextMenu(c.handleContextMenu)
	}
}

func (c *Controller) handleInput(data string) {
	if ok, reason := c.gate(); !ok {
		c.observer.FrameDropped(protocol.TypeInput.String(), reason)
		return
	}
	c.send(protocol.TypeInput, protocol.Input(c.sessionID, data))
}

func (c *Controller) handleResize(cols, rows int) {
	c.mu.Lock()
	connected := c.connected && !c.closed
	c.mu.Unlock()

	if !connected {
		c.observer.FrameDropped(protocol.TypeResize.String(), dropDisconnected)
		return
	}
	c.send(protocol.TypeResize, protocol.Resize(c.sessionID, cols, rows))
}

func (c *Controller) handleBell() {
	if c.store.Snapshot().Interact.EnableBell {
		c.bell.Ring()
	}
}

func (c *Controller) handleSelectionChange() {
	if c.store.Snapshot().Interact.SelectionChangeCopy {
		c.CopySelection()
	}
}

func (c *Controller) handleContextMenu(ev *surface.ContextMenuEvent) {
	it := c.store.Snapshot().Interact
	if it.RightClickSelectsWord || it.RightClickPaste || it.EnableRightClickMenu {
		ev.PreventDefault()
	}
	selected := false
	if it.RightClickSelectsWord {
		selected = c.selectWordAt(ev.Row, ev.Col)
	}
	// A click that landed on a word selects it instead of pasting.
	if !it.RightClickPaste || selected {
		return
	}
	if ok, _ := c.gate(); !ok {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.pending.Done()
		c.pasteFromClipboard()
	}()
}

// selectWordAt selects the word under the clicked cell. Surfaces that cannot
// locate words report their current selection instead.
func (c *Controller) selectWordAt(row, col int) bool {
	surf := c.surface()
	if surf == nil {
		return false
	}
	if ws, ok := surf.(surface.WordSelector); ok {
		return ws.SelectWordAt(row, col)
	}
	return surf.HasSelection()
}

// pasteFromClipboard reads the clipboard and pastes it. The gate is checked
// again once the read returns since the session may have been disconnected,
// made read-only or closed in the meantime.
func (c *Controller) pasteFromClipboard() {
	text, err := c.clipboard.ReadText(c.ctx)
	if err != nil {
		if c.ctx.Err() == nil {
			c.logger.Warn("Failed to read clipboard", zap.Error(err))
			c.observer.ResourceFailed("clipboard", "read", err)
		}
		return
	}
	if text == "" {
		return
	}
	if ok, reason := c.gate(); !ok {
		c.logger.Debug("Discarding clipboard paste", zap.String("reason", reason))
		return
	}
	c.PasteTrimEnd(text)
}
