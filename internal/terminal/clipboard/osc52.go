package clipboard

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
)

// MaxOSC52Payload is the largest text forwarded through OSC 52. Many
// terminals drop longer sequences.
const MaxOSC52Payload = 74994

// ErrTooLarge is returned when a copy exceeds MaxOSC52Payload.
var ErrTooLarge = fmt.Errorf("clipboard text exceeds %d bytes", MaxOSC52Payload)

// OSC52 copies to the clipboard of the terminal that w is connected to.
// Terminals do not answer OSC 52 reads reliably, so reads come from a local
// Memory that mirrors every copy.
type OSC52 struct {
	mu    sync.Mutex
	w     io.Writer
	local *Memory
}

// NewOSC52 writes copies to w and mirrors them in local. A nil local gets
// a fresh Memory.
func NewOSC52(w io.Writer, local *Memory) *OSC52 {
	if local == nil {
		local = NewMemory()
	}
	return &OSC52{w: w, local: local}
}

// ReadText returns the last text copied through this clipboard.
func (o *OSC52) ReadText(ctx context.Context) (string, error) {
	return o.local.ReadText(ctx)
}

// Copy sends text to the local terminal's clipboard.
func (o *OSC52) Copy(text string, silent bool) error {
	if len(text) > MaxOSC52Payload {
		return ErrTooLarge
	}
	seq := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\x07"

	o.mu.Lock()
	_, err := io.WriteString(o.w, seq)
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write osc52: %w", err)
	}
	return o.local.Copy(text, silent)
}

// Local returns the mirror clipboard.
func (o *OSC52) Local() *Memory { return o.local }
