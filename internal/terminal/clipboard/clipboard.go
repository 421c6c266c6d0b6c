// Package clipboard implements the clipboard collaborators used by a
// terminal session: an in-process clipboard with history, and an OSC 52
// writer that hands copies to the user's local terminal.
package clipboard

import (
	"context"
	"sync"
	"time"
)

// DefaultHistorySize bounds Memory history when no size is given.
const DefaultHistorySize = 50

// Entry is one copied text.
type Entry struct {
	ID       uint64
	Text     string
	Silent   bool
	CopiedAt time.Time
}

// Stats summarises clipboard usage.
type Stats struct {
	Copies  uint64
	Reads   uint64
	Entries int
}

// Memory is an in-process clipboard. It keeps a bounded history, newest
// last, and notifies a callback on every copy that is not silent.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	nextID  uint64
	reads   uint64
	notify  func(Entry)
}

// MemoryOption configures a Memory clipboard.
type MemoryOption func(*Memory)

// WithHistorySize bounds the history.
func WithHistorySize(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithNotify is called after every non-silent copy.
func WithNotify(fn func(Entry)) MemoryOption {
	return func(m *Memory) { m.notify = fn }
}

// NewMemory creates an empty clipboard.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{limit: DefaultHistorySize}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReadText returns the most recent text, or "" when empty.
func (m *Memory) ReadText(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if len(m.entries) == 0 {
		return "", nil
	}
	return m.entries[len(m.entries)-1].Text, nil
}

// Copy stores text. Silent copies skip the notification.
func (m *Memory) Copy(text string, silent bool) error {
	m.mu.Lock()
	m.nextID++
	e := Entry{ID: m.nextID, Text: text, Silent: silent, CopiedAt: time.Now()}
	m.entries = append(m.entries, e)
	if over := len(m.entries) - m.limit; over > 0 {
		m.entries = append(m.entries[:0], m.entries[over:]...)
	}
	notify := m.notify
	m.mu.Unlock()

	if !silent && notify != nil {
		notify(e)
	}
	return nil
}

// History returns up to limit entries, newest first. A limit <= 0 returns
// everything.
func (m *Memory) History(limit int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out
}

// Entry looks up a history entry by ID.
func (m *Memory) Entry(id uint64) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Clear drops the history.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

// Stats returns usage counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Copies: m.nextID, Reads: m.reads, Entries: len(m.entries)}
}

// Provider lets the remote read and write this clipboard through OSC 52.
// Both the clipboard and primary selections map to the same history.
func (m *Memory) Provider() *Provider { return &Provider{m: m} }

// Provider adapts Memory to the emulator's clipboard provider interface.
type Provider struct{ m *Memory }

// Read returns the latest text for any selection.
func (p *Provider) Read(byte) string {
	text, _ := p.m.ReadText(context.Background())
	return text
}

// Write records text set by the remote. It is always silent.
func (p *Provider) Write(_ byte, data []byte) {
	_ = p.m.Copy(string(data), true)
}
