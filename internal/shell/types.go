package shell

import (
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/shared/id"
)

// Spec describes a shell to start.
type Spec struct {
	Shell      string
	WorkingDir string
	Cols       int
	Rows       int
	Env        map[string]string
}

// Sink receives a shell's output and its exit. Calls for one shell come
// from a single goroutine.
type Sink interface {
	Output(shellID id.ShellID, data []byte)
	Exited(shellID id.ShellID, err error)
}

// SinkFuncs adapts two functions to Sink. Either may be nil.
type SinkFuncs struct {
	OnOutput func(shellID id.ShellID, data []byte)
	OnExit   func(shellID id.ShellID, err error)
}

func (s SinkFuncs) Output(shellID id.ShellID, data []byte) {
	if s.OnOutput != nil {
		s.OnOutput(shellID, data)
	}
}

func (s SinkFuncs) Exited(shellID id.ShellID, err error) {
	if s.OnExit != nil {
		s.OnExit(shellID, err)
	}
}

// Shell is a running shell process behind a PTY.
type Shell struct {
	ID         id.ShellID
	Path       string
	WorkingDir string
	StartedAt  time.Time

	cmd     *exec.Cmd
	ptmx    *os.File
	sink    Sink
	backlog *Buffer

	mu     sync.RWMutex
	cols   int
	rows   int
	closed bool
	done   chan struct{}
}

// Info is the public view of a shell.
type Info struct {
	ID         id.ShellID `json:"id"`
	Shell      string     `json:"shell"`
	WorkingDir string     `json:"working_dir"`
	Cols       int        `json:"cols"`
	Rows       int        `json:"rows"`
	StartedAt  time.Time  `json:"started_at"`
	Active     bool       `json:"active"`
}

func (s *Shell) info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:         s.ID,
		Shell:      s.Path,
		WorkingDir: s.WorkingDir,
		Cols:       s.cols,
		Rows:       s.rows,
		StartedAt:  s.StartedAt,
		Active:     !s.closed,
	}
}

// Buffer is a thread-safe ring buffer holding the most recent output.
type Buffer struct {
	data []byte
	size int
	head int
	tail int
	mu   sync.Mutex
}

// NewBuffer creates a ring buffer of size bytes.
func NewBuffer(size int) *Buffer {
	return &Buffer{
		data: make([]byte, size+1),
		size: size + 1,
	}
}

// Write appends p, overwriting the oldest bytes when full.
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range p {
		b.data[b.tail] = c
		b.tail = (b.tail + 1) % b.size
		if b.tail == b.head {
			b.head = (b.head + 1) % b.size
		}
	}
	return len(p), nil
}

// Drain returns the buffered bytes and empties the buffer.
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.head == b.tail {
		return []byte{}
	}

	var out []byte
	if b.tail > b.head {
		out = make([]byte, b.tail-b.head)
		copy(out, b.data[b.head:b.tail])
	} else {
		first, second := b.data[b.head:], b.data[:b.tail]
		out = make([]byte, len(first)+len(second))
		copy(out, first)
		copy(out[len(first):], second)
	}
	b.head = b.tail
	return out
}
