// Package shell runs local shells behind pseudo-terminals and streams their
// output to a sink.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shared/id"
)

const (
	defaultShell   = "/bin/bash"
	defaultCols    = 80
	defaultRows    = 24
	readBufferSize = 4096
	// BacklogSize bounds the output kept for Backlog.
	BacklogSize = 1024 * 1024
)

var (
	ErrNotFound = errors.New("shell not found")
	ErrClosed   = errors.New("shell is closed")
)

// Manager owns running shells.
type Manager struct {
	shells sync.Map // map[id.ShellID]*Shell
	logger *logging.Logger
}

// NewManager creates a manager. A nil logger discards logs.
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{logger: logger.Named("shell")}
}

// Start launches a shell described by spec and streams its output to sink.
func (m *Manager) Start(spec Spec, sink Sink) (Info, error) {
	if spec.Shell == "" {
		spec.Shell = os.Getenv("SHELL")
		if spec.Shell == "" {
			spec.Shell = defaultShell
		}
	}
	if spec.WorkingDir == "" {
		spec.WorkingDir = os.Getenv("HOME")
		if spec.WorkingDir == "" {
			spec.WorkingDir = os.TempDir()
		}
	}
	if spec.Cols <= 0 {
		spec.Cols = defaultCols
	}
	if spec.Rows <= 0 {
		spec.Rows = defaultRows
	}
	if sink == nil {
		sink = SinkFuncs{}
	}

	cmd := exec.Command(spec.Shell)
	cmd.Dir = spec.WorkingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for key, value := range spec.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(spec.Rows),
		Cols: uint16(spec.Cols),
	})
	if err != nil {
		return Info{}, fmt.Errorf("failed to start PTY: %w", err)
	}

	sh := &Shell{
		ID:         id.NewShellID(),
		Path:       spec.Shell,
		WorkingDir: spec.WorkingDir,
		StartedAt:  time.Now(),
		cmd:        cmd,
		ptmx:       ptmx,
		sink:       sink,
		backlog:    NewBuffer(BacklogSize),
		cols:       spec.Cols,
		rows:       spec.Rows,
		done:       make(chan struct{}),
	}
	m.shells.Store(sh.ID, sh)
	m.logger.Info("Shell started",
		zap.String("shell_id", sh.ID.String()),
		zap.String("shell", sh.Path),
		zap.Int("pid", cmd.Process.Pid))

	// The reader ends when the PTY closes, which monitor does after exit.
	readerDone := make(chan struct{})
	go m.readOutput(sh, readerDone)
	go m.monitor(sh, readerDone)

	return sh.info(), nil
}

func (m *Manager) readOutput(sh *Shell, done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, readBufferSize)
	for {
		n, err := sh.ptmx.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			_, _ = sh.backlog.Write(data)
			sh.sink.Output(sh.ID, data)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				m.logger.Debug("PTY read ended", zap.String("shell_id", sh.ID.String()), zap.Error(err))
			}
			return
		}
	}
}

func (m *Manager) monitor(sh *Shell, readerDone <-chan struct{}) {
	waitErr := sh.cmd.Wait()

	// Let the reader drain what the process wrote before exiting.
	select {
	case <-readerDone:
	case <-time.After(500 * time.Millisecond):
	}

	sh.mu.Lock()
	sh.closed = true
	sh.mu.Unlock()
	_ = sh.ptmx.Close()
	<-readerDone

	m.shells.Delete(sh.ID)
	close(sh.done)
	m.logger.Info("Shell exited", zap.String("shell_id", sh.ID.String()), zap.Error(waitErr))
	sh.sink.Exited(sh.ID, waitErr)
}

func (m *Manager) lookup(shellID id.ShellID) (*Shell, error) {
	value, ok := m.shells.Load(shellID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, shellID)
	}
	return value.(*Shell), nil
}

// Write sends input to a shell.
func (m *Manager) Write(shellID id.ShellID, input []byte) error {
	sh, err := m.lookup(shellID)
	if err != nil {
		return err
	}

	sh.mu.RLock()
	closed := sh.closed
	sh.mu.RUnlock()
	if closed {
		return fmt.Errorf("%w: %s", ErrClosed, shellID)
	}

	_, err = sh.ptmx.Write(input)
	return err
}

// Backlog drains the recent output kept for a shell.
func (m *Manager) Backlog(shellID id.ShellID) ([]byte, error) {
	sh, err := m.lookup(shellID)
	if err != nil {
		return nil, err
	}
	return sh.backlog.Drain(), nil
}

// Resize changes a shell's window size.
func (m *Manager) Resize(shellID id.ShellID, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid size %dx%d", cols, rows)
	}
	sh, err := m.lookup(shellID)
	if err != nil {
		return err
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.closed {
		return fmt.Errorf("%w: %s", ErrClosed, shellID)
	}
	sh.cols, sh.rows = cols, rows

	return pty.Setsize(sh.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Kill terminates a shell. Killing an unknown or finished shell is not an
// error.
func (m *Manager) Kill(shellID id.ShellID) error {
	sh, err := m.lookup(shellID)
	if err != nil {
		return nil
	}

	sh.mu.Lock()
	if sh.closed {
		sh.mu.Unlock()
		return nil
	}
	sh.closed = true
	sh.mu.Unlock()

	if sh.cmd.Process != nil {
		_ = sh.cmd.Process.Kill()
	}
	return nil
}

// Wait blocks until the shell has exited and its sink was told.
func (m *Manager) Wait(ctx context.Context, shellID id.ShellID) error {
	sh, err := m.lookup(shellID)
	if err != nil {
		return nil
	}
	select {
	case <-sh.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns every running shell.
func (m *Manager) List() []Info {
	var shells []Info
	m.shells.Range(func(_, value any) bool {
		shells = append(shells, value.(*Shell).info())
		return true
	})
	return shells
}

// Get returns one shell's info.
func (m *Manager) Get(shellID id.ShellID) (Info, error) {
	sh, err := m.lookup(shellID)
	if err != nil {
		return Info{}, err
	}
	return sh.info(), nil
}

// Count returns the number of running shells.
func (m *Manager) Count() int {
	n := 0
	m.shells.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Shutdown kills every shell and waits for them to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shells []*Shell
	m.shells.Range(func(_, value any) bool {
		shells = append(shells, value.(*Shell))
		return true
	})
	for _, sh := range shells {
		_ = m.Kill(sh.ID)
	}
	for _, sh := range shells {
		select {
		case <-sh.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
