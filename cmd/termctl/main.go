package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/bell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/clipboard"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/headless"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/preference"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/session"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/surface"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport"
)

const (
	enterAltScreen = "\x1b[?1049h\x1b[H"
	leaveAltScreen = "\x1b[?1049l"
)

func main() {
	opts, err := parseFlags(os.Args[1:], config.LoadOrDefault(), os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "termctl:", err)
		os.Exit(2)
	}

	reason, err := run(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "termctl:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "[%s]\n", reason)
}

// lockedWriter serialises the renderer, bell and clipboard on one tty.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func promptSecret(fd int, label string) ([]byte, error) {
	fmt.Fprint(os.Stderr, label)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	return secret, err
}

// run drives one session until it ends and returns why it ended.
func run(o *options) (string, error) {
	logger, err := o.logger()
	if err != nil {
		return "", fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.ForSession(o.hostID, o.sessionID)

	pref, err := preference.LoadOrDefault(o.prefPath)
	if err != nil {
		return "", fmt.Errorf("loading preferences: %w", err)
	}

	inFd, outFd := int(os.Stdin.Fd()), int(os.Stdout.Fd())
	if !term.IsTerminal(inFd) || !term.IsTerminal(outFd) {
		return "", errors.New("stdin and stdout must be a terminal")
	}

	var password string
	if o.transport == transportSSH && o.sshPassword {
		secret, err := promptSecret(inFd, fmt.Sprintf("%s@%s's password: ", o.sshUser, o.sshHost))
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password = string(secret)
	}

	tty := &lockedWriter{w: os.Stdout}
	clip := clipboard.NewOSC52(tty, clipboard.NewMemory())
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())

	var surf *headless.Surface
	factory := func(opts surface.Options) (surface.Surface, error) {
		surf = headless.New(opts,
			headless.WithClipboardProvider(clip.Local().Provider()),
			headless.WithRenderErrorHandler(func(err error) {
				logger.Debug("Render failed", zap.Error(err))
			}),
		)
		return surf, nil
	}

	ln := &link{}
	catalog := &addonCatalog{Catalog: &headless.Catalog{
		Out: tty,
		OpenLink: func(uri string) {
			logger.Info("Link activated", zap.String("uri", uri))
		},
	}}
	ctrl := session.New(o.hostID, o.sessionID, ln,
		session.WithStore(preference.NewStore(pref)),
		session.WithSurfaceFactory(factory),
		session.WithCatalog(catalog),
		session.WithClipboard(clip),
		session.WithBell(bell.NewWriter(tty, 0)),
		session.WithObserver(metrics),
		session.WithLogger(logger),
	)

	state, err := term.MakeRaw(inFd)
	if err != nil {
		return "", fmt.Errorf("entering raw mode: %w", err)
	}
	defer func() { _ = term.Restore(inFd, state) }()
	_, _ = io.WriteString(tty, enterAltScreen)
	defer func() { _, _ = io.WriteString(tty, leaveAltScreen) }()

	if err := ctrl.Init(headless.NewTTYViewport(outFd)); err != nil {
		return "", err
	}

	quit := make(chan string, 1)
	stop := func(reason string) {
		select {
		case quit <- reason:
		default:
		}
	}
	disp := transport.NewDispatcher(ctrl, func() { stop("remote closed the session") }, logger)

	cols, rows := surf.Size()
	prompt := func(label string) ([]byte, error) {
		_ = term.Restore(inFd, state)
		defer func() { _, _ = term.MakeRaw(inFd) }()
		return promptSecret(inFd, label)
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SSH.ConnTimeout)
	rem, err := o.dial(ctx, disp, cols, rows, password, prompt, logger)
	cancel()
	if err != nil {
		ctrl.Close()
		return "", err
	}
	ln.set(rem)
	logger.Info("Session started",
		zap.String("transport", o.transport),
		zap.Any("cursor_style", ctrl.GetOption(surface.OptionCursorStyle)))

	cmds := &commands{
		ctrl:   ctrl,
		clip:   clip,
		search: catalog.search,
		links:  catalog.links,
		stop:   stop,
		logger: logger,
	}
	go func() {
		keys := &keyReader{}
		buf := make([]byte, 4096)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				stop("stdin closed")
				return
			}
			out, pending := keys.feed(buf[:n])
			if len(out) > 0 {
				surf.Input(string(out))
			}
			for _, cmd := range pending {
				cmds.apply(cmd)
			}
		}
	}()

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(winch)
	defer signal.Stop(sigs)

	var reason string
	for reason == "" {
		select {
		case <-winch:
			ctrl.Fit()
		case sig := <-sigs:
			reason = "received " + sig.String()
		case <-rem.Done():
			reason = "connection lost"
		case reason = <-quit:
		}
	}

	ctrl.Disconnect()
	if err := rem.Close(); err != nil {
		logger.Debug("Channel close failed", zap.Error(err))
	}
	for _, err := range ctrl.Close() {
		logger.Warn("Dispose failed", zap.Error(err))
	}
	logger.Info("Session ended", zap.String("reason", reason), zap.Any("counters", metrics.Snapshot()))
	return reason, nil
}
