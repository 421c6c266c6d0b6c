package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/server"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(2)
	}

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else if logger, err = logging.New(logging.Config{Level: cfg.Logging.Level}); err != nil {
		fmt.Fprintln(os.Stderr, "server: invalid log level:", err)
		os.Exit(2)
	}

	srv, err := server.NewServer(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and lets flags override it.
func loadConfig(args []string) (*config.Config, error) {
	cfg := config.LoadOrDefault()

	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "server port")
	fs.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "listen address")
	fs.StringVar(&cfg.Server.WebSocketPath, "ws-path", cfg.Server.WebSocketPath, "websocket endpoint path")
	fs.StringVar(&cfg.Server.AllowOrigins, "origins", cfg.Server.AllowOrigins, "comma separated allowed origins")
	fs.StringVar(&cfg.Terminal.Shell, "shell", cfg.Terminal.Shell, "shell started for each session")
	fs.StringVar(&cfg.Terminal.WorkingDir, "workdir", cfg.Terminal.WorkingDir, "working directory for shells")
	fs.StringVar(&cfg.Terminal.Codec, "codec", cfg.Terminal.Codec, "default frame codec: pipe or json")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "log level")
	fs.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "development logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
