package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
)

const (
	transportPTY = "pty"
	transportSSH = "ssh"
	transportWS  = "ws"
)

type options struct {
	transport string
	hostID    string
	sessionID string
	prefPath  string

	shell string

	url   string
	codec string

	sshHost       string
	sshUser       string
	sshPort       int
	sshKey        string
	sshAgent      bool
	sshPassword   bool
	sshStrict     bool
	sshKnownHosts string

	logFile  string
	logLevel string

	cfg *config.Config
}

// parseFlags layers command line flags over the environment configuration.
func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (*options, error) {
	o := &options{cfg: cfg}

	fs := pflag.NewFlagSet("termctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.transport, "transport", "t", transportPTY, "channel to the remote shell: pty, ssh or ws")
	fs.StringVar(&o.sessionID, "session", "", "session ID (generated when empty)")
	fs.StringVar(&o.prefPath, "pref", cfg.Terminal.PreferencePath, "preference file (YAML or TOML)")
	fs.StringVar(&o.shell, "shell", cfg.Terminal.Shell, "shell for the pty transport")
	fs.StringVar(&o.url, "url", "ws://localhost:"+cfg.Server.Port+cfg.Server.WebSocketPath, "server endpoint for the ws transport")
	fs.StringVar(&o.codec, "codec", cfg.Terminal.Codec, "frame codec for the ws transport: pipe or json")
	fs.StringVarP(&o.sshHost, "host", "H", "", "SSH host")
	fs.StringVarP(&o.sshUser, "user", "u", cfg.SSH.User, "SSH user")
	fs.IntVarP(&o.sshPort, "port", "p", cfg.SSH.Port, "SSH port")
	fs.StringVarP(&o.sshKey, "identity", "i", cfg.SSH.KeyPath, "SSH private key")
	fs.BoolVar(&o.sshAgent, "agent", false, "authenticate with ssh-agent")
	fs.BoolVar(&o.sshPassword, "password", false, "prompt for an SSH password")
	fs.BoolVar(&o.sshStrict, "strict-host-key", cfg.SSH.StrictHostKey, "verify the host key against known_hosts")
	fs.StringVar(&o.sshKnownHosts, "known-hosts", cfg.SSH.KnownHosts, "known_hosts file")
	fs.StringVar(&o.logFile, "log-file", "", "write logs to this file (discarded when empty)")
	fs.StringVar(&o.logLevel, "log-level", cfg.Logging.Level, "log level")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	o.hostID = uuid.NewString()
	if o.sessionID == "" {
		o.sessionID = id.NewSessionID().String()
	}
	if o.sshUser == "" {
		o.sshUser = os.Getenv("USER")
	}
	return o, nil
}

func (o *options) validate() error {
	switch o.transport {
	case transportPTY:
	case transportSSH:
		if o.sshHost == "" {
			return errors.New("--host is required for the ssh transport")
		}
	case transportWS:
		if !strings.HasPrefix(o.url, "ws://") && !strings.HasPrefix(o.url, "wss://") {
			return fmt.Errorf("--url must be a ws:// or wss:// URL, got %q", o.url)
		}
		if _, err := protocol.ByName(o.codec); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown transport %q", o.transport)
	}
	if strings.Contains(o.sessionID, "|") {
		return errors.New("session ID cannot contain '|'")
	}
	return nil
}

// logger writes to the log file if one was given. The tty belongs to the
// rendered surface.
func (o *options) logger() (*logging.Logger, error) {
	if o.logFile == "" {
		return logging.NewNop(), nil
	}
	return logging.New(logging.Config{
		Level:       o.logLevel,
		OutputPaths: []string{o.logFile},
	})
}
