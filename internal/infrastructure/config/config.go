package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Terminal TerminalConfig
	SSH      SSHConfig
	Logging  LogConfig
	Channel  ChannelConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          string `envconfig:"PORT" default:"8000"`
	Host          string `envconfig:"HOST" default:"0.0.0.0"`
	WebSocketPath string `envconfig:"TERM_WS_PATH" default:"/ws/terminal"`
	AllowOrigins  string `envconfig:"TERM_ALLOW_ORIGINS" default:"*"`
	ConnectRPS    int    `envconfig:"TERM_CONNECT_RPS" default:"10"`
	ConnectBurst  int    `envconfig:"TERM_CONNECT_BURST" default:"20"`
}

// TerminalConfig holds shell and preference settings.
type TerminalConfig struct {
	Shell          string `envconfig:"TERM_SHELL" default:""`
	WorkingDir     string `envconfig:"TERM_WORKDIR" default:""`
	DefaultCols    int    `envconfig:"TERM_COLS" default:"80"`
	DefaultRows    int    `envconfig:"TERM_ROWS" default:"24"`
	PreferencePath string `envconfig:"TERM_PREFERENCE_FILE" default:""`
	Codec          string `envconfig:"TERM_CODEC" default:"pipe"`
}

// SSHConfig holds defaults for SSH-backed sessions.
type SSHConfig struct {
	User          string        `envconfig:"TERM_SSH_USER" default:""`
	Port          int           `envconfig:"TERM_SSH_PORT" default:"22"`
	KeyPath       string        `envconfig:"TERM_SSH_KEY" default:""`
	KnownHosts    string        `envconfig:"TERM_SSH_KNOWN_HOSTS" default:""`
	StrictHostKey bool          `envconfig:"TERM_SSH_STRICT" default:"true"`
	ConnTimeout   time.Duration `envconfig:"TERM_SSH_TIMEOUT" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ChannelConfig bounds outbound frame rates on client channels.
type ChannelConfig struct {
	FramesPerSecond int           `envconfig:"TERM_FRAMES_PER_SECOND" default:"200"`
	Burst           int           `envconfig:"TERM_FRAME_BURST" default:"400"`
	WriteTimeout    time.Duration `envconfig:"TERM_WRITE_TIMEOUT" default:"10s"`
	PingInterval    time.Duration `envconfig:"TERM_PING_INTERVAL" default:"30s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8000",
			Host:          "0.0.0.0",
			WebSocketPath: "/ws/terminal",
			AllowOrigins:  "*",
			ConnectRPS:    10,
			ConnectBurst:  20,
		},
		Terminal: TerminalConfig{
			DefaultCols: 80,
			DefaultRows: 24,
			Codec:       "pipe",
		},
		SSH: SSHConfig{
			Port:          22,
			StrictHostKey: true,
			ConnTimeout:   30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Channel: ChannelConfig{
			FramesPerSecond: 200,
			Burst:           400,
			WriteTimeout:    10 * time.Second,
			PingInterval:    30 * time.Second,
		},
	}
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Origins splits AllowOrigins on commas. An empty list allows any origin.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
