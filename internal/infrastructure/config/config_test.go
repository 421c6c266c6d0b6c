package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "/ws/terminal", cfg.Server.WebSocketPath)
	assert.Equal(t, []string{"*"}, cfg.Server.Origins())
	assert.Equal(t, 10, cfg.Server.ConnectRPS)

	// Terminal config
	assert.Equal(t, 80, cfg.Terminal.DefaultCols)
	assert.Equal(t, 24, cfg.Terminal.DefaultRows)
	assert.Equal(t, "pipe", cfg.Terminal.Codec)

	// SSH config
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.True(t, cfg.SSH.StrictHostKey)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Channel config
	assert.Equal(t, 200, cfg.Channel.FramesPerSecond)
	assert.Equal(t, 400, cfg.Channel.Burst)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("TERM_ROWS", "40")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Terminal.DefaultRows)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.SSH.ConnTimeout)
	assert.Equal(t, 10*time.Second, cfg.Channel.WriteTimeout)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "127.0.0.1",
		"TERM_WS_PATH":           "/terminal",
		"TERM_SHELL":             "/bin/zsh",
		"TERM_COLS":              "132",
		"TERM_ROWS":              "50",
		"TERM_PREFERENCE_FILE":   "/etc/term/pref.yaml",
		"TERM_CODEC":             "json",
		"TERM_SSH_USER":          "ops",
		"TERM_SSH_PORT":          "2222",
		"TERM_SSH_STRICT":        "false",
		"TERM_SSH_TIMEOUT":       "5s",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"TERM_FRAMES_PER_SECOND": "50",
		"TERM_FRAME_BURST":       "10",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, "/terminal", cfg.Server.WebSocketPath)

	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, 132, cfg.Terminal.DefaultCols)
	assert.Equal(t, 50, cfg.Terminal.DefaultRows)
	assert.Equal(t, "/etc/term/pref.yaml", cfg.Terminal.PreferencePath)
	assert.Equal(t, "json", cfg.Terminal.Codec)

	assert.Equal(t, "ops", cfg.SSH.User)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.False(t, cfg.SSH.StrictHostKey)
	assert.Equal(t, 5*time.Second, cfg.SSH.ConnTimeout)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 50, cfg.Channel.FramesPerSecond)
	assert.Equal(t, 10, cfg.Channel.Burst)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("TERM_COLS", "wide")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 80, cfg.Terminal.DefaultCols)
}

func TestOrigins(t *testing.T) {
	s := ServerConfig{AllowOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, s.Origins())

	s.AllowOrigins = ""
	assert.Equal(t, []string{"*"}, s.Origins())
}
