package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/protocol"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transport/wschan"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Terminal.Shell = "/bin/sh"
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := NewServer(cfg, WithLogger(logging.NewNop()), WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestNewServer_UnknownCodec(t *testing.T) {
	cfg := config.Default()
	cfg.Terminal.Codec = "xml"
	_, err := NewServer(cfg, WithLogger(logging.NewNop()), WithRegistry(prometheus.NewRegistry()))
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var body struct {
		Status  string         `json:"status"`
		Spawn   string         `json:"spawn"`
		Shells  int            `json:"shells"`
		Metrics map[string]any `json:"metrics"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "closed", body.Spawn)
	assert.Equal(t, 0, body.Shells)
	assert.Contains(t, body.Metrics, "uptime_seconds")
}

func TestTraceHeaders(t *testing.T) {
	_, ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Trace-ID", "trace-abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "trace-abc", resp.Header.Get("X-Trace-ID"))
	assert.NotEmpty(t, resp.Header.Get("X-Span-ID"))
}

func TestRoot(t *testing.T) {
	_, ts := newTestServer(t, nil)

	var body struct {
		WSPath    string   `json:"ws_path"`
		Endpoints []string `json:"endpoints"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/", &body))
	assert.Equal(t, "/ws/terminal", body.WSPath)
	assert.Contains(t, body.Endpoints, "/metrics")
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	// Prime the request counter.
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "terminal_http_requests_total")
	assert.Contains(t, string(body), "terminal_uptime_seconds")
}

func TestCORSOrigins(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.Server.AllowOrigins = "https://ok.example"
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = wschan.Dial(context.Background(), wsURL(ts), nopReceiver{},
		wschan.Options{Header: http.Header{"Origin": []string{"https://evil.example"}}}, nil)
	assert.Error(t, err)
}

func TestConnectRateLimit(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.Server.ConnectRPS = 1
		c.Server.ConnectBurst = 1
	})

	c, err := wschan.Dial(context.Background(), wsURL(ts), nopReceiver{}, wschan.Options{}, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = wschan.Dial(context.Background(), wsURL(ts), nopReceiver{}, wschan.Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

type nopReceiver struct{}

func (nopReceiver) Receive(protocol.Payload) {}

type recorder struct {
	mu  sync.Mutex
	out strings.Builder
}

func (r *recorder) Receive(p protocol.Payload) {
	if o, ok := p.(protocol.OutputPayload); ok {
		r.mu.Lock()
		r.out.WriteString(o.Body)
		r.mu.Unlock()
	}
}

func (r *recorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.String()
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/terminal"
}

func TestTerminalEndToEnd(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	srv, ts := newTestServer(t, nil)

	rec := &recorder{}
	c, err := wschan.Dial(context.Background(), wsURL(ts), rec, wschan.Options{}, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(protocol.TypeInput, protocol.Input("s1", "echo e2e-$((6*7))\n")))
	require.Eventually(t, func() bool { return strings.Contains(rec.String(), "e2e-42") },
		10*time.Second, 20*time.Millisecond)

	var listed struct {
		Shells []map[string]any `json:"shells"`
	}
	getJSON(t, ts.URL+"/shells", &listed)
	assert.Len(t, listed.Shells, 1)
	assert.Equal(t, 1, srv.Shells().Count())
}
