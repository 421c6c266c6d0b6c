// Package server wires the terminal HTTP server.
//
// Routes:
//   - GET /          service summary
//   - GET /health    liveness, spawn breaker state and a JSON snapshot of the counters
//   - GET /shells    running shells
//   - GET /metrics   Prometheus exposition for the server's registry
//   - GET <ws path>  websocket terminal endpoint, rate limited per client IP
//
// The middleware stack is recovery, tracing, request metrics and CORS. The CORS
// origin list also decides which browser origins may open a websocket.
//
//	srv, err := server.NewServer(config.LoadOrDefault())
//	go srv.Run()
//	defer srv.Shutdown(ctx)
package server
