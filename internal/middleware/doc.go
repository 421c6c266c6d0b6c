// Package middleware holds the gin middleware in front of the terminal
// server.
//
// CORS wraps gin-contrib/cors. The same configuration answers the
// websocket origin check, so one origin list governs both plain requests
// and upgrades.
//
// RateLimit keeps a token bucket per client IP and forgets clients idle
// longer than IdleTTL. GlobalRateLimit shares a single bucket.
//
//	router.Use(middleware.CORS(middleware.CORSFor(cfg.Server.Origins())))
//	router.GET("/ws/terminal", middleware.RateLimit(middleware.DefaultRateLimitConfig()), h.HandleConnection)
package middleware
