// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default so an interactive client can own stdout
// for terminal rendering.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	log := logger.ForSession("host-1", "term_01H...")
//	log.Info("session connected")
//	log.Error("send failed", zap.Error(err))
package logging
