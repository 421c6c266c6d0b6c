/*
Package monitoring provides metrics collection for terminal sessions.

# Overview

Metrics are Prometheus collectors registered on an injectable registerer.
The same Metrics value doubles as the session controller's observer, so
gated-out frames, channel send failures and addon disposal failures are
counted instead of silently discarded.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))

	ctrl := session.New(hostID, sessionID, ch, session.WithObserver(metrics))
*/
package monitoring
