/*
Package tracing records spans for HTTP requests and terminal connections.

Each span is logged when it ends, by a background collector with a bounded
queue. A request carrying X-Trace-ID joins that trace and X-Span-ID becomes
the parent span; the response carries the IDs of the new span.

	tracer := tracing.New("terminal", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "ws.connection")
	defer tracer.End(span)

A websocket connection's span stays open for the connection's lifetime, so
its duration is the session length.
*/
package tracing
