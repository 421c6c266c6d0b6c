// Package ws serves terminal sessions over websockets.
//
// A client opens GET /ws/terminal (optionally ?codec=json) and exchanges
// protocol frames as text messages. The first INPUT or RESIZE for a session
// ID starts a local shell for it; the server answers with CONNECTED and then
// streams OUTPUT. CLOSE from the client kills the shell, and a shell that
// exits on its own produces CLOSE. Dropping the connection kills every
// shell it started.
//
// Shell starts go through a circuit breaker. While it is open, new sessions
// get CLOSE straight away.
//
//	handler := ws.NewHandler(shells, ws.Config{Codec: protocol.PipeCodec{}}, metrics, logger)
//	router.GET("/ws/terminal", handler.HandleConnection)
package ws
