// Command server serves terminal sessions over websockets, each backed by
// a local shell behind a PTY.
//
// Configuration comes from the environment (PORT, HOST, TERM_*, LOG_*)
// and flags override it:
//
//	server --port 8000 --shell /bin/bash --origins https://app.example
//	server --dev
//
// SIGINT and SIGTERM stop the listener and kill every running shell.
package main
