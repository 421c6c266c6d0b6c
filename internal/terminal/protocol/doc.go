// Package protocol frames the messages exchanged between a terminal session
// controller and the remote shell behind its channel.
//
// Client to remote:
//
//	INPUT  "i"   sessionId, command
//	RESIZE "rs"  sessionId, cols, rows
//	CLOSE  "cl"  sessionId
//
// Remote to client:
//
//	OUTPUT    "o"   sessionId, body
//	CONNECTED "co"  sessionId, canWrite
//
// Two codecs are provided. PipeCodec joins the type code and fields with '|'
// ("i|term_01H...|ls -la\r"); the final field is taken verbatim so commands
// and output may themselves contain '|'. JSONCodec wraps the payload in a
// {"type","payload"} envelope.
package protocol
