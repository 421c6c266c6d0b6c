// Command termctl runs a terminal session on the local tty.
//
// The session's surface is an in-process emulator rendered to stdout. The
// remote shell is reached over one of three channels:
//
//	termctl                                  local shell behind a PTY
//	termctl -t ssh -H host -u user -i key    remote shell over SSH
//	termctl -t ws --url ws://host:8000/ws/terminal
//
// Ctrl-] followed by a key runs a local command: q quit, c clear,
// a select all, y copy selection, p paste, t/b scroll to top/bottom,
// f refit, w toggle read-only, T next theme, o open the last link on
// screen. Ctrl-] / starts a search typed up to Enter; n and N then move to
// the next and previous match. Ctrl-] twice sends Ctrl-].
package main
