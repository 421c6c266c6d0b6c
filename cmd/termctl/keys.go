package main

import "unicode/utf8"

// escapeKey (Ctrl-]) starts a local command; the next byte picks it.
const escapeKey = 0x1d

const (
	keyEnter     = '\r'
	keyEsc       = 0x1b
	keyCtrlC     = 0x03
	keyBackspace = 0x7f
	keyCtrlH     = 0x08
)

type action int

const (
	actQuit action = iota + 1
	actClear
	actSelectAll
	actCopy
	actPaste
	actTop
	actBottom
	actFit
	actToggleWrite
	actTheme
	actSearch
	actFindNext
	actFindPrevious
	actOpenLink
)

var actionKeys = map[byte]action{
	'q': actQuit,
	'.': actQuit,
	'c': actClear,
	'a': actSelectAll,
	'y': actCopy,
	'p': actPaste,
	't': actTop,
	'b': actBottom,
	'f': actFit,
	'w': actToggleWrite,
	'T': actTheme,
	'n': actFindNext,
	'N': actFindPrevious,
	'o': actOpenLink,
}

// searchKey opens the search prompt; the query ends at Enter.
const searchKey = '/'

// command is a local action; query is set for actSearch.
type command struct {
	act   action
	query string
}

// keyReader splits stdin into bytes for the session and local commands.
type keyReader struct {
	armed     bool
	searching bool
	query     []byte
}

// feed returns what should reach the session and the commands requested.
// Pressing the escape key twice sends it through. While the search prompt
// is open every byte goes to the query.
func (k *keyReader) feed(in []byte) (out []byte, cmds []command) {
	for _, b := range in {
		if k.searching {
			if cmd, done := k.edit(b); done && cmd.act != 0 {
				cmds = append(cmds, cmd)
			}
			continue
		}
		if !k.armed {
			if b == escapeKey {
				k.armed = true
				continue
			}
			out = append(out, b)
			continue
		}
		k.armed = false
		switch {
		case b == escapeKey:
			out = append(out, escapeKey)
		case b == searchKey:
			k.searching = true
			k.query = k.query[:0]
		default:
			if a, ok := actionKeys[b]; ok {
				cmds = append(cmds, command{act: a})
			}
		}
	}
	return out, cmds
}

// edit applies one byte to the search prompt. done is set once the prompt
// closes; an empty or cancelled query yields no command.
func (k *keyReader) edit(b byte) (cmd command, done bool) {
	switch b {
	case keyEnter:
		k.searching = false
		if len(k.query) == 0 {
			return command{}, true
		}
		return command{act: actSearch, query: string(k.query)}, true
	case keyEsc, keyCtrlC, escapeKey:
		k.searching = false
		return command{}, true
	case keyBackspace, keyCtrlH:
		_, size := utf8.DecodeLastRune(k.query)
		k.query = k.query[:len(k.query)-size]
	default:
		if b >= 0x20 {
			k.query = append(k.query, b)
		}
	}
	return command{}, false
}
