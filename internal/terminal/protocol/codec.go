package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Codec converts payloads to and from wire messages.
type Codec interface {
	Name() string
	Encode(p Payload) ([]byte, error)
	Decode(data []byte) (Payload, error)
}

// ByName returns the codec registered under name ("pipe" or "json").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "pipe":
		return PipeCodec{}, nil
	case "json":
		return JSONCodec{}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown codec %q", name)
	}
}

const separator = "|"

// fields lists the number of separator-delimited fields after the type code.
// Only the free-text fields of input and output frames may contain '|'.
var fields = map[Type]int{
	TypeInput:     2, // sessionId|command
	TypeResize:    3, // sessionId|cols|rows
	TypeClose:     1, // sessionId
	TypeOutput:    2, // sessionId|body
	TypeConnected: 2, // sessionId|canWrite
}

var freeText = map[Type]bool{TypeInput: true, TypeOutput: true}

// PipeCodec encodes frames as "type|field|field...".
type PipeCodec struct{}

func (PipeCodec) Name() string { return "pipe" }

func (PipeCodec) Encode(p Payload) ([]byte, error) {
	sid := p.Session()
	if sid == "" || strings.Contains(sid, separator) {
		return nil, fmt.Errorf("%w: session id %q", ErrInvalidField, sid)
	}

	parts := []string{string(p.FrameType()), sid}
	switch v := p.(type) {
	case InputPayload:
		parts = append(parts, v.Command)
	case ResizePayload:
		parts = append(parts, strconv.Itoa(v.Cols), strconv.Itoa(v.Rows))
	case ClosePayload:
	case OutputPayload:
		parts = append(parts, v.Body)
	case ConnectedPayload:
		parts = append(parts, boolBit(v.CanWrite))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, p)
	}
	return []byte(strings.Join(parts, separator)), nil
}

func (PipeCodec) Decode(data []byte) (Payload, error) {
	msg := string(data)
	code, rest, _ := strings.Cut(msg, separator)
	typ := Type(code)

	n, ok := fields[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, code)
	}
	limit := -1
	if freeText[typ] {
		limit = n
	}
	parts := strings.SplitN(rest, separator, limit)
	if len(parts) != n || parts[0] == "" {
		return nil, fmt.Errorf("%w: %s expects %d fields", ErrMalformedFrame, typ, n)
	}
	sid := parts[0]

	switch typ {
	case TypeInput:
		return Input(sid, parts[1]), nil
	case TypeResize:
		cols, err := positive(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: cols: %v", ErrMalformedFrame, err)
		}
		rows, err := positive(parts[2])
		if err != nil {
			return nil, fmt.Errorf("%w: rows: %v", ErrMalformedFrame, err)
		}
		return Resize(sid, cols, rows), nil
	case TypeClose:
		return Close(sid), nil
	case TypeOutput:
		return Output(sid, parts[1]), nil
	default:
		if parts[1] != "0" && parts[1] != "1" {
			return nil, fmt.Errorf("%w: canWrite %q", ErrMalformedFrame, parts[1])
		}
		return Connected(sid, parts[1] == "1"), nil
	}
}

// JSONCodec encodes frames as {"type": code, "payload": {...}}.
type JSONCodec struct{}

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(p Payload) ([]byte, error) {
	if p.Session() == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrInvalidField)
	}
	body, err := sonic.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", p.FrameType(), err)
	}
	return sonic.Marshal(envelope{Type: p.FrameType(), Payload: body})
}

func (JSONCodec) Decode(data []byte) (Payload, error) {
	var env envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var (
		p   Payload
		err error
	)
	switch env.Type {
	case TypeInput:
		var v InputPayload
		err = sonic.Unmarshal(env.Payload, &v)
		p = v
	case TypeResize:
		var v ResizePayload
		err = sonic.Unmarshal(env.Payload, &v)
		if err == nil && (v.Cols <= 0 || v.Rows <= 0) {
			err = fmt.Errorf("non-positive size %dx%d", v.Cols, v.Rows)
		}
		p = v
	case TypeClose:
		var v ClosePayload
		err = sonic.Unmarshal(env.Payload, &v)
		p = v
	case TypeOutput:
		var v OutputPayload
		err = sonic.Unmarshal(env.Payload, &v)
		p = v
	case TypeConnected:
		var v ConnectedPayload
		err = sonic.Unmarshal(env.Payload, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
	}
	if p.Session() == "" {
		return nil, fmt.Errorf("%w: %s without session id", ErrMalformedFrame, env.Type)
	}
	return p, nil
}

func boolBit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func positive(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("non-positive value %d", n)
	}
	return n, nil
}
