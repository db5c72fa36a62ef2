// Package wire implements the inbound/outbound message shapes and the
// length-prefixed JSON framing codec used to talk to a Debug Adapter
// Protocol server. It deliberately does not know anything about sessions,
// pending requests, or debugger state — that lives in package client.
package wire

import (
	"encoding/json"
	"fmt"

	"golang.org/x/xerrors"
)

// Message types as they appear on the wire in the "type" field.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Message is the closed set of inbound message variants: Response, Event,
// and ReverseRequest. A decoded frame is always exactly one of these.
type Message interface {
	isMessage()
}

// Request is an outgoing request from this client to the adapter.
type Request struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewRequest builds an outgoing Request envelope for the given sequence
// number, command name and already-marshaled arguments (nil for commands
// that take none).
func NewRequest(seq int64, command string, arguments json.RawMessage) *Request {
	return &Request{Seq: seq, Type: TypeRequest, Command: command, Arguments: arguments}
}

// Response is a reply to a Request, correlated by RequestSeq.
type Response struct {
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	RequestSeq int64           `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

func (*Response) isMessage() {}

// Event is an asynchronous notification from the adapter, not tied to any
// particular request.
type Event struct {
	Seq   int64           `json:"seq"`
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

func (*Event) isMessage() {}

// ReverseRequest is a request originating from the adapter, such as
// runInTerminal. The default handler logs and drops it; see
// client.SessionOptions.ReverseRequestHandler.
type ReverseRequest struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (*ReverseRequest) isMessage() {}

// ResponseToReverse and EventForMock only exist on the outgoing side of
// testing transports: they let a MockAdapter answer a reverse request, or
// inject a synthetic event, without going through Session's public API.

// ResponseToReverse answers a ReverseRequest from the adapter.
type ResponseToReverse struct {
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	RequestSeq int64           `json:"request_seq"`
	Success    bool            `json:"success"`
	Command    string          `json:"command"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// EventForMock lets a test adapter emit an arbitrary event.
type EventForMock struct {
	Seq   int64           `json:"seq"`
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// envelope decodes any of the three wire shapes; which fields are populated
// tells us which one we actually got.
type envelope struct {
	Seq        int64           `json:"seq"`
	Type       string          `json:"type"`
	Command    string          `json:"command,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	RequestSeq int64           `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Message    string          `json:"message,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Event      string          `json:"event,omitempty"`
}

// DecodeEnvelope turns one fully-read JSON body into a Message. Unknown
// fields in body are tolerated (json.Unmarshal ignores them), per spec.md
// §6 ("the core is tolerant of unknown fields").
func DecodeEnvelope(body []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, xerrors.Errorf("decoding message envelope: %w", err)
	}
	switch env.Type {
	case TypeResponse:
		return &Response{
			Seq:        env.Seq,
			Type:       env.Type,
			RequestSeq: env.RequestSeq,
			Success:    env.Success,
			Command:    env.Command,
			Message:    env.Message,
			Body:       env.Body,
		}, nil
	case TypeEvent:
		return &Event{
			Seq:   env.Seq,
			Type:  env.Type,
			Event: env.Event,
			Body:  env.Body,
		}, nil
	case TypeRequest:
		return &ReverseRequest{
			Seq:       env.Seq,
			Type:      env.Type,
			Command:   env.Command,
			Arguments: env.Arguments,
		}, nil
	default:
		return nil, fmt.Errorf("unrecognised message type %q", env.Type)
	}
}

// EncodeBody marshals an outgoing message (Request, ResponseToReverse or
// EventForMock) to its JSON body, not including the Content-Length framing.
func EncodeBody(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, xerrors.Errorf("marshaling dap message: %w", err)
	}
	return data, nil
}
