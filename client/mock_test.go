package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/simonrw/dap-gui-sub000/transport"
	"github.com/simonrw/dap-gui-sub000/wire"
)

// mockAdapter simulates the server side of a DAP connection over an
// in-memory transport half, grounded on the original implementation's
// testing.rs MockAdapter: expect a request by command name, then answer
// it with a canned success/error response or a synthetic event.
type mockAdapter struct {
	t   *testing.T
	tr  transport.Transport
	rd  transport.ReadHalf
	wr  transport.WriteHalf
	dec *wire.Decoder
	buf []byte
	seq int64
}

func newMockAdapter(t *testing.T, tr transport.Transport) *mockAdapter {
	rd, wr := tr.Split()
	return &mockAdapter{
		t:   t,
		tr:  tr,
		rd:  rd,
		wr:  wr,
		dec: wire.NewDecoder(0),
		buf: make([]byte, 32*1024),
	}
}

func (m *mockAdapter) nextSeq() int64 {
	m.seq++
	return m.seq
}

// recv blocks until the next message from the client is fully decoded.
// The client only ever sends requests, so this always yields a
// *wire.ReverseRequest (DecodeEnvelope maps a "request"-typed frame to
// that shape regardless of which side sent it).
func (m *mockAdapter) recv() *wire.ReverseRequest {
	m.t.Helper()
	for {
		msg, ok, err := m.dec.Decode()
		if err != nil {
			m.t.Fatalf("mock adapter: decode error: %v", err)
		}
		if ok {
			req, isReq := msg.(*wire.ReverseRequest)
			if !isReq {
				m.t.Fatalf("mock adapter: expected a request, got %T", msg)
			}
			return req
		}
		n, rerr := m.rd.Read(m.buf)
		if rerr != nil {
			m.t.Fatalf("mock adapter: read error: %v", rerr)
		}
		m.dec.Feed(m.buf[:n])
	}
}

// expectRequest blocks until a request named command arrives, within 5s.
func (m *mockAdapter) expectRequest(command string) *wire.ReverseRequest {
	m.t.Helper()
	type result struct {
		req *wire.ReverseRequest
	}
	ch := make(chan result, 1)
	go func() { ch <- result{m.recv()} }()
	select {
	case r := <-ch:
		if r.req.Command != command {
			m.t.Fatalf("mock adapter: expected %q, got %q", command, r.req.Command)
		}
		return r.req
	case <-time.After(5 * time.Second):
		m.t.Fatalf("mock adapter: timed out waiting for %q", command)
		return nil
	}
}

func (m *mockAdapter) send(frame any) {
	m.t.Helper()
	b, err := wire.Encode(frame)
	if err != nil {
		m.t.Fatalf("mock adapter: encode: %v", err)
	}
	if _, err := m.wr.Write(b); err != nil {
		m.t.Fatalf("mock adapter: write: %v", err)
	}
}

func (m *mockAdapter) sendSuccess(requestSeq int64, body any) {
	m.t.Helper()
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			m.t.Fatalf("mock adapter: marshal body: %v", err)
		}
		raw = b
	}
	m.send(&wire.ResponseToReverse{
		Seq:        m.nextSeq(),
		Type:       wire.TypeResponse,
		RequestSeq: requestSeq,
		Success:    true,
		Body:       raw,
	})
}

func (m *mockAdapter) sendError(requestSeq int64, message string) {
	m.t.Helper()
	m.send(&wire.ResponseToReverse{
		Seq:        m.nextSeq(),
		Type:       wire.TypeResponse,
		RequestSeq: requestSeq,
		Success:    false,
		Message:    message,
	})
}

func (m *mockAdapter) sendEvent(event string, body any) {
	m.t.Helper()
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			m.t.Fatalf("mock adapter: marshal body: %v", err)
		}
		raw = b
	}
	m.send(&wire.EventForMock{Seq: m.nextSeq(), Type: wire.TypeEvent, Event: event, Body: raw})
}

type stackFrameData struct {
	id, line, column        int
	name, sourceName, path string
}

func (m *mockAdapter) sendStackTraceResponse(requestSeq int64, frames []stackFrameData) {
	type frameJSON struct {
		ID     int    `json:"id"`
		Name   string `json:"name"`
		Line   int    `json:"line"`
		Column int    `json:"column"`
		Source struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"source"`
	}
	out := make([]frameJSON, len(frames))
	for i, f := range frames {
		out[i].ID = f.id
		out[i].Name = f.name
		out[i].Line = f.line
		out[i].Column = f.column
		out[i].Source.Name = f.sourceName
		out[i].Source.Path = f.path
	}
	m.sendSuccess(requestSeq, map[string]any{"stackFrames": out, "totalFrames": len(out)})
}

func (m *mockAdapter) sendScopesResponse(requestSeq int64, name string, variablesReference int, expensive bool) {
	m.sendSuccess(requestSeq, map[string]any{
		"scopes": []map[string]any{{
			"name":               name,
			"variablesReference": variablesReference,
			"expensive":          expensive,
		}},
	})
}

func (m *mockAdapter) sendVariablesResponse(requestSeq int64, name, value, typeName string) {
	m.sendSuccess(requestSeq, map[string]any{
		"variables": []map[string]any{{
			"name":  name,
			"value": value,
			"type":  typeName,
		}},
	})
}

// handleInitSequence answers the standard initialize/launch/initialized/
// setExceptionBreakpoints handshake, mirroring the original testing
// harness's AutoInitMockAdapter.
func (m *mockAdapter) handleInitSequence(launchCommand string) {
	initReq := m.expectRequest("initialize")
	m.sendSuccess(initReq.Seq, map[string]any{"supportsConfigurationDoneRequest": true})

	launchReq := m.expectRequest(launchCommand)
	m.sendEvent("initialized", nil)
	m.sendSuccess(launchReq.Seq, nil)

	excReq := m.expectRequest("setExceptionBreakpoints")
	m.sendSuccess(excReq.Seq, map[string]any{"breakpoints": []any{}})

	cfgReq := m.expectRequest("configurationDone")
	m.sendSuccess(cfgReq.Seq, nil)
}

// newTestSession wires a Session to a mockAdapter over an in-memory
// transport.Pair. It does not run the handshake; callers drive it with
// handleInitSequence alongside Launch/Attach and Start.
func newTestSession(t *testing.T) (*Session, *mockAdapter) {
	t.Helper()
	clientSide, adapterSide := transport.Pair()
	mock := newMockAdapter(t, adapterSide)
	sess := NewSession(clientSide, SessionOptions{RequestTimeout: 5 * time.Second, InitializeTimeout: 5 * time.Second})
	return sess, mock
}
