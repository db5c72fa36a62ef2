package wire

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCodecRoundTrip(t *testing.T) {
	req := NewRequest(1, "initialize", json.RawMessage(`{"adapterID":"test"}`))

	framed, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	idx := len(framed)
	for i := 0; i+4 <= len(framed); i++ {
		if string(framed[i:i+4]) == headerTerminator {
			idx = i + 4
			break
		}
	}
	var got envelope
	if err := json.Unmarshal(framed[idx:], &got); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if got.Command != "initialize" || got.Type != TypeRequest || got.Seq != 1 {
		t.Fatalf("unexpected envelope: %+v", got)
	}
}

func TestDecoderNeedsMore(t *testing.T) {
	d := NewDecoder(0)
	d.Feed([]byte(`Content-Length: 28` + "\r\n\r\n" + `{"type":"event`))
	_, ok, err := d.Decode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected need-more, got a message")
	}
	d.Feed([]byte(`","event":"a"}`))
	msg, ok, err := d.Decode()
	if err != nil || !ok {
		t.Fatalf("expected a message, got ok=%v err=%v", ok, err)
	}
	if msg == nil {
		t.Fatal("expected non-nil message")
	}
}

// drain decodes every complete message currently buffered in d (which may
// also hold a partial frame) and returns them in order.
func drain(t *testing.T, d *Decoder) []Message {
	t.Helper()
	var out []Message
	for {
		msg, ok, err := d.Decode()
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !ok {
			break
		}
		out = append(out, msg)
	}
	return out
}

func eventNames(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if e, ok := m.(*Event); ok {
			out = append(out, e.Event)
		}
	}
	return out
}

func TestDecoderResumability(t *testing.T) {
	full := mustFrame(t, &EventForMock{Seq: 1, Type: TypeEvent, Event: "initialized"})
	full = append(full, mustFrame(t, &EventForMock{Seq: 2, Type: TypeEvent, Event: "terminated"})...)

	whole := NewDecoder(0)
	whole.Feed(full)
	wantNames := eventNames(drain(t, whole))

	for split := 0; split <= len(full); split++ {
		d := NewDecoder(0)
		d.Feed(full[:split])
		first := drain(t, d)
		d.Feed(full[split:])
		second := drain(t, d)
		gotNames := eventNames(append(first, second...))
		if diff := cmp.Diff(wantNames, gotNames); diff != "" {
			t.Fatalf("split at %d produced different messages (-want +got):\n%s", split, diff)
		}
	}
}

func mustFrame(t *testing.T, msg any) []byte {
	t.Helper()
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestCodecErrors(t *testing.T) {
	t.Run("missing content length", func(t *testing.T) {
		d := NewDecoder(0)
		d.Feed([]byte("Foo: bar\r\n\r\n{}"))
		_, _, err := d.Decode()
		var ce *CodecError
		if err == nil {
			t.Fatal("expected error")
		}
		if !asCodecError(err, &ce) || ce.Kind != MissingContentLength {
			t.Fatalf("expected MissingContentLength, got %v", err)
		}
	})

	t.Run("message too large", func(t *testing.T) {
		d := NewDecoder(4)
		d.Feed([]byte("Content-Length: 100\r\n\r\n"))
		_, _, err := d.Decode()
		var ce *CodecError
		if !asCodecError(err, &ce) || ce.Kind != MessageTooLarge {
			t.Fatalf("expected MessageTooLarge, got %v", err)
		}
	})

	t.Run("bad json still advances the buffer", func(t *testing.T) {
		d := NewDecoder(0)
		d.Feed([]byte("Content-Length: 5\r\n\r\nnotjs"))
		_, _, err := d.Decode()
		var ce *CodecError
		if !asCodecError(err, &ce) || ce.Kind != JSONParse {
			t.Fatalf("expected JSONParse, got %v", err)
		}
		if d.Buffered() != 0 {
			t.Fatalf("expected buffer drained after consuming bad frame, got %d bytes left", d.Buffered())
		}
	})
}

func asCodecError(err error, target **CodecError) bool {
	ce, ok := err.(*CodecError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
