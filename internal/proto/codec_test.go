package proto

import (
	"testing"
)

func roundTrip(t *testing.T, enc Encoding) {
	t.Helper()

	codec := NewCodec(DefaultRegistry(), enc)

	env := codec.NewEnvelope(TypeHello, &Hello{
		Kind: KindController,
		Name: "alice",
		Resume: &Resume{
			Room:           "quiz",
			ReconnectToken: "tok-123",
		},
	}, Addressing{Room: "quiz", From: "alice", To: TargetServer})

	wire, err := codec.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := codec.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Type != env.Type || decoded.Room != env.Room || decoded.From != env.From || decoded.To != env.To {
		t.Fatalf("header mismatch: %+v vs %+v", decoded, env)
	}
	if decoded.ID != env.ID || decoded.ReplyTo != env.ReplyTo || decoded.Timestamp != env.Timestamp {
		t.Fatalf("correlation mismatch: %+v vs %+v", decoded, env)
	}
	if decoded.Version != ProtocolVersion {
		t.Fatalf("unexpected version: %d", decoded.Version)
	}

	payload, err := codec.Unpack(decoded)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	hello, ok := payload.(*Hello)
	if !ok {
		t.Fatalf("unexpected payload type %T", payload)
	}
	if hello.Kind != KindController || hello.Name != "alice" {
		t.Fatalf("unexpected hello: %+v", hello)
	}
	if hello.Resume == nil || hello.Resume.ReconnectToken != "tok-123" {
		t.Fatalf("resume hint lost: %+v", hello.Resume)
	}
}

func TestRoundTripJSON(t *testing.T) {
	roundTrip(t, JSON{})
}

func TestRoundTripMsgpack(t *testing.T) {
	roundTrip(t, Msgpack{})
}

func TestEncodeAssignsIDAndTimestamp(t *testing.T) {
	codec := NewCodec(DefaultRegistry(), JSON{})

	env := codec.NewEnvelope(TypePing, &Ping{}, Addressing{})
	if env.ID == "" {
		t.Fatal("expected assigned id")
	}
	if env.Timestamp == 0 {
		t.Fatal("expected assigned timestamp")
	}
	if env.Version != ProtocolVersion {
		t.Fatalf("unexpected version: %d", env.Version)
	}

	other := codec.NewEnvelope(TypePing, &Ping{}, Addressing{})
	if other.ID == env.ID {
		t.Fatal("ids must be unique per envelope")
	}
}

func TestUnpackUnknownTypeIsDecodeError(t *testing.T) {
	codec := NewCodec(DefaultRegistry(), JSON{})

	wire, err := codec.Marshal(&Envelope{
		Version: ProtocolVersion,
		Type:    "mystery",
		ID:      "x1",
		Data:    map[string]string{"a": "b"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	env, err := codec.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if _, err := codec.Unpack(env); err == nil {
		t.Fatal("expected unpack error for unknown type")
	} else {
		perr, ok := err.(*Error)
		if !ok || perr.Code != CodeDecodeError {
			t.Fatalf("expected DECODE_ERROR, got %v", err)
		}
	}
}

func TestUnpackNoPayload(t *testing.T) {
	codec := NewCodec(DefaultRegistry(), JSON{})

	wire, err := codec.Encode(TypePing, nil, Addressing{To: TargetServer})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := codec.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	payload, err := codec.Unpack(env)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if payload != nil {
		t.Fatalf("expected absent payload, got %v", payload)
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	codec := NewCodec(DefaultRegistry(), JSON{})
	if _, err := codec.Decode([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestErrorPayloadRoundTrip(t *testing.T) {
	codec := NewCodec(DefaultRegistry(), Msgpack{})

	wire, err := codec.Encode(TypeError, &Error{
		Code:      CodeRateLimited,
		Message:   "slow down",
		Retryable: true,
		Details:   map[string]string{"limit": "120"},
	}, Addressing{To: "c1", ReplyTo: "m7"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	env, err := codec.Decode(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ReplyTo != "m7" {
		t.Fatalf("replyTo lost: %q", env.ReplyTo)
	}

	payload, err := codec.Unpack(env)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	perr := payload.(*Error)
	if perr.Code != CodeRateLimited || !perr.Retryable || perr.Details["limit"] != "120" {
		t.Fatalf("unexpected error payload: %+v", perr)
	}
}
