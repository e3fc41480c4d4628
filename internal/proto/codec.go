package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Registry resolves an envelope type name to a payload prototype.
type Registry struct {
	factories map[string]func() any
}

// NewRegistry creates an empty payload registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() any)}
}

// Register binds an envelope type to a payload factory. Registering the
// same type twice overwrites the previous factory.
func (r *Registry) Register(msgType string, factory func() any) {
	r.factories[msgType] = factory
}

// New returns a fresh payload value for the type, if registered.
func (r *Registry) New(msgType string) (any, bool) {
	f, ok := r.factories[msgType]
	if !ok {
		return nil, false
	}
	return f(), true
}

// DefaultRegistry returns a registry with every core wire type bound.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeHello, func() any { return &Hello{} })
	r.Register(TypeHelloOK, func() any { return &HelloOK{} })
	r.Register(TypeHelloError, func() any { return &Error{} })
	r.Register(TypeRoomJoin, func() any { return &RoomJoin{} })
	r.Register(TypeRoomJoined, func() any { return &RoomJoined{} })
	r.Register(TypeSelf, func() any { return &Self{} })
	r.Register(TypeStateRequest, func() any { return &StateRequest{} })
	r.Register(TypeState, func() any { return &State{} })
	r.Register(TypePresence, func() any { return &Presence{} })
	r.Register(TypePing, func() any { return &Ping{} })
	r.Register(TypePong, func() any { return &Pong{} })
	r.Register(TypeGameEvent, func() any { return &GameEvent{} })
	r.Register(TypeError, func() any { return &Error{} })
	return r
}

// Encoding is one concrete wire form of the envelope. The same envelope
// round-trips through any encoding with no semantic loss.
type Encoding interface {
	Name() string
	Marshal(env *Envelope) ([]byte, error)
	Unmarshal(b []byte) (*Envelope, error)
	decodePayload(raw []byte, into any) error
}

// rawPayload is a payload that arrived over the wire and has not been
// resolved against the registry yet.
type rawPayload struct {
	enc   Encoding
	bytes []byte
}

// Codec packs typed payloads into envelopes and back, using one Encoding
// and a payload Registry.
type Codec struct {
	reg   *Registry
	enc   Encoding
	now   func() time.Time
	newID func() string
}

// NewCodec builds a codec over the given registry and encoding.
func NewCodec(reg *Registry, enc Encoding) *Codec {
	return &Codec{
		reg:   reg,
		enc:   enc,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Encoding returns the wire form in use.
func (c *Codec) Encoding() Encoding { return c.enc }

// NewEnvelope builds an envelope around a typed payload, assigning
// version, id and timestamp when the caller did not.
func (c *Codec) NewEnvelope(msgType string, payload any, addr Addressing) *Envelope {
	return &Envelope{
		Version:   ProtocolVersion,
		Type:      msgType,
		ID:        c.newID(),
		ReplyTo:   addr.ReplyTo,
		Timestamp: c.now().UnixMilli(),
		Room:      addr.Room,
		From:      addr.From,
		To:        addr.To,
		Data:      payload,
	}
}

// Encode is NewEnvelope followed by Marshal.
func (c *Codec) Encode(msgType string, payload any, addr Addressing) ([]byte, error) {
	return c.Marshal(c.NewEnvelope(msgType, payload, addr))
}

// Marshal serializes an envelope in the codec's wire form.
func (c *Codec) Marshal(env *Envelope) ([]byte, error) {
	return c.enc.Marshal(env)
}

// Decode parses wire bytes into an envelope. The payload stays in its
// encoded form until Unpack resolves it.
func (c *Codec) Decode(b []byte) (*Envelope, error) {
	env, err := c.enc.Unmarshal(b)
	if err != nil {
		return nil, &Error{Code: CodeDecodeError, Message: fmt.Sprintf("decode envelope: %v", err)}
	}
	return env, nil
}

// Unpack resolves an envelope's payload through the registry. A nil
// payload yields (nil, nil). An unregistered type or a payload that does
// not parse yields a DECODE_ERROR; callers treat that as "no payload".
func (c *Codec) Unpack(env *Envelope) (any, error) {
	if env.Data == nil {
		return nil, nil
	}
	raw, ok := env.Data.(rawPayload)
	if !ok {
		// Already typed (locally built envelope).
		return env.Data, nil
	}
	payload, ok := c.reg.New(env.Type)
	if !ok {
		return nil, &Error{Code: CodeDecodeError, Message: fmt.Sprintf("no payload registered for type %q", env.Type)}
	}
	if err := raw.enc.decodePayload(raw.bytes, payload); err != nil {
		return nil, &Error{Code: CodeDecodeError, Message: fmt.Sprintf("unpack %s payload: %v", env.Type, err)}
	}
	env.Data = payload
	return payload, nil
}

// JSON is the human-readable envelope encoding.
type JSON struct{}

func (JSON) Name() string { return "json" }

type jsonEnvelope struct {
	Version   int             `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	ReplyTo   string          `json:"replyTo,omitempty"`
	Timestamp int64           `json:"ts"`
	Room      string          `json:"room,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (j JSON) Marshal(env *Envelope) ([]byte, error) {
	wire := jsonEnvelope{
		Version:   env.Version,
		Type:      env.Type,
		ID:        env.ID,
		ReplyTo:   env.ReplyTo,
		Timestamp: env.Timestamp,
		Room:      env.Room,
		From:      env.From,
		To:        env.To,
	}
	switch data := env.Data.(type) {
	case nil:
	case rawPayload:
		if data.enc.Name() != j.Name() {
			return nil, fmt.Errorf("payload encoded as %s, cannot re-emit as json", data.enc.Name())
		}
		wire.Data = data.bytes
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", env.Type, err)
		}
		wire.Data = b
	}
	return json.Marshal(wire)
}

func (j JSON) Unmarshal(b []byte) (*Envelope, error) {
	var wire jsonEnvelope
	if err := json.Unmarshal(b, &wire); err != nil {
		return nil, err
	}
	env := &Envelope{
		Version:   wire.Version,
		Type:      wire.Type,
		ID:        wire.ID,
		ReplyTo:   wire.ReplyTo,
		Timestamp: wire.Timestamp,
		Room:      wire.Room,
		From:      wire.From,
		To:        wire.To,
	}
	if len(wire.Data) > 0 && string(wire.Data) != "null" {
		env.Data = rawPayload{enc: j, bytes: wire.Data}
	}
	return env, nil
}

func (JSON) decodePayload(raw []byte, into any) error {
	return json.Unmarshal(raw, into)
}

// Msgpack is the compact binary envelope encoding.
type Msgpack struct{}

func (Msgpack) Name() string { return "msgpack" }

type msgpackEnvelope struct {
	Version   int                `msgpack:"v"`
	Type      string             `msgpack:"type"`
	ID        string             `msgpack:"id"`
	ReplyTo   string             `msgpack:"reply_to,omitempty"`
	Timestamp int64              `msgpack:"ts"`
	Room      string             `msgpack:"room,omitempty"`
	From      string             `msgpack:"from,omitempty"`
	To        string             `msgpack:"to,omitempty"`
	Data      msgpack.RawMessage `msgpack:"data,omitempty"`
}

func (m Msgpack) Marshal(env *Envelope) ([]byte, error) {
	wire := msgpackEnvelope{
		Version:   env.Version,
		Type:      env.Type,
		ID:        env.ID,
		ReplyTo:   env.ReplyTo,
		Timestamp: env.Timestamp,
		Room:      env.Room,
		From:      env.From,
		To:        env.To,
	}
	switch data := env.Data.(type) {
	case nil:
	case rawPayload:
		if data.enc.Name() != m.Name() {
			return nil, fmt.Errorf("payload encoded as %s, cannot re-emit as msgpack", data.enc.Name())
		}
		wire.Data = msgpack.RawMessage(data.bytes)
	default:
		b, err := msgpack.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", env.Type, err)
		}
		wire.Data = b
	}
	return msgpack.Marshal(wire)
}

func (m Msgpack) Unmarshal(b []byte) (*Envelope, error) {
	var wire msgpackEnvelope
	if err := msgpack.Unmarshal(b, &wire); err != nil {
		return nil, err
	}
	env := &Envelope{
		Version:   wire.Version,
		Type:      wire.Type,
		ID:        wire.ID,
		ReplyTo:   wire.ReplyTo,
		Timestamp: wire.Timestamp,
		Room:      wire.Room,
		From:      wire.From,
		To:        wire.To,
	}
	if len(wire.Data) > 0 {
		env.Data = rawPayload{enc: m, bytes: wire.Data}
	}
	return env, nil
}

func (Msgpack) decodePayload(raw []byte, into any) error {
	return msgpack.Unmarshal(raw, into)
}
