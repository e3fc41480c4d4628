package proto

// Envelope is the typed, addressed wrapper used for all protocol traffic.
// Data holds either a typed payload (outbound, before encoding) or the
// still-encoded payload bytes (inbound, until Codec.Unpack resolves it).
type Envelope struct {
	Version   int
	Type      string
	ID        string
	ReplyTo   string
	Timestamp int64 // unix milliseconds, sender-assigned
	Room      string
	From      string
	To        string
	Data      any
}

const (
	ProtocolVersion = 1

	// Addressing literals for Envelope.To.
	TargetBroadcast = "*"
	TargetServer    = "server"
)

// Wire message types. Direction noted client->server (c2s) or server->client (s2c).
const (
	TypeHello        = "hello"         // c2s
	TypeHelloOK      = "hello.ok"      // s2c
	TypeHelloError   = "hello.error"   // s2c
	TypeRoomJoin     = "room.join"     // c2s
	TypeRoomJoined   = "room.joined"   // s2c
	TypeSelf         = "self"          // s2c
	TypeStateRequest = "state.request" // c2s
	TypeState        = "state"         // s2c
	TypePresence     = "presence"      // s2c
	TypePing         = "ping"          // c2s
	TypePong         = "pong"          // s2c
	TypeGameEvent    = "game.event"    // c2s
	TypeError        = "error"         // s2c
)

// Addressing is the caller-supplied portion of an envelope header.
type Addressing struct {
	Room    string
	From    string
	To      string
	ReplyTo string
}
