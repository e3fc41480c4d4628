package proto

// ClientKind is declared by the client in hello and is never trusted for
// authorization decisions.
type ClientKind string

const (
	KindDisplay    ClientKind = "display"
	KindController ClientKind = "controller"
)

// Role is assigned by the server during authorization.
type Role string

const (
	RoleHost     Role = "host"
	RolePlayer   Role = "player"
	RoleObserver Role = "observer"
)

// Capability is a string token granting permission for a specific action.
type Capability string

const (
	CapStartGame Capability = "CanStartGame"
)

// ClientContext is the server-authoritative identity record for a
// participant. Role and Capabilities come exclusively from the
// authorization hook.
type ClientContext struct {
	ClientID       string            `json:"clientId" msgpack:"client_id"`
	Kind           ClientKind        `json:"kind" msgpack:"kind"`
	DisplayName    string            `json:"displayName" msgpack:"display_name"`
	Role           Role              `json:"role" msgpack:"role"`
	Capabilities   []Capability      `json:"capabilities,omitempty" msgpack:"capabilities,omitempty"`
	Groups         []string          `json:"groups,omitempty" msgpack:"groups,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	ReconnectToken string            `json:"reconnectToken,omitempty" msgpack:"reconnect_token,omitempty"`
}

// HasCapability reports whether the context carries the given token.
func (c *ClientContext) HasCapability(cap Capability) bool {
	for _, have := range c.Capabilities {
		if have == cap {
			return true
		}
	}
	return false
}

// Hello introduces a client and optionally asks to resume a prior session.
type Hello struct {
	Kind     ClientKind `json:"kind" msgpack:"kind"`
	Name     string     `json:"name" msgpack:"name"`
	Protocol int        `json:"protocol,omitempty" msgpack:"protocol,omitempty"`
	Resume   *Resume    `json:"resume,omitempty" msgpack:"resume,omitempty"`
}

// Resume is the reconnect hint carried inside hello.
type Resume struct {
	Room           string `json:"room,omitempty" msgpack:"room,omitempty"`
	ReconnectToken string `json:"reconnectToken" msgpack:"reconnect_token"`
}

// HelloOK acknowledges a successful handshake.
type HelloOK struct {
	ServerTime int64         `json:"serverTime" msgpack:"server_time"`
	Features   []string      `json:"features,omitempty" msgpack:"features,omitempty"`
	Context    ClientContext `json:"context" msgpack:"context"`
}

// RoomJoin asks to become a participant of the room.
type RoomJoin struct {
	Options map[string]any `json:"options,omitempty" msgpack:"options,omitempty"`
}

// RoomInfo describes a room; set once at creation.
type RoomInfo struct {
	ID         string `json:"id" msgpack:"id"`
	Code       string `json:"code,omitempty" msgpack:"code,omitempty"`
	Type       string `json:"type" msgpack:"type"`
	Visibility string `json:"visibility" msgpack:"visibility"`
	MaxClients int    `json:"maxClients" msgpack:"max_clients"`
}

// RoomJoined confirms participation.
type RoomJoined struct {
	Room RoomInfo `json:"room" msgpack:"room"`
	You  string   `json:"you" msgpack:"you"`
}

// Self delivers the joining client its own authoritative context.
type Self struct {
	Context ClientContext `json:"context" msgpack:"context"`
}

// StateRequest asks for a fresh snapshot.
type StateRequest struct{}

// StateKind discriminates snapshot vs. patch payloads.
type StateKind string

const (
	StateSnapshot StateKind = "snapshot"
	// StatePatch is reserved in the protocol; the core only emits snapshots.
	StatePatch StateKind = "patch"
)

// State carries authoritative game state. The core never interprets State.State.
type State struct {
	Kind  StateKind `json:"kind" msgpack:"kind"`
	Tick  uint64    `json:"tick" msgpack:"tick"`
	State any       `json:"state" msgpack:"state"`
}

// PresenceKind discriminates join vs. leave notifications.
type PresenceKind string

const (
	PresenceJoin  PresenceKind = "join"
	PresenceLeave PresenceKind = "leave"
)

// PresenceClient is the public subset of a context shared with peers.
type PresenceClient struct {
	ClientID    string            `json:"clientId" msgpack:"client_id"`
	DisplayName string            `json:"displayName" msgpack:"display_name"`
	Role        Role              `json:"role" msgpack:"role"`
	Metadata    map[string]string `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Presence notifies peers about a join or leave.
type Presence struct {
	Kind   PresenceKind   `json:"kind" msgpack:"kind"`
	Client PresenceClient `json:"client" msgpack:"client"`
}

// Ping requests a liveness reply.
type Ping struct{}

// Pong answers a ping with server time.
type Pong struct {
	ServerTime int64 `json:"serverTime" msgpack:"server_time"`
}

// GameEvent is a game-specific event; the core routes it untouched.
type GameEvent struct {
	Name string         `json:"name" msgpack:"name"`
	Data map[string]any `json:"data,omitempty" msgpack:"data,omitempty"`
}
