package room

import (
	"context"

	"github.com/partyline/partyline-server/internal/proto"
	"github.com/partyline/partyline-server/internal/session"
)

// Conn is one transport-level connection as the adapter sees it. The
// session id is the transient transport identifier, distinct from the
// stable client id assigned during authorization.
type Conn interface {
	SessionID() string
	Send(ctx context.Context, env *proto.Envelope) error
}

// Game is the set of domain hooks a concrete game implements. All hooks
// run on the room's single logical thread: for a given room no two hooks
// execute concurrently, so a game may keep plain (unlocked) state as
// long as it only touches it from hooks. Hooks may block; the room waits.
type Game[D any] interface {
	// AuthorizeHello turns the client-declared hello claim into an
	// authoritative ClientContext, or rejects it. Returning a
	// *proto.Error preserves the structured rejection on the wire; any
	// other error maps to AUTH_FAILED.
	AuthorizeHello(ctx context.Context, conn Conn, hello *proto.Hello) (*proto.ClientContext, error)

	// OnJoin runs after the join sequence (room.joined, self, presence
	// catch-up, presence broadcast, snapshot) has been delivered.
	OnJoin(ctx context.Context, conn Conn, client *proto.ClientContext, join *proto.RoomJoin) error

	// OnGameEvent handles a game-specific event. Errors become error
	// envelopes addressed to the sender only; a *proto.Error keeps its
	// code, anything else becomes a retryable INTERNAL.
	OnGameEvent(ctx context.Context, conn Conn, client *proto.ClientContext, event *proto.GameEvent) error

	// Snapshot returns the serializable authoritative game state. The
	// adapter never interprets it.
	Snapshot(client *proto.ClientContext) (any, error)

	// OnLeave runs after a transport-level disconnect of an
	// authenticated client.
	OnLeave(ctx context.Context, client *proto.ClientContext)
}

// TimeoutHandler is implemented by games that want to know when a
// disconnected client's grace period elapsed and its session was
// destroyed.
type TimeoutHandler[D any] interface {
	OnSessionTimeout(clientID string, s *session.Session[D])
}
