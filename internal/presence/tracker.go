// Package presence maps transport-level session ids to client contexts
// and derives join/leave notifications from connection transitions.
package presence

import (
	"sync"

	"github.com/partyline/partyline-server/internal/proto"
)

// Tracker is keyed by the transport session id, not the stable client id.
// On reconnect a new transport session id maps to the same client id and
// the room adapter reconciles the two during room.join.
type Tracker struct {
	mu      sync.RWMutex
	clients map[string]*proto.ClientContext
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{clients: make(map[string]*proto.ClientContext)}
}

// Set records the context for a transport session, overwriting any
// previous entry.
func (t *Tracker) Set(sessionID string, ctx *proto.ClientContext) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[sessionID] = ctx
}

// Get returns the tracked context, if any.
func (t *Tracker) Get(sessionID string) (*proto.ClientContext, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ctx, ok := t.clients[sessionID]
	return ctx, ok
}

// Delete forgets a transport session.
func (t *Tracker) Delete(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, sessionID)
}

// List returns all tracked contexts in no particular order.
func (t *Tracker) List() []*proto.ClientContext {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*proto.ClientContext, 0, len(t.clients))
	for _, ctx := range t.clients {
		out = append(out, ctx)
	}
	return out
}

// Entries returns a copy of the tracked contexts keyed by transport
// session id.
func (t *Tracker) Entries() map[string]*proto.ClientContext {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*proto.ClientContext, len(t.clients))
	for id, ctx := range t.clients {
		out[id] = ctx
	}
	return out
}

// Count returns the number of tracked sessions.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// OnJoin tracks the context and returns the join event to broadcast.
// Re-joining under the same transport session id is idempotent.
func (t *Tracker) OnJoin(sessionID string, ctx *proto.ClientContext) *proto.Presence {
	t.Set(sessionID, ctx)
	return &proto.Presence{Kind: proto.PresenceJoin, Client: publicClient(ctx)}
}

// OnLeave forgets the session and returns the leave event to broadcast,
// or nil when no context was tracked (e.g. disconnect before hello), so
// no spurious presence reaches peers.
func (t *Tracker) OnLeave(sessionID string) *proto.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	ctx, ok := t.clients[sessionID]
	if !ok {
		return nil
	}
	delete(t.clients, sessionID)
	return &proto.Presence{Kind: proto.PresenceLeave, Client: publicClient(ctx)}
}

func publicClient(ctx *proto.ClientContext) proto.PresenceClient {
	return proto.PresenceClient{
		ClientID:    ctx.ClientID,
		DisplayName: ctx.DisplayName,
		Role:        ctx.Role,
		Metadata:    ctx.Metadata,
	}
}
