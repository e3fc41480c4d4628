package ws

import (
	"context"
	"sync"

	"github.com/partyline/partyline-server/internal/proto"
	"github.com/partyline/partyline-server/internal/room"
)

// Room is what the transport needs from a room adapter. Keeping it an
// interface here erases the adapter's session-payload type parameter, so
// one server can host rooms running different games.
type Room interface {
	Info() proto.RoomInfo
	HandleOpen(conn room.Conn)
	HandleEnvelope(ctx context.Context, conn room.Conn, env *proto.Envelope)
	HandleClose(ctx context.Context, conn room.Conn)
}

// Registry holds the rooms served by this process. Rooms are independent
// and may process traffic concurrently with each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]Room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]Room)}
}

// Add registers a room under its info id.
func (r *Registry) Add(rm Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[rm.Info().ID] = rm
}

// Get looks a room up by id.
func (r *Registry) Get(id string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	return rm, ok
}

// List returns info for every registered room.
func (r *Registry) List() []proto.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]proto.RoomInfo, 0, len(r.rooms))
	for _, rm := range r.rooms {
		out = append(out, rm.Info())
	}
	return out
}
