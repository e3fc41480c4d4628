// Package room binds the envelope protocol, session manager and presence
// tracker to a transport substrate and drives the per-connection
// handshake state machine.
package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partyline/partyline-server/internal/auth"
	"github.com/partyline/partyline-server/internal/presence"
	"github.com/partyline/partyline-server/internal/proto"
	"github.com/partyline/partyline-server/internal/session"
)

// stage is the per-connection handshake state.
type stage int

const (
	stageUnauthenticated stage = iota
	stageAuthenticated
	stageJoined
	stageLeft
)

type connState struct {
	conn    Conn
	stage   stage
	client  string // stable client id, set after hello
	limiter *rateLimiter
}

// Options configure one room adapter.
type Options struct {
	Info         proto.RoomInfo
	GracePeriod  time.Duration
	Reconnection bool
	// RateLimit caps client envelopes per minute per connection; zero
	// disables limiting.
	RateLimit int
	// Features are advertised in hello.ok.
	Features []string
	// Tokens, when set, lets the adapter mint and verify reconnect
	// tokens. Without it resume hints are ignored.
	Tokens *auth.Issuer
}

// Adapter implements the handshake state machine, message routing and
// snapshot broadcast for a single room. All entry points called by the
// transport substrate (HandleOpen, HandleMessage, HandleEnvelope,
// HandleClose) serialize behind one mutex, so processing within a room
// is a single logical thread; distinct rooms are fully independent.
type Adapter[D any] struct {
	mu       sync.Mutex
	info     proto.RoomInfo
	codec    *proto.Codec
	game     Game[D]
	sessions *session.Manager[D]
	presence *presence.Tracker
	tokens   *auth.Issuer
	features []string
	limit    int
	conns    map[string]*connState // keyed by transport session id
	tick     uint64
	log      zerolog.Logger
}

// New creates a room adapter around a game implementation.
func New[D any](codec *proto.Codec, game Game[D], opts Options, logger zerolog.Logger) *Adapter[D] {
	a := &Adapter[D]{
		info:     opts.Info,
		codec:    codec,
		game:     game,
		presence: presence.NewTracker(),
		tokens:   opts.Tokens,
		features: opts.Features,
		limit:    opts.RateLimit,
		conns:    make(map[string]*connState),
		log:      logger.With().Str("room", opts.Info.ID).Logger(),
	}
	a.sessions = session.NewManager[D](
		session.Options{GracePeriod: opts.GracePeriod, Reconnection: opts.Reconnection},
		session.Hooks[D]{
			OnConnected: func(id string, s *session.Session[D], reconnect bool) {
				a.log.Info().Str("client_id", id).Bool("reconnect", reconnect).Msg("session connected")
			},
			OnDisconnected: func(id string, _ *session.Session[D]) {
				a.log.Info().Str("client_id", id).Msg("session disconnected, grace period running")
			},
			OnTimeout: func(id string, s *session.Session[D]) {
				a.log.Info().Str("client_id", id).Msg("session grace period elapsed")
				if th, ok := game.(TimeoutHandler[D]); ok {
					// Re-enter the room's serialization before touching
					// game state. The timer goroutine must not contend
					// with the dispatch already holding the lock.
					go func() {
						a.mu.Lock()
						defer a.mu.Unlock()
						th.OnSessionTimeout(id, s)
					}()
				}
			},
		},
	)
	return a
}

// Info returns the room's immutable metadata.
func (a *Adapter[D]) Info() proto.RoomInfo { return a.info }

// Sessions exposes the session manager, for game hooks and wiring.
func (a *Adapter[D]) Sessions() *session.Manager[D] { return a.sessions }

// Presence exposes the presence tracker.
func (a *Adapter[D]) Presence() *presence.Tracker { return a.presence }

// Tick returns the current snapshot counter.
func (a *Adapter[D]) Tick() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tick
}

// HandleOpen registers a new transport connection in the
// UNAUTHENTICATED state.
func (a *Adapter[D]) HandleOpen(conn Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conns[conn.SessionID()] = &connState{
		conn:    conn,
		limiter: newRateLimiter(a.limit, time.Minute),
	}
	a.log.Debug().Str("session_id", conn.SessionID()).Msg("connection open")
}

// HandleMessage decodes raw wire bytes and routes the envelope. A frame
// that does not decode yields a BAD_REQUEST error reply; the connection
// stays open.
func (a *Adapter[D]) HandleMessage(ctx context.Context, conn Conn, data []byte) {
	env, err := a.codec.Decode(data)
	if err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		cs := a.conns[conn.SessionID()]
		if cs == nil {
			return
		}
		a.sendError(ctx, cs, "", proto.NewError(proto.CodeBadRequest, "malformed envelope"))
		return
	}
	a.HandleEnvelope(ctx, conn, env)
}

// HandleEnvelope routes one envelope through the state machine.
func (a *Adapter[D]) HandleEnvelope(ctx context.Context, conn Conn, env *proto.Envelope) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cs, ok := a.conns[conn.SessionID()]
	if !ok || cs.stage == stageLeft {
		return
	}
	if !cs.limiter.allow(time.Now()) {
		a.sendError(ctx, cs, env.ID, &proto.Error{
			Code:      proto.CodeRateLimited,
			Message:   "message rate limit exceeded",
			Retryable: true,
		})
		return
	}

	switch env.Type {
	case proto.TypeHello:
		a.handleHello(ctx, cs, env)
	case proto.TypeRoomJoin:
		a.handleJoin(ctx, cs, env)
	case proto.TypeStateRequest:
		a.handleStateRequest(ctx, cs, env)
	case proto.TypePing:
		a.handlePing(ctx, cs, env)
	case proto.TypeGameEvent:
		a.handleGameEvent(ctx, cs, env)
	default:
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeBadRequest, "unknown message type: "+env.Type))
	}
}

// HandleClose finalizes a transport-level disconnect: presence leave for
// authenticated clients, session disconnect (grace period), game hook.
func (a *Adapter[D]) HandleClose(ctx context.Context, conn Conn) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sessionID := conn.SessionID()
	cs, ok := a.conns[sessionID]
	if !ok {
		return
	}
	cs.stage = stageLeft
	delete(a.conns, sessionID)

	// Nil when the connection never completed hello; then no presence
	// broadcast happens at all.
	leave := a.presence.OnLeave(sessionID)
	if leave != nil {
		a.broadcast(ctx, proto.TypePresence, leave, sessionID)
	}
	if cs.client != "" {
		a.sessions.Disconnect(cs.client)
	}
	if leave != nil {
		client, _ := a.sessionContext(cs.client, leave)
		a.game.OnLeave(ctx, client)
	}
	a.log.Debug().Str("session_id", sessionID).Msg("connection closed")
}

func (a *Adapter[D]) sessionContext(clientID string, leave *proto.Presence) (*proto.ClientContext, bool) {
	if s, ok := a.sessions.Get(clientID); ok && s.Context != nil {
		return s.Context, true
	}
	// Session may already be gone (reconnection disabled); rebuild the
	// public part from the presence event.
	return &proto.ClientContext{
		ClientID:    leave.Client.ClientID,
		DisplayName: leave.Client.DisplayName,
		Role:        leave.Client.Role,
		Metadata:    leave.Client.Metadata,
	}, false
}

func (a *Adapter[D]) handleHello(ctx context.Context, cs *connState, env *proto.Envelope) {
	payload, err := a.codec.Unpack(env)
	hello, ok := payload.(*proto.Hello)
	if err != nil || !ok {
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeBadRequest, "hello payload required"))
		return
	}

	client, authErr := a.game.AuthorizeHello(ctx, cs.conn, hello)
	if authErr != nil {
		rejection := asProtoError(authErr, proto.CodeAuthFailed)
		a.send(ctx, cs, proto.TypeHelloError, rejection, env.ID)
		return
	}
	if client == nil {
		a.send(ctx, cs, proto.TypeHelloError, proto.NewError(proto.CodeAuthFailed, "authorization produced no context"), env.ID)
		return
	}

	// A valid resume token pins the stable client id to the prior
	// session, making the handshake a reconnect if the grace period has
	// not elapsed. An expired or unknown token silently starts fresh.
	if hello.Resume != nil && a.tokens != nil {
		if claims, err := a.tokens.Verify(hello.Resume.ReconnectToken); err == nil {
			client.ClientID = claims.ClientID
		} else {
			a.log.Debug().Err(err).Msg("resume token rejected")
		}
	}
	if client.ClientID == "" {
		client.ClientID = uuid.NewString()
	}
	if client.ReconnectToken == "" && a.tokens != nil {
		token, err := a.tokens.Mint(client.ClientID, a.info.ID)
		if err != nil {
			a.log.Warn().Err(err).Msg("mint reconnect token")
		} else {
			client.ReconnectToken = token
		}
	}

	// A re-hello under a different stable id releases the prior id's
	// session; otherwise it would stay connected forever with no
	// transport behind it.
	if cs.client != "" && cs.client != client.ClientID {
		a.sessions.Remove(cs.client)
	}

	a.presence.Set(cs.conn.SessionID(), client)
	cs.client = client.ClientID
	if cs.stage == stageUnauthenticated {
		cs.stage = stageAuthenticated
	}

	a.send(ctx, cs, proto.TypeHelloOK, &proto.HelloOK{
		ServerTime: time.Now().UnixMilli(),
		Features:   a.features,
		Context:    *client,
	}, env.ID)
}

func (a *Adapter[D]) handleJoin(ctx context.Context, cs *connState, env *proto.Envelope) {
	sessionID := cs.conn.SessionID()
	client, ok := a.presence.Get(sessionID)
	if !ok {
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeUnauthorized, "hello required before room.join"))
		return
	}

	join := &proto.RoomJoin{}
	if payload, err := a.codec.Unpack(env); err == nil {
		if parsed, ok := payload.(*proto.RoomJoin); ok && parsed != nil {
			join = parsed
		}
	}

	if a.info.MaxClients > 0 && cs.stage != stageJoined && a.joinedCount() >= a.info.MaxClients {
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeRoomFull, "room is full"))
		return
	}

	var zero D
	_, _ = a.sessions.Connect(client.ClientID, client, zero)

	// Fixed join ordering: room.joined, self, per-peer catch-up,
	// broadcast join, snapshot, then the game hook.
	a.send(ctx, cs, proto.TypeRoomJoined, &proto.RoomJoined{Room: a.info, You: client.ClientID}, env.ID)
	a.send(ctx, cs, proto.TypeSelf, &proto.Self{Context: *client}, "")

	// Every tracked client counts as a peer, whether or not it has
	// joined yet.
	for otherID, peer := range a.presence.Entries() {
		if otherID == sessionID {
			continue
		}
		a.send(ctx, cs, proto.TypePresence, &proto.Presence{
			Kind: proto.PresenceJoin,
			Client: proto.PresenceClient{
				ClientID:    peer.ClientID,
				DisplayName: peer.DisplayName,
				Role:        peer.Role,
				Metadata:    peer.Metadata,
			},
		}, "")
	}

	// Presence is broadcast once per transport-level join; a repeated
	// room.join only refreshes the sender's own view.
	rejoin := cs.stage == stageJoined
	cs.stage = stageJoined
	if !rejoin {
		joinEvent := a.presence.OnJoin(sessionID, client)
		a.broadcast(ctx, proto.TypePresence, joinEvent, sessionID)
	}

	a.sendSnapshot(ctx, cs, client, "")

	if rejoin {
		return
	}
	if err := a.game.OnJoin(ctx, cs.conn, client, join); err != nil {
		a.log.Error().Err(err).Str("client_id", client.ClientID).Msg("join hook failed")
		a.sendError(ctx, cs, env.ID, proto.Internal(err))
	}
}

func (a *Adapter[D]) handleStateRequest(ctx context.Context, cs *connState, env *proto.Envelope) {
	client, ok := a.presence.Get(cs.conn.SessionID())
	if !ok || cs.stage != stageJoined {
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeUnauthorized, "join required before state.request"))
		return
	}
	a.sendSnapshot(ctx, cs, client, env.ID)
}

func (a *Adapter[D]) handlePing(ctx context.Context, cs *connState, env *proto.Envelope) {
	if cs.stage != stageAuthenticated && cs.stage != stageJoined {
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeUnauthorized, "hello required before ping"))
		return
	}
	a.send(ctx, cs, proto.TypePong, &proto.Pong{ServerTime: time.Now().UnixMilli()}, env.ID)
}

func (a *Adapter[D]) handleGameEvent(ctx context.Context, cs *connState, env *proto.Envelope) {
	client, ok := a.presence.Get(cs.conn.SessionID())
	if !ok || cs.stage != stageJoined {
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeUnauthorized, "join required before game.event"))
		return
	}
	payload, err := a.codec.Unpack(env)
	event, castOK := payload.(*proto.GameEvent)
	if err != nil || !castOK {
		a.sendError(ctx, cs, env.ID, proto.NewError(proto.CodeBadRequest, "game.event payload required"))
		return
	}

	// Hook failures never terminate the connection or leak to peers.
	if hookErr := a.game.OnGameEvent(ctx, cs.conn, client, event); hookErr != nil {
		a.log.Debug().Err(hookErr).Str("client_id", client.ClientID).Str("event", event.Name).Msg("game event rejected")
		a.sendError(ctx, cs, env.ID, asProtoError(hookErr, proto.CodeInternal))
	}
}

// BroadcastSnapshot emits one fresh snapshot to every joined client.
// It must be called from inside a game hook (it runs on the room's
// logical thread and assumes the dispatch lock is held).
func (a *Adapter[D]) BroadcastSnapshot(ctx context.Context) {
	state, err := a.game.Snapshot(nil)
	if err != nil {
		a.log.Error().Err(err).Msg("snapshot hook failed")
		return
	}
	a.tick++
	payload := &proto.State{Kind: proto.StateSnapshot, Tick: a.tick, State: state}
	a.broadcast(ctx, proto.TypeState, payload, "")
}

func (a *Adapter[D]) sendSnapshot(ctx context.Context, cs *connState, client *proto.ClientContext, replyTo string) {
	state, err := a.game.Snapshot(client)
	if err != nil {
		a.log.Error().Err(err).Msg("snapshot hook failed")
		a.sendError(ctx, cs, replyTo, proto.Internal(err))
		return
	}
	a.tick++
	a.send(ctx, cs, proto.TypeState, &proto.State{Kind: proto.StateSnapshot, Tick: a.tick, State: state}, replyTo)
}

func (a *Adapter[D]) joinedCount() int {
	n := 0
	for _, cs := range a.conns {
		if cs.stage == stageJoined {
			n++
		}
	}
	return n
}

func (a *Adapter[D]) send(ctx context.Context, cs *connState, msgType string, payload any, replyTo string) {
	env := a.codec.NewEnvelope(msgType, payload, proto.Addressing{
		Room:    a.info.ID,
		From:    proto.TargetServer,
		To:      cs.client,
		ReplyTo: replyTo,
	})
	if env.To == "" {
		env.To = cs.conn.SessionID()
	}
	if err := cs.conn.Send(ctx, env); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn().Err(err).Str("session_id", cs.conn.SessionID()).Str("type", msgType).Msg("send failed")
	}
}

func (a *Adapter[D]) sendError(ctx context.Context, cs *connState, replyTo string, perr *proto.Error) {
	a.send(ctx, cs, proto.TypeError, perr, replyTo)
}

// broadcast delivers to every joined connection except the excluded
// transport session id.
func (a *Adapter[D]) broadcast(ctx context.Context, msgType string, payload any, excludeSessionID string) {
	env := a.codec.NewEnvelope(msgType, payload, proto.Addressing{
		Room: a.info.ID,
		From: proto.TargetServer,
		To:   proto.TargetBroadcast,
	})
	for sessionID, cs := range a.conns {
		if sessionID == excludeSessionID || cs.stage != stageJoined {
			continue
		}
		if err := cs.conn.Send(ctx, env); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn().Err(err).Str("session_id", sessionID).Str("type", msgType).Msg("broadcast send failed")
		}
	}
}

func asProtoError(err error, fallbackCode string) *proto.Error {
	var perr *proto.Error
	if errors.As(err, &perr) {
		return perr
	}
	out := &proto.Error{Code: fallbackCode, Message: err.Error()}
	if fallbackCode == proto.CodeInternal {
		out.Retryable = true
	}
	return out
}
