// Package quiz is a small trivia game built on the room adapter's hooks.
// It is the reference consumer of the protocol core: capability-gated
// host controls, per-session player data, explicit snapshot broadcasts.
package quiz

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/partyline/partyline-server/internal/proto"
	"github.com/partyline/partyline-server/internal/room"
	"github.com/partyline/partyline-server/internal/session"
)

// Phase is the quiz game phase.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseQuestion Phase = "question"
	PhaseFinished Phase = "finished"
)

// PlayerData is the per-session payload the game attaches to sessions.
type PlayerData struct {
	Score int
	Ready bool
}

// Question is one quiz entry. Answer indexes into Choices.
type Question struct {
	Prompt  string
	Choices []string
	Answer  int
}

// Game implements room.Game for a trivia quiz. All state is mutated only
// from hooks, which the room serializes.
type Game struct {
	room      *room.Adapter[PlayerData]
	log       zerolog.Logger
	questions []Question

	phase    Phase
	current  int
	hostID   string
	answers  map[string]int // client id -> chosen index for current question
}

// New creates a quiz game with the given question set (or a built-in
// demo set when empty).
func New(questions []Question, logger zerolog.Logger) *Game {
	if len(questions) == 0 {
		questions = defaultQuestions()
	}
	return &Game{
		questions: questions,
		log:       logger.With().Str("game", "quiz").Logger(),
		phase:     PhaseLobby,
		answers:   make(map[string]int),
	}
}

// Bind attaches the game to its room adapter. Must be called before the
// room serves traffic.
func (g *Game) Bind(a *room.Adapter[PlayerData]) { g.room = a }

// AuthorizeHello assigns roles: the first display client becomes the
// host with the start-game capability, everyone else is a player. The
// declared kind is only a hint; role and capabilities come from here.
func (g *Game) AuthorizeHello(_ context.Context, _ room.Conn, hello *proto.Hello) (*proto.ClientContext, error) {
	if hello.Name == "" {
		return nil, proto.NewError(proto.CodeAuthFailed, "display name required")
	}
	client := &proto.ClientContext{
		Kind:        hello.Kind,
		DisplayName: hello.Name,
		Role:        proto.RolePlayer,
		Metadata:    map[string]string{"declared_kind": string(hello.Kind)},
	}
	if hello.Kind == proto.KindDisplay && g.hostID == "" {
		client.Role = proto.RoleHost
		client.Capabilities = []proto.Capability{proto.CapStartGame}
	}
	return client, nil
}

// OnJoin records the host and lets everyone see the newcomer.
func (g *Game) OnJoin(ctx context.Context, _ room.Conn, client *proto.ClientContext, _ *proto.RoomJoin) error {
	if client.Role == proto.RoleHost && g.hostID == "" {
		g.hostID = client.ClientID
	}
	g.room.BroadcastSnapshot(ctx)
	return nil
}

// OnGameEvent handles the quiz event vocabulary.
func (g *Game) OnGameEvent(ctx context.Context, _ room.Conn, client *proto.ClientContext, event *proto.GameEvent) error {
	switch event.Name {
	case "player_ready":
		return g.playerReady(ctx, client)
	case "start_game":
		return g.startGame(ctx, client)
	case "answer":
		return g.answer(ctx, client, event)
	case "next_question":
		return g.nextQuestion(ctx, client)
	default:
		return proto.NewError(proto.CodeBadRequest, fmt.Sprintf("unknown event %q", event.Name))
	}
}

func (g *Game) playerReady(ctx context.Context, client *proto.ClientContext) error {
	s, ok := g.room.Sessions().Get(client.ClientID)
	if !ok {
		return proto.NewError(proto.CodeInvalidState, "no session")
	}
	s.Data.Ready = true
	g.room.BroadcastSnapshot(ctx)
	return nil
}

func (g *Game) startGame(ctx context.Context, client *proto.ClientContext) error {
	if !client.HasCapability(proto.CapStartGame) {
		return proto.NewError(proto.CodeUnauthorized, "start_game requires the CanStartGame capability")
	}
	if g.phase != PhaseLobby {
		return proto.NewError(proto.CodeInvalidState, "game already started")
	}
	g.phase = PhaseQuestion
	g.current = 0
	g.answers = make(map[string]int)
	g.log.Info().Str("host", client.ClientID).Msg("game started")
	g.room.BroadcastSnapshot(ctx)
	return nil
}

func (g *Game) answer(ctx context.Context, client *proto.ClientContext, event *proto.GameEvent) error {
	if g.phase != PhaseQuestion {
		return proto.NewError(proto.CodeInvalidState, "no question in progress")
	}
	choice, ok := intField(event.Data, "choice")
	if !ok {
		return proto.NewError(proto.CodeBadRequest, "answer requires a numeric choice")
	}
	if _, already := g.answers[client.ClientID]; already {
		return proto.NewError(proto.CodeInvalidState, "already answered")
	}
	g.answers[client.ClientID] = choice
	if choice == g.questions[g.current].Answer {
		if s, ok := g.room.Sessions().Get(client.ClientID); ok {
			s.Data.Score++
		}
	}
	g.room.BroadcastSnapshot(ctx)
	return nil
}

func (g *Game) nextQuestion(ctx context.Context, client *proto.ClientContext) error {
	if !client.HasCapability(proto.CapStartGame) {
		return proto.NewError(proto.CodeUnauthorized, "next_question requires the CanStartGame capability")
	}
	if g.phase != PhaseQuestion {
		return proto.NewError(proto.CodeInvalidState, "no question in progress")
	}
	g.current++
	g.answers = make(map[string]int)
	if g.current >= len(g.questions) {
		g.phase = PhaseFinished
	}
	g.room.BroadcastSnapshot(ctx)
	return nil
}

// snapshotPlayer is the per-player view inside the snapshot.
type snapshotPlayer struct {
	ClientID  string `json:"clientId" msgpack:"client_id"`
	Name      string `json:"name" msgpack:"name"`
	Role      string `json:"role" msgpack:"role"`
	Score     int    `json:"score" msgpack:"score"`
	Ready     bool   `json:"ready" msgpack:"ready"`
	Connected bool   `json:"connected" msgpack:"connected"`
}

// snapshotState is the authoritative state sent to clients. The current
// question's answer index is withheld.
type snapshotState struct {
	Phase    Phase            `json:"phase" msgpack:"phase"`
	Question *snapshotQ       `json:"question,omitempty" msgpack:"question,omitempty"`
	Players  []snapshotPlayer `json:"players" msgpack:"players"`
}

type snapshotQ struct {
	Index   int      `json:"index" msgpack:"index"`
	Prompt  string   `json:"prompt" msgpack:"prompt"`
	Choices []string `json:"choices" msgpack:"choices"`
}

// Snapshot builds the full state view. The receiving client's identity
// does not change the view in this game.
func (g *Game) Snapshot(_ *proto.ClientContext) (any, error) {
	state := snapshotState{Phase: g.phase, Players: []snapshotPlayer{}}
	if g.phase == PhaseQuestion && g.current < len(g.questions) {
		q := g.questions[g.current]
		state.Question = &snapshotQ{Index: g.current, Prompt: q.Prompt, Choices: q.Choices}
	}
	for id, s := range g.room.Sessions().All() {
		state.Players = append(state.Players, snapshotPlayer{
			ClientID:  id,
			Name:      s.Context.DisplayName,
			Role:      string(s.Context.Role),
			Score:     s.Data.Score,
			Ready:     s.Data.Ready,
			Connected: s.Connected,
		})
	}
	return state, nil
}

// OnLeave only logs; scores survive the grace period via the session.
func (g *Game) OnLeave(_ context.Context, client *proto.ClientContext) {
	g.log.Debug().Str("client_id", client.ClientID).Msg("client left")
}

// OnSessionTimeout frees the host seat when the host's grace period
// elapses, so a new display can claim it.
func (g *Game) OnSessionTimeout(clientID string, _ *session.Session[PlayerData]) {
	delete(g.answers, clientID)
	if clientID == g.hostID {
		g.hostID = ""
	}
}

// intField reads a numeric field from a decoded event payload. JSON
// numbers arrive as float64, msgpack as assorted integer widths.
func intField(data map[string]any, key string) (int, bool) {
	v, ok := data[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func defaultQuestions() []Question {
	return []Question{
		{Prompt: "Which planet is closest to the sun?", Choices: []string{"Venus", "Mercury", "Mars"}, Answer: 1},
		{Prompt: "How many bits in a byte?", Choices: []string{"4", "8", "16"}, Answer: 1},
		{Prompt: "What does TCP stand for?", Choices: []string{"Transmission Control Protocol", "Total Connection Pool", "Typed Channel Protocol"}, Answer: 0},
	}
}
