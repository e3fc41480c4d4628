// Package app wires configuration, rooms and the transport layer into a
// runnable server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/partyline/partyline-server/internal/auth"
	"github.com/partyline/partyline-server/internal/config"
	"github.com/partyline/partyline-server/internal/game/quiz"
	"github.com/partyline/partyline-server/internal/proto"
	"github.com/partyline/partyline-server/internal/room"
	"github.com/partyline/partyline-server/internal/transport/ws"
	"github.com/partyline/partyline-server/internal/utils"
)

// App wires together protocol core and transport layers.
type App struct {
	server          *http.Server
	shutdownTimeout time.Duration
	rooms           *ws.Registry
	log             *zerolog.Logger
}

// New constructs the application with provided configuration. One demo
// quiz room is created at startup; additional rooms can be added to the
// registry before Run.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	registry := proto.DefaultRegistry()
	codec := proto.NewCodec(registry, proto.JSON{})

	var tokens *auth.Issuer
	if cfg.TokenSecret != "" {
		tokens = auth.NewIssuer(auth.TokenConfig{
			Secret: []byte(cfg.TokenSecret),
			Issuer: cfg.TokenIssuer,
			TTL:    cfg.TokenTTL,
		})
	} else {
		logger.Warn().Msg("no token secret configured, reconnect tokens disabled")
	}

	rooms := ws.NewRegistry()

	game := quiz.New(nil, *logger)
	adapter := room.New[quiz.PlayerData](codec, game, room.Options{
		Info: proto.RoomInfo{
			ID:         "quiz",
			Code:       utils.NewRoomCode(),
			Type:       "quiz",
			Visibility: "public",
			MaxClients: cfg.MaxClients,
		},
		GracePeriod:  cfg.GracePeriod,
		Reconnection: cfg.Reconnection,
		RateLimit:    cfg.RateLimit,
		Features:     []string{"reconnect", "presence", "snapshot"},
		Tokens:       tokens,
	}, *logger)
	game.Bind(adapter)
	rooms.Add(adapter)

	server := ws.NewServer(rooms, registry, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		rooms:           rooms,
		log:             logger,
	}, nil
}

// Rooms exposes the room registry.
func (a *App) Rooms() *ws.Registry { return a.rooms }

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("server listening")

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
