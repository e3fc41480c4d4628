package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/partyline/partyline-server/internal/config"
	"github.com/partyline/partyline-server/internal/proto"
)

// NewServer builds the HTTP server: health, room info API and the
// WebSocket upgrade route. The upgrade route is mounted on the plain
// mux, not behind gin: gin's ResponseWriter cannot be hijacked once
// the 101 status has been written.
func NewServer(rooms *Registry, reg *proto.Registry, cfg config.Config, logger *zerolog.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, rooms.List())
	})
	api.GET("/rooms/:id", func(c *gin.Context) {
		rm, ok := rooms.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, proto.NewError(proto.CodeRoomNotFound, "no such room"))
			return
		}
		c.JSON(http.StatusOK, rm.Info())
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", NewHandler(rooms, reg, logger))
	mux.Handle("/", router)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
