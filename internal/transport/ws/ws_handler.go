package ws

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/partyline/partyline-server/internal/proto"
)

// Subprotocols select the envelope encoding for a connection.
const (
	SubprotocolJSON    = "partyline.v1.json"
	SubprotocolMsgpack = "partyline.v1.msgpack"
)

// wsConn adapts a websocket connection to room.Conn. Each connection
// owns a codec in its negotiated encoding; writes are serialized.
type wsConn struct {
	id    string
	conn  *websocket.Conn
	codec *proto.Codec
	wmu   sync.Mutex
}

func (c *wsConn) SessionID() string { return c.id }

func (c *wsConn) Send(ctx context.Context, env *proto.Envelope) error {
	b, err := c.codec.Marshal(env)
	if err != nil {
		return err
	}
	msgType := websocket.MessageText
	if c.codec.Encoding().Name() == "msgpack" {
		msgType = websocket.MessageBinary
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.conn.Write(ctx, msgType, b)
}

// Handler upgrades HTTP connections and bridges them to a room adapter.
type Handler struct {
	rooms *Registry
	reg   *proto.Registry
	log   *zerolog.Logger
}

// NewHandler builds a WebSocket handler over the room registry.
func NewHandler(rooms *Registry, reg *proto.Registry, logger *zerolog.Logger) *Handler {
	return &Handler{rooms: rooms, reg: reg, log: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	rm, ok := h.rooms.Get(roomID)
	if !ok {
		http.Error(w, `{"code":"`+proto.CodeRoomNotFound+`","message":"no such room"}`, http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{SubprotocolJSON, SubprotocolMsgpack},
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	var enc proto.Encoding = proto.JSON{}
	if conn.Subprotocol() == SubprotocolMsgpack {
		enc = proto.Msgpack{}
	}

	client := &wsConn{
		id:    uuid.NewString(),
		conn:  conn,
		codec: proto.NewCodec(h.reg, enc),
	}

	ctx := r.Context()
	rm.HandleOpen(client)
	err = h.readLoop(ctx, client, rm)
	rm.HandleClose(context.WithoutCancel(ctx), client)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s > 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("session_id", client.id).Msg("ws connection closed with error")
		}
	}
	conn.Close(status, reason)
}

func (h *Handler) readLoop(ctx context.Context, client *wsConn, rm Room) error {
	for {
		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return err
		}
		env, err := client.codec.Decode(data)
		if err != nil {
			// A malformed frame gets an error reply, never a close.
			reply := client.codec.NewEnvelope(proto.TypeError,
				proto.NewError(proto.CodeBadRequest, "malformed envelope"),
				proto.Addressing{Room: rm.Info().ID, From: proto.TargetServer, To: client.id})
			if writeErr := client.Send(ctx, reply); writeErr != nil {
				return writeErr
			}
			continue
		}
		rm.HandleEnvelope(ctx, client, env)
	}
}
