// Package ws is the websocket transport for the relay. It upgrades
// connections, decodes frames, and dispatches them to the room layer;
// protocol violations are dropped without a reply.
package ws

import (
	nethttp "net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"batupuz/internal/proto"
	"batupuz/internal/relay"
)

type HandlerConfig struct {
	Logger zerolog.Logger
}

// Handler serves one websocket session per participant.
type Handler struct {
	registry *relay.Registry
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a websocket handler over the given room registry.
func NewHandler(registry *relay.Registry, cfg HandlerConfig) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	return &Handler{
		registry: registry,
		logger:   cfg.Logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and runs the session read loop until the
// socket closes. Socket closure is the disconnect signal; no message
// timeout is involved.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	sess := newSession(conn)
	defer sess.close()

	var participant *relay.Participant
	defer func() {
		if participant != nil {
			h.registry.Disconnect(participant)
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, ok := proto.Decode(payload)
		if !ok {
			h.logger.Debug().Msg("discarding malformed message")
			continue
		}

		switch env.Type {
		case proto.TypeCreate:
			if participant != nil {
				continue
			}
			participant = h.registry.CreateRoom(sess)
		case proto.TypeJoin:
			if participant != nil {
				continue
			}
			p, err := h.registry.JoinRoom(env.Code, sess)
			if err != nil {
				if serr := sess.Send(proto.ErrorMessage{Type: proto.TypeError, Message: err.Error()}); serr != nil {
					return
				}
				continue
			}
			participant = p
		case proto.TypeDrop:
			if participant != nil {
				participant.Room().HandleDrop(participant, env.X)
			}
		case proto.TypeCursor:
			if participant != nil {
				participant.Room().HandleCursor(participant, env.X)
			}
		case proto.TypeGameOver:
			if participant != nil {
				participant.Room().HandleGameOver(participant, env.Score)
			}
		case proto.TypeRestart:
			if participant != nil {
				participant.Room().HandleRestart(participant)
			}
		case proto.TypeWorldState:
			if participant != nil {
				participant.Room().HandleWorldState(participant, env)
			}
		case proto.TypeMerge:
			if participant != nil {
				participant.Room().HandleMerge(participant, env)
			}
		case proto.TypeDestroy:
			if participant != nil {
				participant.Room().HandleDestroy(participant, env)
			}
		default:
			h.logger.Debug().Str("type", env.Type).Msg("unknown message type")
		}
	}
}
