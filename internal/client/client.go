package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"batupuz/internal/proto"
)

// cursorSendThrottle limits how often the local cursor position goes out.
const cursorSendThrottle = 150 * time.Millisecond

// Handlers holds one callback per inbound message kind. Any number of
// consumers can be fanned out from these without the connection knowing
// about them; nil entries are skipped.
type Handlers struct {
	Joined       func(proto.JoinedMessage)
	Start        func(proto.StartMessage)
	Drop         func(proto.DropMessage)
	AutoDrop     func(proto.DropMessage)
	NewFruit     func(proto.NewFruitMessage)
	Timer        func(proto.TimerMessage)
	Cursor       func(proto.CursorMessage)
	GameOver     func(proto.GameOverMessage)
	Restart      func(proto.RestartMessage)
	WorldState   func(proto.WorldStateMessage)
	Merge        func(proto.MergeMessage)
	Destroy      func(proto.DestroyMessage)
	PlayerLeft   func(proto.PlayerLeftMessage)
	Error        func(proto.ErrorMessage)
	Disconnected func()
}

// Conn is one participant's connection to the relay. Writes are
// serialized; the read loop dispatches decoded messages to Handlers.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	logger  zerolog.Logger

	// Handlers must be assigned before Run is called.
	Handlers Handlers

	mu         sync.Mutex
	playerID   int
	isHost     bool
	roomCode   string
	joined     bool
	lastCursor time.Time
}

// Dial connects to the relay's websocket endpoint.
func Dial(url string, logger zerolog.Logger) (*Conn, error) {
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws, logger: logger, playerID: -1}, nil
}

// Close tears down the socket. The relay treats closure as the
// disconnect signal.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// PlayerID returns the assigned slot, -1 before joined arrives.
func (c *Conn) PlayerID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// IsHost reports whether this participant is the simulation authority.
// The role is fixed the moment joined arrives.
func (c *Conn) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHost
}

// RoomCode returns the code of the joined room.
func (c *Conn) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

// Run reads frames until the socket closes, dispatching each message to
// its handler. Malformed frames are dropped. Always invokes the
// Disconnected handler on return.
func (c *Conn) Run() {
	defer func() {
		if c.Handlers.Disconnected != nil {
			c.Handlers.Disconnected()
		}
	}()

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		env, ok := proto.Decode(payload)
		if !ok {
			c.logger.Debug().Msg("discarding malformed message")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Conn) dispatch(env proto.Envelope) {
	switch env.Type {
	case proto.TypeJoined:
		c.mu.Lock()
		c.playerID = env.PlayerID
		c.isHost = env.PlayerID == 0
		c.roomCode = env.Code
		c.joined = true
		c.mu.Unlock()
		if c.Handlers.Joined != nil {
			c.Handlers.Joined(proto.JoinedMessage{Type: env.Type, PlayerID: env.PlayerID, Code: env.Code})
		}
	case proto.TypeStart:
		if c.Handlers.Start != nil {
			c.Handlers.Start(proto.StartMessage{Type: env.Type, Players: env.Players})
		}
	case proto.TypeDrop:
		if c.Handlers.Drop != nil {
			c.Handlers.Drop(dropFromEnvelope(env))
		}
	case proto.TypeAutoDrop:
		if c.Handlers.AutoDrop != nil {
			c.Handlers.AutoDrop(dropFromEnvelope(env))
		}
	case proto.TypeNewFruit:
		if c.Handlers.NewFruit != nil {
			c.Handlers.NewFruit(proto.NewFruitMessage{Type: env.Type, PlayerID: env.PlayerID, Tier: env.Tier, NextTier: env.NextTier})
		}
	case proto.TypeTimer:
		if c.Handlers.Timer != nil {
			c.Handlers.Timer(proto.TimerMessage{Type: env.Type, PlayerID: env.PlayerID, TimeLeft: env.TimeLeft})
		}
	case proto.TypeCursor:
		if c.Handlers.Cursor != nil {
			c.Handlers.Cursor(proto.CursorMessage{Type: env.Type, PlayerID: env.PlayerID, X: env.X})
		}
	case proto.TypeGameOver:
		if c.Handlers.GameOver != nil {
			c.Handlers.GameOver(proto.GameOverMessage{Type: env.Type, Score: env.Score})
		}
	case proto.TypeRestart:
		if c.Handlers.Restart != nil {
			c.Handlers.Restart(proto.RestartMessage{Type: env.Type, Players: env.Players})
		}
	case proto.TypeWorldState:
		if c.Handlers.WorldState != nil {
			c.Handlers.WorldState(proto.WorldStateMessage{Type: env.Type, Bodies: env.Bodies, Score: env.Score, Seq: env.Seq})
		}
	case proto.TypeMerge:
		if c.Handlers.Merge != nil {
			c.Handlers.Merge(proto.MergeMessage{
				Type:       env.Type,
				UIDA:       env.UIDA,
				UIDB:       env.UIDB,
				ResultUID:  env.ResultUID,
				ResultTier: env.ResultTier,
				X:          env.X,
				Y:          env.Y,
				Score:      env.Score,
			})
		}
	case proto.TypeDestroy:
		if c.Handlers.Destroy != nil {
			c.Handlers.Destroy(proto.DestroyMessage{Type: env.Type, UIDA: env.UIDA, UIDB: env.UIDB, X: env.X, Y: env.Y, Score: env.Score})
		}
	case proto.TypePlayerLeft:
		if c.Handlers.PlayerLeft != nil {
			c.Handlers.PlayerLeft(proto.PlayerLeftMessage{Type: env.Type, HostDisconnected: env.HostDisconnected})
		}
	case proto.TypeError:
		if c.Handlers.Error != nil {
			c.Handlers.Error(proto.ErrorMessage{Type: env.Type, Message: env.Message})
		}
	default:
		c.logger.Debug().Str("type", env.Type).Msg("unknown message type")
	}
}

func dropFromEnvelope(env proto.Envelope) proto.DropMessage {
	return proto.DropMessage{Type: env.Type, PlayerID: env.PlayerID, Tier: env.Tier, X: env.X, UID: env.UID}
}

func (c *Conn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// CreateRoom asks the relay for a fresh room.
func (c *Conn) CreateRoom() error {
	return c.send(proto.CreateRequest{Type: proto.TypeCreate})
}

// JoinRoom asks to be seated in an existing room.
func (c *Conn) JoinRoom(code string) error {
	return c.send(proto.JoinRequest{Type: proto.TypeJoin, Code: code})
}

// SendDrop requests a drop at x. The relay remains the single source of
// truth for whether it is accepted; there is no cancellation path.
func (c *Conn) SendDrop(x float64) error {
	return c.send(proto.DropRequest{Type: proto.TypeDrop, X: x})
}

// SendCursor shares the local cursor position, throttled client-side.
func (c *Conn) SendCursor(x float64) error {
	c.mu.Lock()
	now := time.Now()
	if now.Sub(c.lastCursor) < cursorSendThrottle {
		c.mu.Unlock()
		return nil
	}
	c.lastCursor = now
	c.mu.Unlock()
	return c.send(proto.CursorRequest{Type: proto.TypeCursor, X: x})
}

// SendGameOver reports the final score. Host only; the relay drops it
// from anyone else.
func (c *Conn) SendGameOver(score int) error {
	if !c.IsHost() {
		return nil
	}
	return c.send(proto.GameOverRequest{Type: proto.TypeGameOver, Score: score})
}

// SendRestart asks for a rematch once the room is over.
func (c *Conn) SendRestart() error {
	return c.send(proto.RestartRequest{Type: proto.TypeRestart})
}

// SendWorldState broadcasts a periodic snapshot. Host only.
func (c *Conn) SendWorldState(bodies []proto.Body, score int, seq uint64) error {
	if !c.IsHost() {
		return nil
	}
	return c.send(proto.WorldStateMessage{Type: proto.TypeWorldState, Bodies: bodies, Score: score, Seq: seq})
}

// SendMerge emits a canonical merge event. Host only.
func (c *Conn) SendMerge(msg proto.MergeMessage) error {
	if !c.IsHost() {
		return nil
	}
	msg.Type = proto.TypeMerge
	return c.send(msg)
}

// SendDestroy emits a max-rank annihilation event. Host only.
func (c *Conn) SendDestroy(msg proto.DestroyMessage) error {
	if !c.IsHost() {
		return nil
	}
	msg.Type = proto.TypeDestroy
	return c.send(msg)
}
