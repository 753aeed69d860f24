// Package proto defines the wire catalogue shared by the relay server and
// both client roles. Every frame is a UTF-8 JSON object with a string
// "type" field discriminating the message kind.
package proto

import "encoding/json"

// Message type discriminators.
const (
	TypeCreate     = "create"
	TypeJoin       = "join"
	TypeJoined     = "joined"
	TypeStart      = "start"
	TypeDrop       = "drop"
	TypeAutoDrop   = "autoDrop"
	TypeNewFruit   = "newFruit"
	TypeTimer      = "timer"
	TypeCursor     = "cursor"
	TypeGameOver   = "gameOver"
	TypeRestart    = "restart"
	TypeWorldState = "worldState"
	TypeMerge      = "merge"
	TypeDestroy    = "destroy"
	TypePlayerLeft = "playerLeft"
	TypeError      = "error"
)

// PlayerQueue carries one player's two-deep preview queue in start and
// restart payloads.
type PlayerQueue struct {
	ID       int `json:"id"`
	Tier     int `json:"tier"`
	NextTier int `json:"nextTier"`
}

// Body is one object sample inside a world snapshot. Keys are shortened
// to keep the 30 Hz payload small.
type Body struct {
	UID   string  `json:"u"`
	Tier  int     `json:"t"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Angle float64 `json:"a"`
}

// Envelope is the decoded superset of every inbound frame. The relay and
// the client both unmarshal into it and switch on Type; fields that are
// absent stay at their zero value.
type Envelope struct {
	Type             string        `json:"type"`
	Code             string        `json:"code,omitempty"`
	PlayerID         int           `json:"playerId,omitempty"`
	Players          []PlayerQueue `json:"players,omitempty"`
	Tier             int           `json:"tier,omitempty"`
	NextTier         int           `json:"nextTier,omitempty"`
	TimeLeft         int           `json:"timeLeft,omitempty"`
	X                float64       `json:"x,omitempty"`
	Y                float64       `json:"y,omitempty"`
	UID              string        `json:"uid,omitempty"`
	UIDA             string        `json:"uidA,omitempty"`
	UIDB             string        `json:"uidB,omitempty"`
	ResultUID        string        `json:"resultUid,omitempty"`
	ResultTier       int           `json:"resultTier,omitempty"`
	Score            int           `json:"score,omitempty"`
	Seq              uint64        `json:"seq,omitempty"`
	Bodies           []Body        `json:"b,omitempty"`
	HostDisconnected bool          `json:"hostDisconnected,omitempty"`
	Message          string        `json:"message,omitempty"`
}

// Decode parses a raw frame. A frame without a string type is a protocol
// violation and yields ok=false even when the JSON itself is well formed.
func Decode(data []byte) (Envelope, bool) {
	var probe struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Envelope{}, false
	}
	var kind string
	if err := json.Unmarshal(probe.Type, &kind); err != nil || kind == "" {
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, false
	}
	return env, true
}

// --- client -> server requests ---

type CreateRequest struct {
	Type string `json:"type"`
}

type JoinRequest struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type DropRequest struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
}

type CursorRequest struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
}

type GameOverRequest struct {
	Type  string `json:"type"`
	Score int    `json:"score"`
}

type RestartRequest struct {
	Type string `json:"type"`
}

// --- server -> client messages ---

type JoinedMessage struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
	Code     string `json:"code"`
}

type StartMessage struct {
	Type    string        `json:"type"`
	Players []PlayerQueue `json:"players"`
}

// DropMessage is broadcast for both manual drops and auto-drops; only the
// type differs.
type DropMessage struct {
	Type     string  `json:"type"`
	PlayerID int     `json:"playerId"`
	Tier     int     `json:"tier"`
	X        float64 `json:"x"`
	UID      string  `json:"uid"`
}

type NewFruitMessage struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
	Tier     int    `json:"tier"`
	NextTier int    `json:"nextTier"`
}

type TimerMessage struct {
	Type     string `json:"type"`
	PlayerID int    `json:"playerId"`
	TimeLeft int    `json:"timeLeft"`
}

type CursorMessage struct {
	Type     string  `json:"type"`
	PlayerID int     `json:"playerId"`
	X        float64 `json:"x"`
}

type GameOverMessage struct {
	Type  string `json:"type"`
	Score int    `json:"score"`
}

type RestartMessage struct {
	Type    string        `json:"type"`
	Players []PlayerQueue `json:"players"`
}

type PlayerLeftMessage struct {
	Type             string `json:"type"`
	HostDisconnected bool   `json:"hostDisconnected,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- host-authored, relayed verbatim to the guest ---

type WorldStateMessage struct {
	Type   string `json:"type"`
	Bodies []Body `json:"b"`
	Score  int    `json:"score"`
	Seq    uint64 `json:"seq,omitempty"`
}

type MergeMessage struct {
	Type       string  `json:"type"`
	UIDA       string  `json:"uidA"`
	UIDB       string  `json:"uidB"`
	ResultUID  string  `json:"resultUid"`
	ResultTier int     `json:"resultTier"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Score      int     `json:"score"`
}

type DestroyMessage struct {
	Type  string  `json:"type"`
	UIDA  string  `json:"uidA"`
	UIDB  string  `json:"uidB"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score int     `json:"score"`
}
