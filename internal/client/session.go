package client

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"batupuz/internal/game"
	"batupuz/internal/physics"
	"batupuz/internal/proto"
)

// Session composes the connection with the role components: the host
// gets a simulation authority over the physics engine, the guest gets a
// snapshot mirror, and the acting player on either role gets drop
// prediction. Rendering and UI collaborators read its registry and
// accessors; all network effects are applied as they arrive and never
// block the frame loop.
type Session struct {
	mu     sync.Mutex
	conn   *Conn
	engine physics.Engine
	logger zerolog.Logger

	reg       *Registry
	authority *Authority
	mirror    *Mirror
	predictor *Predictor

	playerID      int
	isHost        bool
	started       bool
	over          bool
	hostLeft      bool
	score         int
	queues        [2]proto.PlayerQueue
	timers        [2]int
	remoteCursorX float64
	lastError     string
}

// NewSession wires a session over a dialed connection. engine may be nil
// for a guest; the host role requires one and panics without it, since a
// host that cannot simulate is a programming error, not a runtime
// condition.
func NewSession(conn *Conn, engine physics.Engine, logger zerolog.Logger) *Session {
	s := &Session{
		conn:     conn,
		engine:   engine,
		logger:   logger,
		reg:      NewRegistry(),
		playerID: -1,
	}
	s.predictor = NewPredictor(s.reg, s.spawnLocal, s.removeLocal)

	conn.Handlers = Handlers{
		Joined:     s.handleJoined,
		Start:      s.handleStart,
		Drop:       s.handleDrop,
		AutoDrop:   s.handleAutoDrop,
		NewFruit:   s.handleNewFruit,
		Timer:      s.handleTimer,
		Cursor:     s.handleCursor,
		GameOver:   s.handleGameOver,
		Restart:    s.handleRestart,
		WorldState: s.handleWorldState,
		Merge:      s.handleMerge,
		Destroy:    s.handleDestroy,
		PlayerLeft: s.handlePlayerLeft,
		Error:      s.handleError,
	}
	return s
}

// --- inbound ---

func (s *Session) handleJoined(msg proto.JoinedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playerID = msg.PlayerID
	s.isHost = msg.PlayerID == 0
	if s.isHost {
		if s.engine == nil {
			panic("client: host session requires a physics engine")
		}
		s.authority = NewAuthority(s.engine, s.reg, s.conn, s.logger)
		s.authority.OnGameOver = func(int) { s.over = true }
	} else {
		s.mirror = NewMirror(s.reg, func(score int) { s.score = score })
	}
}

func (s *Session) handleStart(msg proto.StartMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyQueuesLocked(msg.Players)
	s.started = true
	s.over = false
	s.score = 0
}

func (s *Session) handleDrop(msg proto.DropMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.PlayerID == s.playerID {
		s.predictor.Confirm(msg.PlayerID, msg.Tier, msg.X, msg.UID)
		return
	}
	s.spawnLocal(msg.PlayerID, msg.Tier, msg.X, msg.UID)
}

func (s *Session) handleAutoDrop(msg proto.DropMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A relay-forced drop supersedes any manual one still in flight.
	if msg.PlayerID == s.playerID {
		s.predictor.Cancel()
	}
	s.spawnLocal(msg.PlayerID, msg.Tier, msg.X, msg.UID)
}

func (s *Session) handleNewFruit(msg proto.NewFruitMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.PlayerID >= 0 && msg.PlayerID < len(s.queues) {
		s.queues[msg.PlayerID] = proto.PlayerQueue{ID: msg.PlayerID, Tier: msg.Tier, NextTier: msg.NextTier}
	}
}

func (s *Session) handleTimer(msg proto.TimerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.PlayerID >= 0 && msg.PlayerID < len(s.timers) {
		s.timers[msg.PlayerID] = msg.TimeLeft
	}
}

func (s *Session) handleCursor(msg proto.CursorMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteCursorX = msg.X
}

func (s *Session) handleGameOver(msg proto.GameOverMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.over = true
	s.score = msg.Score
	if s.authority != nil {
		s.authority.SetOver()
	}
}

func (s *Session) handleRestart(msg proto.RestartMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.predictor.Cancel()
	if s.authority != nil {
		s.authority.Restart()
	} else {
		s.reg.Clear()
		if s.mirror != nil {
			s.mirror.Reset()
		}
	}
	s.applyQueuesLocked(msg.Players)
	s.over = false
	s.score = 0
}

func (s *Session) handleWorldState(msg proto.WorldStateMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror == nil {
		return
	}
	s.mirror.ApplyWorldState(msg)
}

func (s *Session) handleMerge(msg proto.MergeMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror == nil {
		return
	}
	s.mirror.ApplyMerge(msg)
}

func (s *Session) handleDestroy(msg proto.DestroyMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror == nil {
		return
	}
	s.mirror.ApplyDestroy(msg)
}

func (s *Session) handlePlayerLeft(msg proto.PlayerLeftMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.over = true
	s.hostLeft = msg.HostDisconnected
	if s.authority != nil {
		s.authority.SetOver()
	}
}

func (s *Session) handleError(msg proto.ErrorMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg.Message
}

func (s *Session) applyQueuesLocked(players []proto.PlayerQueue) {
	for _, q := range players {
		if q.ID >= 0 && q.ID < len(s.queues) {
			s.queues[q.ID] = q
		}
	}
}

// --- local spawn/remove, role-aware ---

func (s *Session) spawnLocal(owner, tier int, x float64, uid string) *Object {
	if !game.ValidTier(tier) {
		return nil
	}
	if s.authority != nil {
		return s.authority.Spawn(owner, tier, x, uid)
	}
	obj := &Object{
		UID:       uid,
		Tier:      tier,
		Owner:     owner,
		X:         game.ClampX(tier, x),
		Y:         game.DropY,
		SpawnedAt: time.Now(),
	}
	s.reg.Put(obj)
	return obj
}

func (s *Session) removeLocal(uid string) {
	if s.authority != nil {
		s.authority.Remove(uid)
		return
	}
	s.reg.Remove(uid)
}

// --- input from the UI layer ---

// Drop requests a drop at x and speculatively spawns the provisional
// object. Input is ignored while a previous drop awaits confirmation.
func (s *Session) Drop(x float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.over || !s.started || s.playerID < 0 {
		return
	}
	if s.predictor.Pending() {
		return
	}
	if err := s.conn.SendDrop(x); err != nil {
		s.logger.Debug().Err(err).Msg("drop send failed")
		return
	}
	tier := s.queues[s.playerID].Tier
	s.predictor.TryDrop(s.playerID, tier, x)
}

// Cursor shares the local cursor position with the opponent.
func (s *Session) Cursor(x float64) {
	if err := s.conn.SendCursor(x); err != nil {
		s.logger.Debug().Err(err).Msg("cursor send failed")
	}
}

// RequestRestart asks for a rematch.
func (s *Session) RequestRestart() {
	if err := s.conn.SendRestart(); err != nil {
		s.logger.Debug().Err(err).Msg("restart send failed")
	}
}

// Step drives one frame: the host advances physics and broadcasts, the
// guest interpolates toward its latest targets, and pending predictions
// are expired. dt is in seconds.
func (s *Session) Step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.predictor.Step()
	if s.authority != nil {
		s.authority.Step(dt)
		return
	}
	if s.mirror != nil {
		s.mirror.Interpolate(dt * 1000)
	}
}

// --- read accessors for rendering/UI ---

// Objects returns a copy of every live object for display.
func (s *Session) Objects() []Object {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Object, 0, s.reg.Len())
	s.reg.Each(func(obj *Object) {
		out = append(out, *obj)
	})
	return out
}

// Score returns the current score, authoritative on the host and
// mirrored on the guest.
func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authority != nil {
		return s.authority.Score()
	}
	return s.score
}

// Queue returns a player's current/next rank preview.
func (s *Session) Queue(playerID int) proto.PlayerQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playerID < 0 || playerID >= len(s.queues) {
		return proto.PlayerQueue{}
	}
	return s.queues[playerID]
}

// TimeLeft returns a player's countdown seconds as last broadcast.
func (s *Session) TimeLeft(playerID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if playerID < 0 || playerID >= len(s.timers) {
		return 0
	}
	return s.timers[playerID]
}

// Over reports whether the game has ended.
func (s *Session) Over() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.over
}

// HostLeft reports whether the game ended because the authority
// disconnected.
func (s *Session) HostLeft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostLeft
}

// RemoteCursorX returns the opponent's last relayed cursor position.
func (s *Session) RemoteCursorX() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteCursorX
}

// LastError returns the most recent error reply from the relay.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}
