package relay

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"batupuz/internal/game"
	"batupuz/internal/proto"
)

// Participant is one seated player. Slot 0 is always the authority; the
// role is fixed at join time and never inferred again.
type Participant struct {
	room *Room
	conn Sender
	slot int
	host bool

	tier       int
	nextTier   int
	timerSec   int
	lastDrop   time.Time
	lastCursor time.Time
	countdown  *countdownToken
}

// Slot returns the participant's stable slot index (0 or 1).
func (p *Participant) Slot() int { return p.slot }

// IsHost reports whether this participant is the simulation authority.
func (p *Participant) IsHost() bool { return p.host }

// Room returns the room the participant sits in.
func (p *Participant) Room() *Room { return p.room }

// countdownToken is the cancellation handle for one scheduled countdown.
// The running goroutine compares its token against the participant's
// current one on every tick, so a stale timer can never act after it has
// been replaced or the room torn down.
type countdownToken struct {
	stop chan struct{}
}

// Room is an isolated two-player session. All operations on a room are
// serialized by its mutex; rooms never share mutable state.
type Room struct {
	mu     sync.Mutex
	code   string
	cfg    Config
	logger zerolog.Logger
	rng    *rand.Rand
	now    func() time.Time

	players    []*Participant
	started    bool
	over       bool
	nextDropID uint64
}

func newRoom(code string, cfg Config, logger zerolog.Logger, rng *rand.Rand, now func() time.Time) *Room {
	return &Room{
		code:   code,
		cfg:    cfg,
		logger: logger,
		rng:    rng,
		now:    now,
	}
}

// Code returns the room's join code.
func (r *Room) Code() string { return r.code }

// AddPlayer seats a participant, replies with joined, and starts the game
// exactly once when the second participant arrives.
func (r *Room) AddPlayer(conn Sender) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) >= 2 {
		return nil, ErrRoomFull
	}
	if r.over {
		// A participant already left; the room is dead and only waiting
		// to be emptied.
		return nil, ErrRoomNotFound
	}

	p := &Participant{
		room:     r,
		conn:     conn,
		slot:     len(r.players),
		host:     len(r.players) == 0,
		tier:     game.RandomSpawnTier(r.rng),
		nextTier: game.RandomSpawnTier(r.rng),
	}
	r.players = append(r.players, p)

	r.send(p, proto.JoinedMessage{Type: proto.TypeJoined, PlayerID: p.slot, Code: r.code})

	if len(r.players) == 2 {
		r.startGameLocked()
	}
	return p, nil
}

func (r *Room) startGameLocked() {
	r.started = true
	r.broadcastLocked(proto.StartMessage{Type: proto.TypeStart, Players: r.queuesLocked()})
	for _, p := range r.players {
		r.startCountdownLocked(p)
	}
	r.logger.Info().Msg("game started")
}

func (r *Room) queuesLocked() []proto.PlayerQueue {
	queues := make([]proto.PlayerQueue, 0, len(r.players))
	for _, p := range r.players {
		queues = append(queues, proto.PlayerQueue{ID: p.slot, Tier: p.tier, NextTier: p.nextTier})
	}
	return queues
}

// HandleDrop validates and broadcasts a manual drop, then advances the
// player's rank queue and restarts their countdown.
func (r *Room) HandleDrop(p *Participant, x float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.over || !r.started {
		return
	}
	now := r.now()
	if now.Sub(p.lastDrop) < r.cfg.DropCooldown {
		return
	}
	p.lastDrop = now

	tier := p.tier
	uid := game.DropUID(r.nextDropID)
	r.nextDropID++

	r.broadcastLocked(proto.DropMessage{
		Type:     proto.TypeDrop,
		PlayerID: p.slot,
		Tier:     tier,
		X:        game.ClampX(tier, x),
		UID:      uid,
	})
	r.advanceQueueLocked(p)
}

// autoDropLocked runs when a participant's countdown reaches zero: the
// relay picks a random x and drops the player's current rank for them.
func (r *Room) autoDropLocked(p *Participant) {
	if r.over {
		return
	}

	uid := game.DropUID(r.nextDropID)
	r.nextDropID++

	r.broadcastLocked(proto.DropMessage{
		Type:     proto.TypeAutoDrop,
		PlayerID: p.slot,
		Tier:     p.tier,
		X:        game.RandomDropX(r.rng),
		UID:      uid,
	})
	r.advanceQueueLocked(p)
}

func (r *Room) advanceQueueLocked(p *Participant) {
	p.tier = p.nextTier
	p.nextTier = game.RandomSpawnTier(r.rng)

	r.broadcastLocked(proto.NewFruitMessage{
		Type:     proto.TypeNewFruit,
		PlayerID: p.slot,
		Tier:     p.tier,
		NextTier: p.nextTier,
	})
	r.startCountdownLocked(p)
}

// HandleCursor relays a cursor position to the other participant only,
// throttled per player.
func (r *Room) HandleCursor(p *Participant, x float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(p.lastCursor) < r.cfg.CursorThrottle {
		return
	}
	p.lastCursor = now

	r.sendOthersLocked(p, proto.CursorMessage{Type: proto.TypeCursor, PlayerID: p.slot, X: x})
}

// HandleGameOver ends the game. Only the authority may declare it, and a
// repeat declaration is a no-op.
func (r *Room) HandleGameOver(p *Participant, score int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !p.host || r.over {
		return
	}
	r.over = true
	for _, q := range r.players {
		r.stopCountdownLocked(q)
	}
	r.broadcastLocked(proto.GameOverMessage{Type: proto.TypeGameOver, Score: score})
	r.logger.Info().Int("score", score).Msg("game over")
}

// HandleRestart re-randomizes both rank queues and resumes play. Accepted
// only while the room is over.
func (r *Room) HandleRestart(p *Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.over || !r.started {
		return
	}
	r.over = false
	r.nextDropID = 0
	for _, q := range r.players {
		q.tier = game.RandomSpawnTier(r.rng)
		q.nextTier = game.RandomSpawnTier(r.rng)
		q.lastDrop = time.Time{}
	}

	r.broadcastLocked(proto.RestartMessage{Type: proto.TypeRestart, Players: r.queuesLocked()})
	for _, q := range r.players {
		r.startCountdownLocked(q)
	}
}

// HandleWorldState forwards a host snapshot to the guest. The authority's
// own state is never echoed back to it.
func (r *Room) HandleWorldState(p *Participant, env proto.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !p.host {
		return
	}
	r.sendOthersLocked(p, proto.WorldStateMessage{
		Type:   proto.TypeWorldState,
		Bodies: env.Bodies,
		Score:  env.Score,
		Seq:    env.Seq,
	})
}

// HandleMerge forwards a canonical merge event to the guest.
func (r *Room) HandleMerge(p *Participant, env proto.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !p.host {
		return
	}
	r.sendOthersLocked(p, proto.MergeMessage{
		Type:       proto.TypeMerge,
		UIDA:       env.UIDA,
		UIDB:       env.UIDB,
		ResultUID:  env.ResultUID,
		ResultTier: env.ResultTier,
		X:          env.X,
		Y:          env.Y,
		Score:      env.Score,
	})
}

// HandleDestroy forwards a max-rank annihilation event to the guest.
func (r *Room) HandleDestroy(p *Participant, env proto.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !p.host {
		return
	}
	r.sendOthersLocked(p, proto.DestroyMessage{
		Type:  proto.TypeDestroy,
		UIDA:  env.UIDA,
		UIDB:  env.UIDB,
		X:     env.X,
		Y:     env.Y,
		Score: env.Score,
	})
}

// removePlayer tears down a departing participant and tells the remaining
// one the room is dead. Returns true once the room is empty and should be
// deleted.
func (r *Room) removePlayer(p *Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopCountdownLocked(p)
	wasHost := p.host

	kept := r.players[:0]
	for _, q := range r.players {
		if q != p {
			kept = append(kept, q)
		}
	}
	r.players = kept

	if len(r.players) > 0 {
		for _, q := range r.players {
			r.stopCountdownLocked(q)
		}
		r.broadcastLocked(proto.PlayerLeftMessage{Type: proto.TypePlayerLeft, HostDisconnected: wasHost})
	}

	r.started = false
	r.over = true
	return len(r.players) == 0
}

// --- countdown scheduling ---

// startCountdownLocked cancels any previous countdown for the player and
// schedules a fresh one. The immediate timer broadcast lets clients show
// the full countdown right away.
func (r *Room) startCountdownLocked(p *Participant) {
	r.stopCountdownLocked(p)
	p.timerSec = r.cfg.CountdownSeconds
	r.broadcastLocked(proto.TimerMessage{Type: proto.TypeTimer, PlayerID: p.slot, TimeLeft: p.timerSec})

	token := &countdownToken{stop: make(chan struct{})}
	p.countdown = token
	go r.runCountdown(p.slot, token)
}

func (r *Room) stopCountdownLocked(p *Participant) {
	if p.countdown != nil {
		close(p.countdown.stop)
		p.countdown = nil
	}
}

// runCountdown is the scheduled task behind one countdown. It holds only
// the slot index and its token; all state access goes back through the
// room lock.
func (r *Room) runCountdown(slot int, token *countdownToken) {
	ticker := time.NewTicker(r.cfg.CountdownTick)
	defer ticker.Stop()

	for {
		select {
		case <-token.stop:
			return
		case <-ticker.C:
			if r.countdownTick(slot, token) {
				return
			}
		}
	}
}

// countdownTick advances one countdown second. Returns true when the
// task should stop, either because it fired or because it was superseded.
func (r *Room) countdownTick(slot int, token *countdownToken) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var p *Participant
	for _, q := range r.players {
		if q.slot == slot {
			p = q
			break
		}
	}
	if p == nil || p.countdown != token {
		return true
	}
	if r.over {
		p.countdown = nil
		return true
	}

	p.timerSec--
	r.broadcastLocked(proto.TimerMessage{Type: proto.TypeTimer, PlayerID: p.slot, TimeLeft: p.timerSec})

	if p.timerSec <= 0 {
		p.countdown = nil
		r.autoDropLocked(p)
		return true
	}
	return false
}

// --- delivery ---

func (r *Room) broadcastLocked(v any) {
	for _, p := range r.players {
		r.send(p, v)
	}
}

func (r *Room) sendOthersLocked(from *Participant, v any) {
	for _, p := range r.players {
		if p != from {
			r.send(p, v)
		}
	}
}

func (r *Room) send(p *Participant, v any) {
	if err := p.conn.Send(v); err != nil {
		r.logger.Debug().Err(err).Int("slot", p.slot).Msg("send failed")
	}
}
