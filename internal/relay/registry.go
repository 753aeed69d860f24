// Package relay owns room membership, authority assignment, per-player
// countdown timers, and message forwarding between the two participants
// of a room. It is transport-agnostic: the websocket layer hands it a
// Sender per connection and calls the room entry points.
package relay

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Room join failures. The error text is the wire-visible message.
var (
	ErrRoomNotFound = errors.New("Room not found")
	ErrRoomFull     = errors.New("Room is full")
)

// Sender delivers one encoded message to a participant. Implementations
// must be safe for concurrent use; errors are treated as best-effort
// delivery failures, never as room-fatal.
type Sender interface {
	Send(v any) error
}

// codeAlphabet omits I and O so codes stay unambiguous when read aloud.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 4
)

// Registry is the single owner of all live rooms, keyed by room code.
// Its mutex guards only the map; each room carries its own lock so rooms
// are handled independently.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	cfg    Config
	logger zerolog.Logger
	rng    *rand.Rand
	now    func() time.Time
}

// RegistryOption tweaks construction, used by tests to pin randomness
// and time.
type RegistryOption func(*Registry)

// WithRand makes room codes and rank queues deterministic.
func WithRand(rng *rand.Rand) RegistryOption {
	return func(r *Registry) { r.rng = rng }
}

// WithClock substitutes the rate-limit clock.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, logger zerolog.Logger, opts ...RegistryOption) *Registry {
	reg := &Registry{
		rooms:  make(map[string]*Room),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// CreateRoom generates a code unique among active rooms, creates the room
// in the waiting state and seats the creator at slot 0 (the authority).
func (reg *Registry) CreateRoom(conn Sender) *Participant {
	reg.mu.Lock()
	var code string
	for {
		code = reg.randomCodeLocked()
		if _, taken := reg.rooms[code]; !taken {
			break
		}
	}
	room := newRoom(code, reg.cfg, reg.logger.With().Str("room", code).Logger(), reg.roomRandLocked(), reg.now)
	reg.rooms[code] = room
	reg.mu.Unlock()

	p, _ := room.AddPlayer(conn)
	return p
}

// JoinRoom seats a second participant in an existing room. The code is
// case-insensitive.
func (reg *Registry) JoinRoom(code string, conn Sender) (*Participant, error) {
	reg.mu.Lock()
	room, ok := reg.rooms[strings.ToUpper(code)]
	reg.mu.Unlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.AddPlayer(conn)
}

// Disconnect removes the participant from its room and deletes the room
// once its last participant is gone.
func (reg *Registry) Disconnect(p *Participant) {
	if p == nil {
		return
	}
	room := p.room
	if room.removePlayer(p) {
		reg.mu.Lock()
		delete(reg.rooms, room.code)
		reg.mu.Unlock()
		reg.logger.Debug().Str("room", room.code).Msg("room deleted")
	}
}

// RoomCount reports the number of live rooms for diagnostics.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

func (reg *Registry) randomCodeLocked() string {
	buf := make([]byte, codeLength)
	for i := range buf {
		buf[i] = codeAlphabet[reg.intnLocked(len(codeAlphabet))]
	}
	return string(buf)
}

func (reg *Registry) intnLocked(n int) int {
	if reg.rng != nil {
		return reg.rng.Intn(n)
	}
	return rand.Intn(n)
}

// roomRandLocked derives a per-room rng so rooms never share mutable
// random state.
func (reg *Registry) roomRandLocked() *rand.Rand {
	if reg.rng != nil {
		return rand.New(rand.NewSource(reg.rng.Int63()))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}
