package client

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"batupuz/internal/game"
	"batupuz/internal/physics"
	"batupuz/internal/proto"
)

// EventSender is the outbound half the authority needs: canonical events
// and periodic snapshots on their way to the relay.
type EventSender interface {
	SendWorldState(bodies []proto.Body, score int, seq uint64) error
	SendMerge(msg proto.MergeMessage) error
	SendDestroy(msg proto.DestroyMessage) error
	SendGameOver(score int) error
}

const (
	gameOverCheckInterval = 0.5 // seconds of simulated time
	gameOverGrace         = 2.0 // let freshly dropped objects fall
	settleSpeed           = 0.5
	snapshotInterval      = snapshotIntervalMs / 1000.0
	mergeImpulseY         = -2.0
)

// Authority is the single component allowed to decide that two objects
// have merged. It owns the canonical world: the guest's registry is only
// a mirror of what this emits.
type Authority struct {
	engine physics.Engine
	reg    *Registry
	out    EventSender
	logger zerolog.Logger

	// OnGameOver is invoked once when the elimination check fires; may
	// be nil.
	OnGameOver func(score int)

	bodies      map[physics.BodyID]*Object
	merging     map[physics.BodyID]struct{}
	score       int
	seq         uint64
	nextMergeID uint64
	over        bool

	simTime   float64
	lastCheck float64
	snapAccum float64
}

// NewAuthority wires the authority to the physics substrate and the
// outbound sender. Collision handling, the merge decision, and event
// emission all happen synchronously within one engine step.
func NewAuthority(engine physics.Engine, reg *Registry, out EventSender, logger zerolog.Logger) *Authority {
	a := &Authority{
		engine:  engine,
		reg:     reg,
		out:     out,
		logger:  logger,
		bodies:  make(map[physics.BodyID]*Object),
		merging: make(map[physics.BodyID]struct{}),
	}
	engine.OnCollisionStart(a.handleCollision)
	return a
}

// Score returns the current authoritative score.
func (a *Authority) Score() int { return a.score }

// Over reports whether the elimination check has fired.
func (a *Authority) Over() bool { return a.over }

// SetOver marks the game over without emitting, used when the relay
// reports it first (opponent left, restart races).
func (a *Authority) SetOver() { a.over = true }

// Spawn creates an authoritative object with a physics body at the
// clamped drop position.
func (a *Authority) Spawn(owner, tier int, x float64, uid string) *Object {
	cx := game.ClampX(tier, x)
	body := a.engine.AddBody(cx, game.DropY, game.Radius(tier))
	obj := &Object{
		UID:       uid,
		Tier:      tier,
		Owner:     owner,
		Body:      body,
		X:         cx,
		Y:         game.DropY,
		SpawnedAt: time.Now(),
		spawnSim:  a.simTime,
	}
	a.reg.Put(obj)
	a.bodies[body] = obj
	return obj
}

// Remove destroys an object and its physics body.
func (a *Authority) Remove(uid string) {
	obj := a.reg.Get(uid)
	if obj == nil {
		return
	}
	a.engine.RemoveBody(obj.Body)
	delete(a.bodies, obj.Body)
	a.reg.Remove(uid)
}

// Step advances the simulation by dt seconds, then runs the fixed-cadence
// elimination check and snapshot broadcast. The emitted events always
// reflect the state that will be rendered this frame.
func (a *Authority) Step(dt float64) {
	a.engine.Step(dt)
	a.simTime += dt

	for body, obj := range a.bodies {
		if x, y, ok := a.engine.Position(body); ok {
			obj.X, obj.Y = x, y
			obj.Angle = a.engine.Angle(body)
		}
	}

	if !a.over && a.simTime-a.lastCheck >= gameOverCheckInterval {
		a.lastCheck = a.simTime
		a.checkGameOver()
	}

	a.snapAccum += dt
	if a.snapAccum >= snapshotInterval {
		a.snapAccum = 0
		a.broadcastWorld()
	}
}

// Restart clears the world and resets every counter the canonical event
// stream depends on.
func (a *Authority) Restart() {
	for body := range a.bodies {
		a.engine.RemoveBody(body)
	}
	a.bodies = make(map[physics.BodyID]*Object)
	a.merging = make(map[physics.BodyID]struct{})
	a.reg.Clear()
	a.score = 0
	a.seq = 0
	a.nextMergeID = 0
	a.over = false
	a.snapAccum = 0
	a.lastCheck = a.simTime
}

// handleCollision runs for every new contact pair. Equal ranks merge;
// equal max ranks annihilate. The per-pair lock keeps a body from being
// consumed twice by simultaneous notifications in the same tick and is
// released as soon as the decision is finalized.
func (a *Authority) handleCollision(ba, bb physics.BodyID) {
	objA, okA := a.bodies[ba]
	objB, okB := a.bodies[bb]
	if !okA || !okB {
		return
	}
	if _, busy := a.merging[ba]; busy {
		return
	}
	if _, busy := a.merging[bb]; busy {
		return
	}
	if objA.Tier != objB.Tier {
		return
	}

	a.merging[ba] = struct{}{}
	a.merging[bb] = struct{}{}
	defer func() {
		delete(a.merging, ba)
		delete(a.merging, bb)
	}()

	ax, ay := a.bodyPosition(ba, objA)
	bx, by := a.bodyPosition(bb, objB)
	mx, my := (ax+bx)/2, (ay+by)/2

	if objA.Tier == game.MaxTier {
		a.Remove(objA.UID)
		a.Remove(objB.UID)
		a.score += game.Points(game.MaxTier)

		if err := a.out.SendDestroy(proto.DestroyMessage{
			Type:  proto.TypeDestroy,
			UIDA:  objA.UID,
			UIDB:  objB.UID,
			X:     mx,
			Y:     my,
			Score: a.score,
		}); err != nil {
			a.logger.Debug().Err(err).Msg("destroy send failed")
		}
		return
	}

	resultTier := objA.Tier + 1
	resultUID := game.MergeUID(a.nextMergeID)
	a.nextMergeID++

	a.Remove(objA.UID)
	a.Remove(objB.UID)

	body := a.engine.AddBody(mx, my, game.Radius(resultTier))
	a.engine.SetVelocity(body, 0, mergeImpulseY)
	result := &Object{
		UID:       resultUID,
		Tier:      resultTier,
		Owner:     -1,
		Body:      body,
		X:         mx,
		Y:         my,
		SpawnedAt: time.Now(),
		spawnSim:  a.simTime,
	}
	a.reg.Put(result)
	a.bodies[body] = result

	a.score += game.Points(resultTier)

	if err := a.out.SendMerge(proto.MergeMessage{
		Type:       proto.TypeMerge,
		UIDA:       objA.UID,
		UIDB:       objB.UID,
		ResultUID:  resultUID,
		ResultTier: resultTier,
		X:          mx,
		Y:          my,
		Score:      a.score,
	}); err != nil {
		a.logger.Debug().Err(err).Msg("merge send failed")
	}
}

func (a *Authority) bodyPosition(id physics.BodyID, obj *Object) (float64, float64) {
	if x, y, ok := a.engine.Position(id); ok {
		return x, y
	}
	return obj.X, obj.Y
}

// checkGameOver scans for a settled object resting above the danger
// line. The first one satisfying grace, settle, and height ends the game
// at the score of that instant.
func (a *Authority) checkGameOver() {
	for _, obj := range a.bodies {
		if a.simTime-obj.spawnSim < gameOverGrace {
			continue
		}
		if a.engine.Speed(obj.Body) > settleSpeed {
			continue
		}
		if obj.Y-game.Radius(obj.Tier) >= game.DangerLine {
			continue
		}

		a.over = true
		if err := a.out.SendGameOver(a.score); err != nil {
			a.logger.Debug().Err(err).Msg("gameOver send failed")
		}
		a.logger.Info().Int("score", a.score).Str("uid", obj.UID).Msg("overflow elimination")
		if a.OnGameOver != nil {
			a.OnGameOver(a.score)
		}
		return
	}
}

// broadcastWorld serializes every live object with a fresh sequence
// number so the guest can discard out-of-order packets. Empty worlds are
// not broadcast.
func (a *Authority) broadcastWorld() {
	if a.reg.Len() == 0 {
		return
	}

	bodies := make([]proto.Body, 0, a.reg.Len())
	a.reg.Each(func(obj *Object) {
		// A provisional object is not authoritative yet; it enters the
		// snapshot stream only once the relay has renamed it.
		if game.IsPredicted(obj.UID) {
			return
		}
		bodies = append(bodies, proto.Body{
			UID:   obj.UID,
			Tier:  obj.Tier,
			X:     round1(obj.X),
			Y:     round1(obj.Y),
			Angle: round2(obj.Angle),
		})
	})
	if len(bodies) == 0 {
		return
	}
	sort.Slice(bodies, func(i, j int) bool { return bodies[i].UID < bodies[j].UID })

	a.seq++
	if err := a.out.SendWorldState(bodies, a.score, a.seq); err != nil {
		a.logger.Debug().Err(err).Msg("worldState send failed")
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
