package client

import (
	"math"
	"time"

	"batupuz/internal/game"
	"batupuz/internal/proto"
)

// ReceiveSample shifts the current target into the previous slot and
// stores the new authoritative pose. The first sample seeds both slots
// so interpolation never animates from an arbitrary origin.
func (o *Object) ReceiveSample(x, y, angle float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) ||
		math.IsNaN(y) || math.IsInf(y, 0) ||
		math.IsNaN(angle) || math.IsInf(angle, 0) {
		return
	}
	if o.hasSample {
		o.prev = o.curr
	} else {
		o.prev = sample{x: x, y: y, angle: angle}
	}
	o.curr = sample{x: x, y: y, angle: angle}
	o.hasSample = true
	o.elapsedMs = 0
}

// interpolate advances the object toward its current target. Orientation
// takes the shortest angular path across the ±π boundary.
func (o *Object) interpolate(dtMs, intervalMs float64) {
	if !o.hasSample {
		return
	}
	o.elapsedMs += dtMs
	t := o.elapsedMs / intervalMs
	if t > 1 {
		t = 1
	}

	o.X = o.prev.x + (o.curr.x-o.prev.x)*t
	o.Y = o.prev.y + (o.curr.y-o.prev.y)*t

	da := o.curr.angle - o.prev.angle
	if da > math.Pi {
		da -= 2 * math.Pi
	}
	if da < -math.Pi {
		da += 2 * math.Pi
	}
	o.Angle = o.prev.angle + da*t
}

// removalGrace protects just-spawned objects from being deleted before
// their first snapshot arrives.
const removalGrace = 500 * time.Millisecond

// snapshotIntervalMs matches the host broadcast cadence.
const snapshotIntervalMs = 1000.0 / 30.0

// Mirror applies authoritative host state to the guest's registry. The
// host always wins: any local disagreement is overwritten, never merged.
type Mirror struct {
	reg     *Registry
	lastSeq uint64
	now     func() time.Time
	onScore func(int)
}

// NewMirror builds the guest-side reconciler over a registry. onScore is
// invoked whenever an authoritative message carries a score; it may be
// nil.
func NewMirror(reg *Registry, onScore func(int)) *Mirror {
	return &Mirror{reg: reg, now: time.Now, onScore: onScore}
}

// ApplyWorldState ingests one periodic snapshot. Snapshots at or below
// the last applied sequence number are discarded whole, score included.
// Returns false for discarded snapshots.
func (m *Mirror) ApplyWorldState(msg proto.WorldStateMessage) bool {
	if msg.Seq != 0 {
		if msg.Seq <= m.lastSeq {
			return false
		}
		m.lastSeq = msg.Seq
	}

	seen := make(map[string]struct{}, len(msg.Bodies))
	for _, b := range msg.Bodies {
		seen[b.UID] = struct{}{}
		if obj := m.reg.Get(b.UID); obj != nil {
			obj.ReceiveSample(b.X, b.Y, b.Angle)
			continue
		}
		// Present on the host but unknown here (missed drop event):
		// mirror it immediately, seeded at its authoritative pose.
		if !game.ValidTier(b.Tier) {
			continue
		}
		obj := &Object{
			UID:       b.UID,
			Tier:      b.Tier,
			Owner:     -1,
			X:         b.X,
			Y:         b.Y,
			Angle:     b.Angle,
			SpawnedAt: m.now(),
		}
		obj.ReceiveSample(b.X, b.Y, b.Angle)
		m.reg.Put(obj)
	}

	// Absence signals removal, but only after the grace window, and
	// never for locally predicted identifiers.
	now := m.now()
	var stale []string
	m.reg.Each(func(obj *Object) {
		if _, ok := seen[obj.UID]; ok {
			return
		}
		if game.IsPredicted(obj.UID) {
			return
		}
		if now.Sub(obj.SpawnedAt) < removalGrace {
			return
		}
		stale = append(stale, obj.UID)
	})
	for _, uid := range stale {
		m.reg.Remove(uid)
	}

	if m.onScore != nil {
		m.onScore(msg.Score)
	}
	return true
}

// ApplyMerge applies an edge-triggered merge event: the two consumed
// objects vanish and the result appears immediately, without waiting for
// the next snapshot.
func (m *Mirror) ApplyMerge(msg proto.MergeMessage) {
	m.reg.Remove(msg.UIDA)
	m.reg.Remove(msg.UIDB)

	obj := &Object{
		UID:       msg.ResultUID,
		Tier:      msg.ResultTier,
		Owner:     -1,
		X:         msg.X,
		Y:         msg.Y,
		SpawnedAt: m.now(),
	}
	obj.ReceiveSample(msg.X, msg.Y, 0)
	m.reg.Put(obj)

	if m.onScore != nil {
		m.onScore(msg.Score)
	}
}

// ApplyDestroy applies a max-rank annihilation: both objects vanish with
// no replacement.
func (m *Mirror) ApplyDestroy(msg proto.DestroyMessage) {
	m.reg.Remove(msg.UIDA)
	m.reg.Remove(msg.UIDB)

	if m.onScore != nil {
		m.onScore(msg.Score)
	}
}

// Interpolate advances every mirrored object by dtMs milliseconds of
// render time.
func (m *Mirror) Interpolate(dtMs float64) {
	m.reg.Each(func(obj *Object) {
		obj.interpolate(dtMs, snapshotIntervalMs)
	})
}

// Reset clears sequence tracking, used on restart.
func (m *Mirror) Reset() {
	m.lastSeq = 0
}
