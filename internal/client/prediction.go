package client

import (
	"time"

	"batupuz/internal/game"
)

// predictionTimeout bounds how long a provisional object may wait for
// the server's echoed drop before the input slot unlocks again.
const predictionTimeout = 600 * time.Millisecond

// Predictor speculatively spawns the acting player's drop before the
// relay confirms it, then converges the provisional object onto the
// canonical one. Only one provisional object may exist at a time.
type Predictor struct {
	reg      *Registry
	spawn    func(owner, tier int, x float64, uid string) *Object
	remove   func(uid string)
	pending  string
	deadline time.Time
	now      func() time.Time
}

// NewPredictor builds a predictor over the registry. spawn and remove
// create and destroy a local object the way the current role does (with
// or without a physics body).
func NewPredictor(reg *Registry, spawn func(owner, tier int, x float64, uid string) *Object, remove func(uid string)) *Predictor {
	return &Predictor{reg: reg, spawn: spawn, remove: remove, now: time.Now}
}

// Pending reports whether a provisional object is awaiting confirmation.
// Further drop input is ignored while it is.
func (p *Predictor) Pending() bool { return p.pending != "" }

// TryDrop creates the provisional object at the clamped drop position and
// arms the confirmation timeout. Returns false while a prediction is
// already pending.
func (p *Predictor) TryDrop(owner, tier int, x float64) bool {
	if p.Pending() {
		return false
	}
	now := p.now()
	uid := game.PredictedUID(now.UnixMilli())
	p.spawn(owner, tier, game.ClampX(tier, x), uid)
	p.pending = uid
	p.deadline = now.Add(predictionTimeout)
	return true
}

// Confirm resolves the pending prediction against the server's echoed
// drop. The provisional object is renamed to the host-issued identifier
// with no position jump; if an intervening cleanup already removed it, a
// fresh object is spawned from the authoritative event instead.
func (p *Predictor) Confirm(owner, tier int, x float64, uid string) {
	if !p.Pending() {
		return
	}
	if !p.reg.Rename(p.pending, uid) {
		p.spawn(owner, tier, x, uid)
	}
	p.pending = ""
}

// Cancel destroys the provisional object, used when an auto-drop for the
// local player preempts the manual one.
func (p *Predictor) Cancel() {
	if !p.Pending() {
		return
	}
	p.remove(p.pending)
	p.pending = ""
}

// Step expires a prediction whose confirmation never arrived, destroying
// the provisional object and unlocking input so the UI never hangs on a
// lost reply.
func (p *Predictor) Step() {
	if p.Pending() && !p.now().Before(p.deadline) {
		p.Cancel()
	}
}
