package client

import (
	"testing"
	"time"

	"batupuz/internal/game"
)

func newTestPredictor() (*Predictor, *Registry, *time.Time) {
	reg := NewRegistry()
	now := time.Unix(9000, 0)
	spawn := func(owner, tier int, x float64, uid string) *Object {
		obj := &Object{UID: uid, Tier: tier, Owner: owner, X: x, Y: game.DropY, SpawnedAt: now}
		reg.Put(obj)
		return obj
	}
	p := NewPredictor(reg, spawn, func(uid string) { reg.Remove(uid) })
	p.now = func() time.Time { return now }
	return p, reg, &now
}

func TestTryDropLocksFurtherInput(t *testing.T) {
	p, reg, _ := newTestPredictor()

	if !p.TryDrop(0, 2, 300) {
		t.Fatal("first drop rejected")
	}
	if !p.Pending() {
		t.Fatal("prediction not pending after drop")
	}
	if p.TryDrop(0, 2, 400) {
		t.Fatal("second drop accepted while one is in flight")
	}

	if reg.Len() != 1 {
		t.Fatalf("registry holds %d objects, want 1 provisional", reg.Len())
	}
	reg.Each(func(obj *Object) {
		if !game.IsPredicted(obj.UID) {
			t.Fatalf("provisional object carries uid %q outside the predicted namespace", obj.UID)
		}
	})
}

func TestTryDropClampsPosition(t *testing.T) {
	p, reg, _ := newTestPredictor()

	p.TryDrop(0, 0, -100)
	reg.Each(func(obj *Object) {
		if obj.X != game.Radius(0) {
			t.Fatalf("provisional x = %v, want clamped to %v", obj.X, game.Radius(0))
		}
	})
}

func TestConfirmRenamesWithoutPositionJump(t *testing.T) {
	p, reg, _ := newTestPredictor()

	p.TryDrop(0, 2, 300)
	var provisional *Object
	reg.Each(func(obj *Object) { provisional = obj })
	provisional.X, provisional.Y = 305, 150 // already falling locally

	p.Confirm(0, 2, 300, "f_7")

	if p.Pending() {
		t.Fatal("confirmation must clear the pending slot")
	}
	obj := reg.Get("f_7")
	if obj == nil {
		t.Fatal("confirmed object missing under host identifier")
	}
	if obj != provisional || obj.X != 305 || obj.Y != 150 {
		t.Fatalf("confirmation moved the object: %+v", obj)
	}
	if reg.Len() != 1 {
		t.Fatalf("registry holds %d objects, want 1", reg.Len())
	}
}

func TestConfirmRespawnsWhenProvisionalGone(t *testing.T) {
	p, reg, _ := newTestPredictor()

	p.TryDrop(0, 2, 300)
	reg.Clear() // a cleanup raced the confirmation

	p.Confirm(0, 2, 300, "f_7")

	if reg.Get("f_7") == nil {
		t.Fatal("confirmation must respawn from the authoritative event")
	}
	if p.Pending() {
		t.Fatal("confirmation must clear the pending slot")
	}
}

func TestConfirmWithoutPendingIsNoop(t *testing.T) {
	p, reg, _ := newTestPredictor()

	p.Confirm(0, 2, 300, "f_7")
	if reg.Len() != 0 {
		t.Fatal("spurious confirmation must not spawn")
	}
}

func TestCancelRemovesProvisional(t *testing.T) {
	p, reg, _ := newTestPredictor()

	p.TryDrop(0, 2, 300)
	p.Cancel()

	if reg.Len() != 0 {
		t.Fatal("cancel must destroy the provisional object")
	}
	if p.Pending() {
		t.Fatal("cancel must unlock input")
	}
	if !p.TryDrop(0, 2, 300) {
		t.Fatal("drop after cancel rejected")
	}
}

func TestTimeoutExpiresLostPrediction(t *testing.T) {
	p, reg, now := newTestPredictor()

	p.TryDrop(0, 2, 300)

	*now = now.Add(predictionTimeout - time.Millisecond)
	p.Step()
	if !p.Pending() {
		t.Fatal("prediction expired before its deadline")
	}

	*now = now.Add(2 * time.Millisecond)
	p.Step()
	if p.Pending() {
		t.Fatal("prediction must expire at its deadline")
	}
	if reg.Len() != 0 {
		t.Fatal("expired provisional object must be destroyed")
	}
}
