package client

import (
	"math"
	"testing"
	"time"

	"batupuz/internal/proto"
)

func TestInterpolationIsLinearBetweenSamples(t *testing.T) {
	obj := &Object{UID: "f_0"}
	obj.ReceiveSample(0, 0, 0)
	obj.ReceiveSample(10, 20, 1)

	obj.interpolate(snapshotIntervalMs/2, snapshotIntervalMs)
	if obj.X != 5 || obj.Y != 10 {
		t.Fatalf("halfway pose (%v, %v), want (5, 10)", obj.X, obj.Y)
	}
	if math.Abs(obj.Angle-0.5) > 1e-9 {
		t.Fatalf("halfway angle %v, want 0.5", obj.Angle)
	}

	obj.interpolate(10*snapshotIntervalMs, snapshotIntervalMs)
	if obj.X != 10 || obj.Y != 20 || obj.Angle != 1 {
		t.Fatalf("overshoot must clamp at the target, got (%v, %v, %v)", obj.X, obj.Y, obj.Angle)
	}
}

func TestInterpolationTakesShortestAngularPath(t *testing.T) {
	obj := &Object{UID: "f_0"}
	obj.ReceiveSample(0, 0, 3.0)
	obj.ReceiveSample(0, 0, -3.0)

	obj.interpolate(snapshotIntervalMs/2, snapshotIntervalMs)

	// Crossing +-pi the short way passes through pi, not zero.
	if math.Abs(math.Abs(obj.Angle)-math.Pi) > 0.2 {
		t.Fatalf("angle %v took the long way around", obj.Angle)
	}
}

func TestFirstSampleSeedsBothSlots(t *testing.T) {
	obj := &Object{UID: "f_0"}
	obj.ReceiveSample(50, 60, 0.5)
	obj.interpolate(snapshotIntervalMs/2, snapshotIntervalMs)

	if obj.X != 50 || obj.Y != 60 || obj.Angle != 0.5 {
		t.Fatalf("first sample must not animate from the origin: (%v, %v, %v)", obj.X, obj.Y, obj.Angle)
	}
}

func TestNonFiniteSamplesIgnored(t *testing.T) {
	obj := &Object{UID: "f_0"}
	obj.ReceiveSample(10, 10, 0)
	obj.ReceiveSample(math.NaN(), 20, 0)
	obj.ReceiveSample(math.Inf(1), 20, 0)

	if obj.curr.x != 10 {
		t.Fatalf("non-finite sample accepted: %+v", obj.curr)
	}
}

func newTestMirror(score *int) (*Mirror, *Registry, *time.Time) {
	reg := NewRegistry()
	now := time.Unix(5000, 0)
	m := NewMirror(reg, func(s int) {
		if score != nil {
			*score = s
		}
	})
	m.now = func() time.Time { return now }
	return m, reg, &now
}

func TestStaleSnapshotDiscardedWhole(t *testing.T) {
	var score int
	m, reg, _ := newTestMirror(&score)

	if !m.ApplyWorldState(proto.WorldStateMessage{Seq: 2, Score: 5,
		Bodies: []proto.Body{{UID: "f_0", Tier: 1, X: 100, Y: 200}}}) {
		t.Fatal("fresh snapshot rejected")
	}
	if m.ApplyWorldState(proto.WorldStateMessage{Seq: 1, Score: 9,
		Bodies: []proto.Body{{UID: "f_1", Tier: 1, X: 1, Y: 1}}}) {
		t.Fatal("stale snapshot accepted")
	}

	if score != 5 {
		t.Fatalf("stale snapshot leaked its score: %d", score)
	}
	if reg.Get("f_1") != nil {
		t.Fatal("stale snapshot leaked an object")
	}
}

func TestUnknownSnapshotObjectIsMirroredAtPose(t *testing.T) {
	m, reg, _ := newTestMirror(nil)

	m.ApplyWorldState(proto.WorldStateMessage{Seq: 1,
		Bodies: []proto.Body{{UID: "f_4", Tier: 3, X: 250, Y: 310, Angle: 0.7}}})

	obj := reg.Get("f_4")
	if obj == nil {
		t.Fatal("missed object not spawned from snapshot")
	}
	if obj.X != 250 || obj.Y != 310 || obj.Angle != 0.7 {
		t.Fatalf("mirrored object not seeded at its pose: %+v", obj)
	}

	m.Interpolate(snapshotIntervalMs)
	if obj.X != 250 || obj.Y != 310 {
		t.Fatal("freshly mirrored object must not drift before its next sample")
	}
}

func TestAbsenceRemovalRespectsGraceAndPrediction(t *testing.T) {
	m, reg, now := newTestMirror(nil)

	reg.Put(&Object{UID: "f_old", Tier: 1, SpawnedAt: now.Add(-time.Second)})
	reg.Put(&Object{UID: "f_new", Tier: 1, SpawnedAt: *now})
	reg.Put(&Object{UID: "_p_9", Tier: 1, SpawnedAt: now.Add(-time.Minute)})

	m.ApplyWorldState(proto.WorldStateMessage{Seq: 1,
		Bodies: []proto.Body{{UID: "f_other", Tier: 1, X: 1, Y: 1}}})

	if reg.Get("f_old") != nil {
		t.Fatal("absent object past grace must be removed")
	}
	if reg.Get("f_new") == nil {
		t.Fatal("absent object inside grace must survive")
	}
	if reg.Get("_p_9") == nil {
		t.Fatal("locally predicted object must never be snapshot-removed")
	}
}

func TestMergeEventAppliesImmediately(t *testing.T) {
	var score int
	m, reg, _ := newTestMirror(&score)

	reg.Put(&Object{UID: "f_0", Tier: 2})
	reg.Put(&Object{UID: "f_1", Tier: 2})

	m.ApplyMerge(proto.MergeMessage{
		UIDA: "f_0", UIDB: "f_1", ResultUID: "m_0", ResultTier: 3, X: 120, Y: 340, Score: 10,
	})

	if reg.Get("f_0") != nil || reg.Get("f_1") != nil {
		t.Fatal("consumed objects must vanish immediately")
	}
	result := reg.Get("m_0")
	if result == nil || result.Tier != 3 || result.X != 120 || result.Y != 340 {
		t.Fatalf("merge result wrong: %+v", result)
	}
	if score != 10 {
		t.Fatalf("score = %d, want 10", score)
	}
}

func TestDestroyEventRemovesBothWithoutReplacement(t *testing.T) {
	var score int
	m, reg, _ := newTestMirror(&score)

	reg.Put(&Object{UID: "f_0", Tier: 7})
	reg.Put(&Object{UID: "f_1", Tier: 7})

	m.ApplyDestroy(proto.DestroyMessage{UIDA: "f_0", UIDB: "f_1", Score: 36})

	if reg.Len() != 0 {
		t.Fatalf("registry holds %d objects after destroy, want 0", reg.Len())
	}
	if score != 36 {
		t.Fatalf("score = %d, want 36", score)
	}
}

func TestResetAcceptsRestartedSequenceNumbers(t *testing.T) {
	m, _, _ := newTestMirror(nil)

	m.ApplyWorldState(proto.WorldStateMessage{Seq: 40,
		Bodies: []proto.Body{{UID: "f_0", Tier: 1}}})
	m.Reset()

	if !m.ApplyWorldState(proto.WorldStateMessage{Seq: 1,
		Bodies: []proto.Body{{UID: "f_1", Tier: 1}}}) {
		t.Fatal("post-restart snapshot rejected as stale")
	}
}
