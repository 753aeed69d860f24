package game

import (
	"math/rand"
	"testing"
)

func TestClampXInsideRangeIsIdempotent(t *testing.T) {
	for tier := 0; tier <= MaxTier; tier++ {
		r := Radius(tier)
		for _, x := range []float64{r, r + 1, Width / 2, Width - r - 1, Width - r} {
			once := ClampX(tier, x)
			if once != x {
				t.Fatalf("tier %d: ClampX(%v) = %v, want unchanged", tier, x, once)
			}
			if twice := ClampX(tier, once); twice != once {
				t.Fatalf("tier %d: ClampX not idempotent at %v", tier, x)
			}
		}
	}
}

func TestClampXBounds(t *testing.T) {
	if got := ClampX(0, -50); got != 20 {
		t.Fatalf("ClampX(0, -50) = %v, want 20", got)
	}
	if got := ClampX(0, Width+50); got != Width-20 {
		t.Fatalf("ClampX(0, %v) = %v, want %v", Width+50, got, Width-20)
	}
	if got := ClampX(MaxTier, 0); got != 108 {
		t.Fatalf("ClampX(max, 0) = %v, want 108", got)
	}
}

func TestPointsAndRadiusTables(t *testing.T) {
	wantPoints := []int{1, 3, 6, 10, 15, 21, 28, 36}
	wantRadius := []float64{20, 30, 42, 55, 70, 82, 95, 108}
	for tier := 0; tier <= MaxTier; tier++ {
		if got := Points(tier); got != wantPoints[tier] {
			t.Errorf("Points(%d) = %d, want %d", tier, got, wantPoints[tier])
		}
		if got := Radius(tier); got != wantRadius[tier] {
			t.Errorf("Radius(%d) = %v, want %v", tier, got, wantRadius[tier])
		}
	}
	if Points(-1) != 0 || Points(MaxTier+1) != 0 {
		t.Error("out-of-range tiers should score zero")
	}
}

func TestRandomSpawnTierStaysSpawnable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		tier := RandomSpawnTier(rng)
		if tier < 0 || tier > 3 {
			t.Fatalf("spawned tier %d outside spawnable subset", tier)
		}
	}
}

func TestRandomDropXStaysInsidePlayfield(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		x := RandomDropX(rng)
		if x < 70 || x > Width-70 {
			t.Fatalf("auto-drop x %v outside margins", x)
		}
	}
}

func TestUIDNamespaces(t *testing.T) {
	if got := DropUID(0); got != "f_0" {
		t.Fatalf("DropUID(0) = %q", got)
	}
	if got := MergeUID(7); got != "m_7" {
		t.Fatalf("MergeUID(7) = %q", got)
	}
	if got := PredictedUID(123); got != "_p_123" {
		t.Fatalf("PredictedUID(123) = %q", got)
	}
	if !IsPredicted("_p_99") {
		t.Error("_p_ uid should be predicted")
	}
	if IsPredicted("f_1") || IsPredicted("m_1") {
		t.Error("host-issued uids must not look predicted")
	}
}
