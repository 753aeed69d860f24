package game

import "math/rand"

// Tier describes one merge-object rank. Merging two objects of the same
// rank produces one object of the next rank.
type Tier struct {
	Rank   int
	Name   string
	Radius float64
	Points int
}

var Tiers = [...]Tier{
	{Rank: 0, Name: "Quartz", Radius: 20, Points: 1},
	{Rank: 1, Name: "Amethyst", Radius: 30, Points: 3},
	{Rank: 2, Name: "Topaz", Radius: 42, Points: 6},
	{Rank: 3, Name: "Emerald", Radius: 55, Points: 10},
	{Rank: 4, Name: "Ruby", Radius: 70, Points: 15},
	{Rank: 5, Name: "Sapphire", Radius: 82, Points: 21},
	{Rank: 6, Name: "Diamond", Radius: 95, Points: 28},
	{Rank: 7, Name: "Star Gem", Radius: 108, Points: 36},
}

// MaxTier is the highest rank. Merging two MaxTier objects destroys both
// with no replacement.
const MaxTier = len(Tiers) - 1

// spawnableTiers are the ranks the preview queue may draw from.
var spawnableTiers = []int{0, 1, 2, 3}

const (
	Width      = 600.0
	Height     = 780.0
	DangerLine = 98.0 // top edge of the play area
	DropY      = DangerLine - 40
)

// ValidTier reports whether t is a known rank.
func ValidTier(t int) bool {
	return t >= 0 && t <= MaxTier
}

// Radius returns the collision radius for a rank, 0 for unknown ranks.
func Radius(tier int) float64 {
	if !ValidTier(tier) {
		return 0
	}
	return Tiers[tier].Radius
}

// Points returns the score awarded when a merge produces the given rank.
func Points(tier int) int {
	if !ValidTier(tier) {
		return 0
	}
	return Tiers[tier].Points
}

// ClampX keeps a drop position inside the playfield for the given rank.
// Idempotent for values already inside [radius, Width-radius].
func ClampX(tier int, x float64) float64 {
	r := Radius(tier)
	if x < r {
		return r
	}
	if x > Width-r {
		return Width - r
	}
	return x
}

// RandomSpawnTier draws a rank from the spawnable subset.
func RandomSpawnTier(rng *rand.Rand) int {
	if rng == nil {
		return spawnableTiers[rand.Intn(len(spawnableTiers))]
	}
	return spawnableTiers[rng.Intn(len(spawnableTiers))]
}

// RandomDropX picks a horizontal position for an auto-drop, kept a safe
// margin away from the walls so any rank fits.
func RandomDropX(rng *rand.Rand) float64 {
	const margin = 70
	span := int(Width) - 2*margin
	if rng == nil {
		return float64(margin + rand.Intn(span))
	}
	return float64(margin + rng.Intn(span))
}
