// Package physics defines the contract the host authority drives. The
// engine itself is an external collaborator: the authority only creates
// and removes bodies, queries their state, and reacts to collision-start
// notifications.
package physics

// BodyID is an engine-issued opaque handle for one body.
type BodyID uint64

// Engine is the simulation substrate. Implementations are not expected
// to be goroutine-safe; the authority drives the engine from its own
// step loop.
type Engine interface {
	// Step advances the simulation by dt seconds.
	Step(dt float64)

	// AddBody creates a circular body and returns its handle.
	AddBody(x, y, radius float64) BodyID

	// RemoveBody destroys a body. Unknown handles are ignored.
	RemoveBody(id BodyID)

	// Position reports a body's center, ok=false for unknown handles.
	Position(id BodyID) (x, y float64, ok bool)

	// Angle reports a body's orientation in radians.
	Angle(id BodyID) float64

	// Speed reports the magnitude of a body's velocity.
	Speed(id BodyID) float64

	// SetVelocity overrides a body's velocity, used to give merge
	// results their small upward impulse.
	SetVelocity(id BodyID, vx, vy float64)

	// OnCollisionStart registers the callback invoked synchronously
	// within Step for every new contact pair.
	OnCollisionStart(fn func(a, b BodyID))
}
