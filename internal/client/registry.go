// Package client implements the client half of the synchronization
// protocol: the object registry shared by both roles, the host
// simulation authority, drop prediction for the acting player, and
// snapshot interpolation for the observer. Rendering collaborators read
// the registry; they contain no sync logic of their own.
package client

import (
	"time"

	"batupuz/internal/physics"
)

// sample is one authoritative pose received from the host.
type sample struct {
	x, y, angle float64
}

// Object is one merge object, either simulated locally (host) or
// mirrored from snapshots (guest). The guest's copy is best-effort and
// may be silently corrected by any later snapshot.
type Object struct {
	UID   string
	Tier  int
	Owner int // owning-player slot for tinting, -1 for merge results
	Body  physics.BodyID

	X, Y, Angle float64

	SpawnedAt time.Time
	spawnSim  float64 // authority sim-clock spawn time, seconds

	// double-buffered interpolation targets (guest only)
	prev, curr sample
	hasSample  bool
	elapsedMs  float64
}

// Registry maps stable identifiers to live objects. It is not
// goroutine-safe; the owning session serializes access.
type Registry struct {
	objects map[string]*Object
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{objects: make(map[string]*Object)}
}

// Get returns the object for uid, nil when unknown. Identifiers are
// namespace-partitioned, so a lookup never aliases across origins.
func (r *Registry) Get(uid string) *Object {
	return r.objects[uid]
}

// Put registers an object under its UID.
func (r *Registry) Put(obj *Object) {
	r.objects[obj.UID] = obj
}

// Remove deletes an object, reporting whether it existed.
func (r *Registry) Remove(uid string) bool {
	if _, ok := r.objects[uid]; !ok {
		return false
	}
	delete(r.objects, uid)
	return true
}

// Rename moves an object to a new identifier in place, preserving its
// position so a confirmed prediction never jumps.
func (r *Registry) Rename(oldUID, newUID string) bool {
	obj, ok := r.objects[oldUID]
	if !ok {
		return false
	}
	delete(r.objects, oldUID)
	obj.UID = newUID
	r.objects[newUID] = obj
	return true
}

// Len reports the number of live objects.
func (r *Registry) Len() int { return len(r.objects) }

// Each visits every object. The visitor must not mutate the map.
func (r *Registry) Each(fn func(*Object)) {
	for _, obj := range r.objects {
		fn(obj)
	}
}

// Clear drops every object, used on restart.
func (r *Registry) Clear() {
	r.objects = make(map[string]*Object)
}
