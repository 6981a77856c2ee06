// Package registry maps simulation entities to their physics body, collider
// and bus slot, and maps colliders back to entities.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"floatsim/internal/engine"
	"floatsim/internal/physics"
)

var (
	ErrDuplicateEntity = errors.New("registry: entity already registered")
	ErrInvalidEntity   = errors.New("registry: invalid entity id")
	ErrColliderTaken   = errors.New("registry: collider already owned by another entity")
)

// Entry is what the stepper needs to publish one entity.
type Entry struct {
	Body     *physics.Body
	Collider physics.ColliderHandle
	Slot     int
}

// Registry keeps both directions in one structure so they cannot drift apart.
// It is owned by the physics goroutine and is not safe for concurrent use.
type Registry struct {
	world      *physics.World
	entries    map[engine.EntityID]Entry
	byCollider map[physics.ColliderHandle]engine.EntityID
}

// New creates an empty registry over world. Unregister removes bodies from world.
func New(world *physics.World) *Registry {
	return &Registry{
		world:      world,
		entries:    make(map[engine.EntityID]Entry),
		byCollider: make(map[physics.ColliderHandle]engine.EntityID),
	}
}

// Register records id. The entry's collider defaults to the body's collider.
func (r *Registry) Register(id engine.EntityID, e Entry) error {
	if id == engine.NoEntity {
		return ErrInvalidEntity
	}
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("register entity %d: %w", id, ErrDuplicateEntity)
	}
	if e.Collider == 0 && e.Body != nil {
		e.Collider = e.Body.Collider()
	}
	if owner, ok := r.byCollider[e.Collider]; ok && e.Collider != 0 {
		return fmt.Errorf("register entity %d: collider %d owned by %d: %w", id, e.Collider, owner, ErrColliderTaken)
	}
	r.entries[id] = e
	if e.Collider != 0 {
		r.byCollider[e.Collider] = id
	}
	return nil
}

// Unregister drops id from both maps and removes its body from the world.
// Unknown ids are a silent no-op.
func (r *Registry) Unregister(id engine.EntityID) (*physics.Body, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	delete(r.byCollider, e.Collider)
	if e.Body != nil && r.world != nil {
		r.world.RemoveBody(e.Body.Handle())
	}
	return e.Body, true
}

// Lookup returns the entry for id.
func (r *Registry) Lookup(id engine.EntityID) (Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

// EntityForCollider resolves a collider to its entity.
func (r *Registry) EntityForCollider(c physics.ColliderHandle) (engine.EntityID, bool) {
	id, ok := r.byCollider[c]
	return id, ok
}

// ForEach visits entries in ascending id order.
func (r *Registry) ForEach(fn func(engine.EntityID, Entry)) {
	ids := make([]engine.EntityID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(id, r.entries[id])
	}
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Clear forgets every entry without touching the world.
func (r *Registry) Clear() {
	for id := range r.entries {
		delete(r.entries, id)
	}
	for c := range r.byCollider {
		delete(r.byCollider, c)
	}
}
