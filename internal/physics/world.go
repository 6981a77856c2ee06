// Package physics is a small rigid-body engine: integration, a spatial-hash
// broad phase, shape-pair narrow phase, impulse resolution, ray casts and a
// collision-start event queue.
package physics

import (
	"fmt"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Spatial grid cell size - bodies within same or neighboring cells are checked.
// Bodies with a bounding radius above CellSize/2 are tested against everything.
const CellSize = 5.0

// Cell key for spatial hashing
type CellKey struct {
	X, Y, Z int
}

func posToCell(pos mgl32.Vec3) CellKey {
	return CellKey{
		X: floorDiv(pos.X(), CellSize),
		Y: floorDiv(pos.Y(), CellSize),
		Z: floorDiv(pos.Z(), CellSize),
	}
}

func floorDiv(v, size float32) int {
	q := v / size
	i := int(q)
	if q < 0 && float32(i) != q {
		i--
	}
	return i
}

// CollisionStart is emitted the first step two colliders touch. Velocities
// are sampled at contact time, before the impulse is applied.
type CollisionStart struct {
	A, B      ColliderHandle
	Point     mgl32.Vec3
	VelocityA mgl32.Vec3
	VelocityB mgl32.Vec3
}

// pairKey orders collider handles so (a,b) and (b,a) collapse.
type pairKey struct {
	lo, hi ColliderHandle
}

func makePair(a, b ColliderHandle) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// restingBounceThreshold suppresses restitution for slow approach speeds.
const restingBounceThreshold = 1.0

// Contact resolution tuning.
const (
	penetrationSlop    = 0.005
	correctionFraction = 0.8
)

type World struct {
	Gravity mgl32.Vec3

	bodies     map[BodyHandle]*Body
	byCollider map[ColliderHandle]*Body
	order      []*Body // creation order, keeps stepping deterministic
	nextBody   uint32
	nextColl   uint32

	grid      map[CellKey][]*Body
	oversized []*Body

	// Collision tracking for start events
	activeCollisions  map[pairKey]bool // pairs touching last step
	currentCollisions map[pairKey]bool // pairs touching this step
	started           []CollisionStart

	lastLogTime time.Time
}

// NewWorld creates an empty world with the given gravity.
func NewWorld(gravity mgl32.Vec3) *World {
	return &World{
		Gravity:           gravity,
		bodies:            make(map[BodyHandle]*Body),
		byCollider:        make(map[ColliderHandle]*Body),
		grid:              make(map[CellKey][]*Body),
		activeCollisions:  make(map[pairKey]bool),
		currentCollisions: make(map[pairKey]bool),
	}
}

// CreateBody adds a body with one attached collider.
func (w *World) CreateBody(desc BodyDesc, shape Shape) (*Body, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	switch desc.Kind {
	case Static, Kinematic:
	case Dynamic:
		if shape.Kind == Heightfield {
			return nil, fmt.Errorf("dynamic heightfield: %w", ErrInvalidBody)
		}
	default:
		return nil, fmt.Errorf("%v: %w", desc.Kind, ErrInvalidBody)
	}

	w.nextBody++
	w.nextColl++
	b := newBody(BodyHandle(w.nextBody), ColliderHandle(w.nextColl), desc, shape)
	w.bodies[b.handle] = b
	w.byCollider[b.collider] = b
	w.order = append(w.order, b)
	return b, nil
}

// RemoveBody detaches a body and its collider. Removing an unknown handle is a no-op.
func (w *World) RemoveBody(h BodyHandle) (*Body, bool) {
	b, ok := w.bodies[h]
	if !ok {
		return nil, false
	}
	delete(w.bodies, h)
	delete(w.byCollider, b.collider)
	for i, other := range w.order {
		if other == b {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for pair := range w.activeCollisions {
		if pair.lo == b.collider || pair.hi == b.collider {
			delete(w.activeCollisions, pair)
		}
	}
	kept := w.started[:0]
	for _, ev := range w.started {
		if ev.A != b.collider && ev.B != b.collider {
			kept = append(kept, ev)
		}
	}
	w.started = kept
	return b, true
}

// Body returns the body for h, or nil.
func (w *World) Body(h BodyHandle) *Body {
	return w.bodies[h]
}

// BodyForCollider returns the body owning collider c, or nil.
func (w *World) BodyForCollider(c ColliderHandle) *Body {
	return w.byCollider[c]
}

// BodyCount returns the number of live bodies.
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// DrainCollisionEvents returns collision-start events accumulated since the
// last drain, in discovery order, and clears the queue.
func (w *World) DrainCollisionEvents() []CollisionStart {
	if len(w.started) == 0 {
		return nil
	}
	out := w.started
	w.started = nil
	return out
}

// Step advances the simulation by dt seconds.
func (w *World) Step(dt float32) {
	if dt <= 0 {
		return
	}

	for k := range w.currentCollisions {
		delete(w.currentCollisions, k)
	}

	// 1. Integrate velocities and positions
	for _, b := range w.order {
		switch b.kind {
		case Dynamic:
			if b.sleeping {
				continue
			}
			b.velocity = b.velocity.Add(w.Gravity.Mul(b.gravityScale * dt))
			b.velocity = b.velocity.Mul(1 / (1 + b.linearDamping*dt))
			b.position = b.position.Add(b.velocity.Mul(dt))
			if b.lockRotations {
				b.angularVelocity = mgl32.Vec3{}
			} else {
				b.rotation = integrateRotation(b.rotation, b.angularVelocity, dt)
				b.angularVelocity = b.angularVelocity.Mul(1 / (1 + b.angularDamping*dt))
			}
		case Kinematic:
			b.position = b.position.Add(b.velocity.Mul(dt))
			b.rotation = integrateRotation(b.rotation, b.angularVelocity, dt)
		case Static:
		}
	}

	// 2. Broad phase over moving bodies
	w.rebuildGrid()
	for _, b := range w.order {
		if b.kind == Static {
			continue
		}
		for _, other := range w.neighbors(b) {
			if other.handle <= b.handle {
				continue
			}
			w.testPair(b, other)
		}
	}
	for _, big := range w.oversized {
		for _, b := range w.order {
			if b.kind == Static || b == big {
				continue
			}
			// Pairs of two oversized bodies are visited once.
			if w.isOversized(b) && b.handle < big.handle {
				continue
			}
			w.testPair(big, b)
		}
	}

	// 3. Dynamic vs static
	for _, b := range w.order {
		if b.kind != Dynamic || b.sleeping {
			continue
		}
		for _, s := range w.order {
			if s.kind == Static {
				w.testPair(b, s)
			}
		}
	}

	// 4. Rest detection
	for _, b := range w.order {
		b.trySleep(dt)
	}

	// 5. Collision-start events
	for pair := range w.activeCollisions {
		if !w.currentCollisions[pair] {
			delete(w.activeCollisions, pair)
		}
	}
	for pair := range w.currentCollisions {
		w.activeCollisions[pair] = true
	}
}

func (w *World) isOversized(b *Body) bool {
	return b.shape.BoundingRadius() > CellSize/2
}

// rebuildGrid clears and repopulates the spatial hash grid
func (w *World) rebuildGrid() {
	for k := range w.grid {
		delete(w.grid, k)
	}
	w.oversized = w.oversized[:0]

	for _, b := range w.order {
		if b.kind == Static {
			continue
		}
		if w.isOversized(b) {
			w.oversized = append(w.oversized, b)
			continue
		}
		cell := posToCell(b.position)
		w.grid[cell] = append(w.grid[cell], b)
	}
}

// neighbors returns bodies in the same cell and 26 neighboring cells
func (w *World) neighbors(b *Body) []*Body {
	if w.isOversized(b) {
		return nil
	}
	cell := posToCell(b.position)
	var out []*Body
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				key := CellKey{cell.X + dx, cell.Y + dy, cell.Z + dz}
				out = append(out, w.grid[key]...)
			}
		}
	}
	return out
}

func inert(b *Body) bool {
	return b.kind != Dynamic || b.sleeping
}

func (w *World) testPair(a, b *Body) {
	if inert(a) && inert(b) {
		return
	}
	if !shapeAABB(a.shape, a.position, a.rotation).Intersects(shapeAABB(b.shape, b.position, b.rotation)) {
		return
	}
	c, ok := collide(a, b)
	if !ok {
		return
	}
	w.recordCollision(a, b, c)
	w.resolveContact(a, b, c)
}

// recordCollision marks a pair as touching this step and wakes sleepers on
// significant relative velocity.
func (w *World) recordCollision(a, b *Body, c contact) {
	pair := makePair(a.collider, b.collider)
	if !w.currentCollisions[pair] {
		w.currentCollisions[pair] = true
		if !w.activeCollisions[pair] {
			w.started = append(w.started, CollisionStart{
				A:         a.collider,
				B:         b.collider,
				Point:     c.point,
				VelocityA: a.velocity,
				VelocityB: b.velocity,
			})
		}
	}

	// Micro-collisions must not wake settled stacks.
	relSpeed := a.velocity.Sub(b.velocity).Len()
	if relSpeed > SleepVelocityThreshold*2 {
		if a.sleeping {
			a.WakeUp()
		}
		if b.sleeping {
			b.WakeUp()
		}
	}
}

func effectiveInvMass(b *Body) float32 {
	if inert(b) {
		return 0
	}
	return b.invMass
}

// resolveContact separates the pair and applies normal and friction impulses.
// The contact normal points from b towards a.
func (w *World) resolveContact(a, b *Body, c contact) {
	invA, invB := effectiveInvMass(a), effectiveInvMass(b)
	total := invA + invB
	if total == 0 {
		return
	}
	n := c.normal

	if c.depth > penetrationSlop {
		corr := (c.depth - penetrationSlop) * correctionFraction / total
		a.position = a.position.Add(n.Mul(corr * invA))
		b.position = b.position.Sub(n.Mul(corr * invB))
	}

	rv := a.velocity.Sub(b.velocity)
	vn := rv.Dot(n)
	if vn >= 0 {
		return
	}

	e := (a.restitution + b.restitution) / 2
	if -vn < restingBounceThreshold {
		e = 0
	}
	j := -(1 + e) * vn / total
	a.velocity = a.velocity.Add(n.Mul(j * invA))
	b.velocity = b.velocity.Sub(n.Mul(j * invB))

	// Coulomb friction along the tangential slip
	rv = a.velocity.Sub(b.velocity)
	vt := rv.Sub(n.Mul(rv.Dot(n)))
	if slip := vt.Len(); slip > epsilon {
		mu := sqrtf(a.friction * b.friction)
		jt := slip / total
		if limit := mu * j; jt > limit {
			jt = limit
		}
		t := vt.Mul(1 / slip)
		a.velocity = a.velocity.Sub(t.Mul(jt * invA))
		b.velocity = b.velocity.Add(t.Mul(jt * invB))
	}

	rollBall(a, n)
	rollBall(b, n.Mul(-1))
}

// rollBall matches a ball's spin to its slide over the contact surface.
func rollBall(b *Body, up mgl32.Vec3) {
	if b.shape.Kind != Ball || inert(b) || b.lockRotations {
		return
	}
	tangential := b.velocity.Sub(up.Mul(b.velocity.Dot(up)))
	b.angularVelocity = up.Cross(tangential).Mul(1 / b.shape.Radius)
}

// ContactCount returns the number of collider pairs touching after the last step.
func (w *World) ContactCount() int {
	return len(w.activeCollisions)
}

// LogContacts prints body and contact counts, at most once per second.
func (w *World) LogContacts() {
	if time.Since(w.lastLogTime) < time.Second {
		return
	}
	w.lastLogTime = time.Now()
	log.Printf("Physics: %d bodies, %d touching pairs", len(w.order), w.ContactCount())
}
