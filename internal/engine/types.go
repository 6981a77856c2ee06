package engine

import (
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

// EntityID identifies a simulated entity for its whole lifetime.
// IDs are assigned monotonically and never reused within a session.
type EntityID uint32

// NoEntity stands for "no tracked entity" (terrain, static ground, ...).
const NoEntity EntityID = 0

// IDAllocator hands out monotonically increasing entity IDs.
type IDAllocator struct {
	last atomic.Uint32
}

// Next returns a fresh ID, starting at 1.
func (a *IDAllocator) Next() EntityID {
	return EntityID(a.last.Add(1))
}

// Last returns the most recently allocated ID (0 if none).
func (a *IDAllocator) Last() EntityID {
	return EntityID(a.last.Load())
}

// Transform is the pose that travels through the transform bus.
// Scale is render-side only and deliberately absent.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

// NewTransform builds a transform with identity rotation.
func NewTransform(x, y, z float32) Transform {
	return Transform{
		Position: mgl32.Vec3{x, y, z},
		Rotation: mgl32.QuatIdent(),
	}
}

// ApproxEqual compares position and rotation within eps.
func (t Transform) ApproxEqual(o Transform, eps float32) bool {
	return t.Position.ApproxEqualThreshold(o.Position, eps) &&
		mgl32.FloatEqualThreshold(t.Rotation.W, o.Rotation.W, eps) &&
		t.Rotation.V.ApproxEqualThreshold(o.Rotation.V, eps)
}

// Input is one sample of the player's movement intent.
type Input struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Jump     bool
	Sprint   bool

	// Turn is an optional analog turn axis in [-1, 1], positive turns left.
	Turn float32
}

// InputBox hands the latest Input from the orchestrator goroutine to the physics goroutine.
type InputBox struct {
	p atomic.Pointer[Input]
}

// Set publishes a new input sample.
func (b *InputBox) Set(in Input) {
	b.p.Store(&in)
}

// Load returns the most recent sample, or the zero Input if none was set.
func (b *InputBox) Load() Input {
	if in := b.p.Load(); in != nil {
		return *in
	}
	return Input{}
}
