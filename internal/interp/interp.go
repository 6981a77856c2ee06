// Package interp smooths bus transforms for a render loop that runs on its
// own schedule, blending between the last two physics poses.
package interp

import (
	"time"

	"floatsim/internal/bus"
	"floatsim/internal/engine"

	"github.com/go-gl/mathgl/mgl32"
)

// Sink receives the blended pose of each live entity once per render frame.
type Sink interface {
	Apply(id engine.EntityID, pos mgl32.Vec3, rot mgl32.Quat)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(id engine.EntityID, pos mgl32.Vec3, rot mgl32.Quat)

func (f SinkFunc) Apply(id engine.EntityID, pos mgl32.Vec3, rot mgl32.Quat) { f(id, pos, rot) }

// FrameHook is told when a new physics frame has been observed.
type FrameHook interface {
	PhysicsFrame(frame uint32, entities []bus.Entry)
}

// FrameStats summarises one render frame.
type FrameStats struct {
	Frame    uint32
	Alpha    float32
	Entities int
	NewFrame bool
}

// Consumer reads a bus handle of its own. It is not safe for concurrent use;
// each render goroutine owns one.
type Consumer struct {
	bus   *bus.Bus
	sink  Sink
	hook  FrameHook
	epoch time.Time

	lastFrame uint32
	lastCount int
	entries   []bus.Entry
}

// New attaches a consumer to the bus memory behind b. epoch must be the
// stepper's epoch so frame timing and render time share an origin.
func New(b *bus.Bus, sink Sink, epoch time.Time) *Consumer {
	return &Consumer{
		bus:       b.Attach(),
		sink:      sink,
		epoch:     epoch,
		lastCount: -1,
	}
}

// SetHook installs an optional new-frame hook.
func (c *Consumer) SetHook(h FrameHook) { c.hook = h }

// Bus returns the consumer's reader handle.
func (c *Consumer) Bus() *bus.Bus { return c.bus }

// Entities returns the id/slot pairs from the last rebuild.
func (c *Consumer) Entities() []bus.Entry { return c.entries }

// Frame blends every live entity for render time now and hands the result
// to the sink. Nothing is applied before the first physics frame.
func (c *Consumer) Frame(now time.Time) FrameStats {
	return c.FrameAt(engine.Millis(now, c.epoch))
}

// FrameAt is Frame with the render time already in epoch milliseconds.
func (c *Consumer) FrameAt(nowMs float64) FrameStats {
	frame := c.bus.FrameCounter()
	stats := FrameStats{Frame: frame}
	if frame == 0 {
		return stats
	}

	count := c.bus.EntityCount()
	if frame != c.lastFrame || count != c.lastCount {
		stats.NewFrame = frame != c.lastFrame
		c.lastFrame = frame
		c.lastCount = count
		c.bus.RebuildSlotMap()
		c.entries = c.bus.Entities()
		if c.hook != nil {
			c.hook.PhysicsFrame(frame, c.entries)
		}
	}

	timing := c.bus.ReadFrameTiming()
	stats.Alpha = Alpha(nowMs, timing.CurrentTime, timing.Interval)
	for _, e := range c.entries {
		t, ok := c.bus.ReadTransform(e.Slot)
		if !ok {
			continue
		}
		pos, rot := Blend(t.Previous, t.Current, stats.Alpha)
		if c.sink != nil {
			c.sink.Apply(e.ID, pos, rot)
		}
	}
	stats.Entities = len(c.entries)
	return stats
}

// Alpha is how far render time has moved past the last physics frame, as a
// fraction of the step interval in [0,1]. A non-positive interval yields 1.
func Alpha(nowMs, currentMs, intervalMs float64) float32 {
	if intervalMs <= 0 {
		return 1
	}
	a := (nowMs - currentMs) / intervalMs
	switch {
	case a < 0:
		return 0
	case a > 1:
		return 1
	}
	return float32(a)
}

// Blend lerps position and slerps rotation along the shorter arc.
func Blend(prev, cur engine.Transform, alpha float32) (mgl32.Vec3, mgl32.Quat) {
	pos := prev.Position.Add(cur.Position.Sub(prev.Position).Mul(alpha))
	return pos, Slerp(prev.Rotation, cur.Rotation, alpha)
}

// Slerp interpolates a toward b, flipping b when the two lie in opposite
// hemispheres.
func Slerp(a, b mgl32.Quat, t float32) mgl32.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	if t <= 0 {
		return a.Normalize()
	}
	if t >= 1 {
		return b.Normalize()
	}
	return mgl32.QuatSlerp(a, b, t)
}
