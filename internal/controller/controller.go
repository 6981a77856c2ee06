// Package controller drives a dynamic capsule that hovers on a damped spring
// above the ground, walks relative to its yaw and jumps with coyote time and
// input buffering.
package controller

import (
	"math"

	"floatsim/internal/engine"
	"floatsim/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

// State is the ground phase of the controller.
type State uint8

const (
	Grounded State = iota
	CoyoteWindow
	Airborne
)

func (s State) String() string {
	switch s {
	case Grounded:
		return "grounded"
	case CoyoteWindow:
		return "coyote"
	case Airborne:
		return "airborne"
	}
	return "unknown"
}

var up = mgl32.Vec3{0, 1, 0}

// Controller owns one player body. It runs on the physics goroutine.
type Controller struct {
	cfg    Config
	world  *physics.World
	body   *physics.Body
	entity engine.EntityID

	yaw float32

	initialized   bool
	grounded      bool
	ascending     bool
	jumpConsumed  bool
	airTime       float32
	groundDist    float32
	jumpBuffered  bool
	jumpBufferAge float32
	prevJump      bool
}

// New attaches a controller to an existing capsule body.
func New(world *physics.World, body *physics.Body, entity engine.EntityID, cfg Config) *Controller {
	c := &Controller{
		cfg:    cfg,
		world:  world,
		body:   body,
		entity: entity,
	}
	c.yaw = yawOf(body.Rotation())
	return c
}

func (c *Controller) Body() *physics.Body     { return c.body }
func (c *Controller) Entity() engine.EntityID { return c.entity }
func (c *Controller) Config() Config          { return c.cfg }
func (c *Controller) Yaw() float32            { return c.yaw }
func (c *Controller) Grounded() bool          { return c.grounded }
func (c *Controller) Position() mgl32.Vec3    { return c.body.Translation() }

// GroundDistance is the last ray hit distance, or +Inf when nothing was hit.
func (c *Controller) GroundDistance() float32 { return c.groundDist }

// State reports the current ground phase.
func (c *Controller) State() State {
	switch {
	case c.grounded:
		return Grounded
	case c.airTime <= c.cfg.CoyoteTime && !c.jumpConsumed:
		return CoyoteWindow
	default:
		return Airborne
	}
}

// Update runs one tick of control before the world steps. It returns the
// jump and land events raised this tick.
func (c *Controller) Update(in engine.Input, dt float32) []engine.PlayerEvent {
	var events []engine.PlayerEvent
	body := c.body

	// Ground probe
	pos := body.Translation()
	vel := body.LinearVelocity()
	if c.ascending && vel.Y() <= 0 {
		c.ascending = false
	}

	hit, rayHit := c.world.CastRay(pos, up.Mul(-1), c.cfg.RayLength, body.Collider())
	c.groundDist = float32(math.Inf(1))
	if rayHit {
		c.groundDist = hit.Distance
	}
	groundedNow := rayHit && !c.ascending && hit.Distance <= c.cfg.FloatHeight+c.cfg.GroundedSlack

	if !c.initialized {
		c.initialized = true
	} else if groundedNow && !c.grounded {
		events = append(events, engine.PlayerEvent{
			Kind:      engine.EventLand,
			Entity:    c.entity,
			Position:  pos,
			Intensity: LandIntensity(vel.Y(), c.cfg.LandSpeedFullIntensity),
		})
	}
	c.grounded = groundedNow
	if groundedNow {
		c.airTime = 0
		c.jumpConsumed = false
	} else {
		c.airTime += dt
	}

	// Hover spring
	if rayHit && !c.ascending {
		f := FloatingForce(c.cfg, hit.Distance, vel.Y())
		body.ApplyImpulse(up.Mul(f*dt), true)
	}

	// Horizontal drive
	speed := c.cfg.MoveSpeed
	if in.Sprint {
		speed *= c.cfg.SprintMultiplier
	}
	if !c.grounded && c.airTime > c.cfg.CoyoteTime {
		speed *= c.cfg.AirControl
	}
	target := MoveDirection(c.yaw, in).Mul(speed)
	vel = body.LinearVelocity()
	delta := mgl32.Vec3{target.X() - vel.X(), 0, target.Z() - vel.Z()}
	if delta.Dot(delta) > 1e-8 {
		body.ApplyImpulse(delta.Mul(body.Mass()*c.cfg.AccelTuning), true)
	}

	// Jump while the input is held; a press that cannot jump yet is buffered
	canJump := (c.grounded || c.airTime <= c.cfg.CoyoteTime) && !c.jumpConsumed
	pressed := in.Jump && !c.prevJump
	c.prevJump = in.Jump
	if pressed && !canJump {
		c.jumpBuffered = true
		c.jumpBufferAge = 0
	} else if c.jumpBuffered {
		c.jumpBufferAge += dt
		if c.jumpBufferAge > c.cfg.JumpBufferTime {
			c.jumpBuffered = false
		}
	}
	if canJump && (in.Jump || c.jumpBuffered) {
		vel = body.LinearVelocity()
		body.SetLinearVelocity(mgl32.Vec3{vel.X(), 0, vel.Z()}, true)
		body.ApplyImpulse(up.Mul(c.cfg.JumpForce*body.Mass()), true)

		c.jumpConsumed = true
		c.jumpBuffered = false
		c.ascending = true
		c.grounded = false
		events = append(events, engine.PlayerEvent{
			Kind:     engine.EventJump,
			Entity:   c.entity,
			Position: pos,
		})
	}

	// Yaw
	turn := in.Turn
	if in.Left {
		turn++
	}
	if in.Right {
		turn--
	}
	if turn != 0 {
		c.yaw += c.cfg.TurnRate * dt * turn
		c.yaw = wrapAngle(c.yaw)
	}
	body.SetRotation(YawQuat(c.yaw), false)

	return events
}

// PostStep caps horizontal speed after the world has stepped.
func (c *Controller) PostStep(in engine.Input) {
	limit := c.cfg.MoveSpeed
	if in.Sprint {
		limit *= c.cfg.SprintMultiplier
	}
	v := c.body.LinearVelocity()
	if clamped := ClampHorizontal(v, limit); clamped != v {
		c.body.SetLinearVelocity(clamped, false)
	}
}

// FloatingForce is the spring-damper force holding the capsule at FloatHeight.
func FloatingForce(cfg Config, dist, vy float32) float32 {
	return cfg.SpringStrength*(cfg.FloatHeight-dist) - cfg.SpringDamping*vy
}

// MoveDirection is the unit walk direction for yaw, or zero without input.
// Yaw 0 faces -Z.
func MoveDirection(yaw float32, in engine.Input) mgl32.Vec3 {
	var axis float32
	if in.Forward {
		axis++
	}
	if in.Backward {
		axis--
	}
	if axis == 0 {
		return mgl32.Vec3{}
	}
	s, c := math.Sincos(float64(yaw))
	forward := mgl32.Vec3{-float32(s), 0, -float32(c)}
	return forward.Mul(axis).Normalize()
}

// ClampHorizontal scales the XZ part of v down to max, keeping direction and Y.
func ClampHorizontal(v mgl32.Vec3, max float32) mgl32.Vec3 {
	h := mgl32.Vec3{v.X(), 0, v.Z()}
	l := h.Len()
	if l <= max || l == 0 {
		return v
	}
	h = h.Mul(max / l)
	return mgl32.Vec3{h.X(), v.Y(), h.Z()}
}

// LandIntensity maps impact speed to [0,1].
func LandIntensity(vy, fullSpeed float32) float32 {
	if fullSpeed <= 0 {
		return 1
	}
	return mgl32.Clamp(float32(math.Abs(float64(vy)))/fullSpeed, 0, 1)
}

// YawQuat is a rotation of yaw radians about +Y.
func YawQuat(yaw float32) mgl32.Quat {
	return mgl32.QuatRotate(yaw, up)
}

func yawOf(q mgl32.Quat) float32 {
	f := q.Rotate(mgl32.Vec3{0, 0, -1})
	if f.X() == 0 && f.Z() == 0 {
		return 0
	}
	return float32(math.Atan2(float64(-f.X()), float64(-f.Z())))
}

func wrapAngle(a float32) float32 {
	const twoPi = 2 * math.Pi
	for a > math.Pi {
		a -= twoPi
	}
	for a < -math.Pi {
		a += twoPi
	}
	return a
}
