package physics

import "github.com/go-gl/mathgl/mgl32"

// Sleep thresholds
const (
	SleepVelocityThreshold = 0.3  // units/sec - below this, body might sleep
	SleepAngularThreshold  = 0.02 // rad/sec - below this, body might sleep
	SleepTimeThreshold     = 0.3  // seconds of low velocity before sleeping
)

// BodyHandle identifies a body in its World. Zero is never issued.
type BodyHandle uint32

// ColliderHandle identifies a collider in its World. Zero is never issued.
type ColliderHandle uint32

// BodyDesc describes a body to create.
type BodyDesc struct {
	Kind     BodyKind
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Velocity mgl32.Vec3

	Mass           float32 // <= 0 derives mass from the shape volume
	Restitution    float32 // 0 = no bounce, 1 = perfect bounce
	Friction       float32 // 0 = ice, 1 = stops sliding immediately
	LinearDamping  float32 // per second
	AngularDamping float32 // per second
	GravityScale   float32
	LockRotations  bool
	CanSleep       bool
}

// DefaultBodyDesc returns the parameters used for loose props.
func DefaultBodyDesc(kind BodyKind) BodyDesc {
	return BodyDesc{
		Kind:           kind,
		Rotation:       mgl32.QuatIdent(),
		Restitution:    0.3,
		Friction:       0.5,
		LinearDamping:  0.05,
		AngularDamping: 0.8,
		GravityScale:   1,
		CanSleep:       true,
	}
}

// Body is a simulated rigid body. Fields are owned by the World; use the
// accessor and mutator methods.
type Body struct {
	handle   BodyHandle
	collider ColliderHandle
	kind     BodyKind
	shape    Shape

	position        mgl32.Vec3
	rotation        mgl32.Quat
	velocity        mgl32.Vec3
	angularVelocity mgl32.Vec3 // rad/s

	mass, invMass  float32
	restitution    float32
	friction       float32
	linearDamping  float32
	angularDamping float32
	gravityScale   float32
	lockRotations  bool

	// Sleep state - sleeping bodies skip integration
	canSleep   bool
	sleeping   bool
	sleepTimer float32
}

func newBody(h BodyHandle, c ColliderHandle, desc BodyDesc, shape Shape) *Body {
	rot := desc.Rotation
	if rot == (mgl32.Quat{}) {
		rot = mgl32.QuatIdent()
	}
	b := &Body{
		handle:         h,
		collider:       c,
		kind:           desc.Kind,
		shape:          shape,
		position:       desc.Position,
		rotation:       rot.Normalize(),
		velocity:       desc.Velocity,
		restitution:    desc.Restitution,
		friction:       desc.Friction,
		linearDamping:  desc.LinearDamping,
		angularDamping: desc.AngularDamping,
		gravityScale:   desc.GravityScale,
		lockRotations:  desc.LockRotations,
		canSleep:       desc.CanSleep,
	}
	if desc.Kind == Dynamic {
		b.mass = desc.Mass
		if b.mass <= 0 {
			b.mass = shape.Volume()
		}
		if b.mass <= 0 {
			b.mass = 1
		}
		b.invMass = 1 / b.mass
	}
	return b
}

func (b *Body) Handle() BodyHandle            { return b.handle }
func (b *Body) Collider() ColliderHandle      { return b.collider }
func (b *Body) Kind() BodyKind                { return b.kind }
func (b *Body) Shape() Shape                  { return b.shape }
func (b *Body) Translation() mgl32.Vec3       { return b.position }
func (b *Body) Rotation() mgl32.Quat          { return b.rotation }
func (b *Body) LinearVelocity() mgl32.Vec3    { return b.velocity }
func (b *Body) AngularVelocity() mgl32.Vec3   { return b.angularVelocity }
func (b *Body) Mass() float32                 { return b.mass }
func (b *Body) IsSleeping() bool              { return b.sleeping }
func (b *Body) Pose() (mgl32.Vec3, mgl32.Quat) { return b.position, b.rotation }

// SetTranslation teleports the body.
func (b *Body) SetTranslation(p mgl32.Vec3, wake bool) {
	b.position = p
	if wake {
		b.WakeUp()
	}
}

// SetRotation replaces the orientation.
func (b *Body) SetRotation(q mgl32.Quat, wake bool) {
	b.rotation = q.Normalize()
	if wake {
		b.WakeUp()
	}
}

// SetLinearVelocity replaces the linear velocity.
func (b *Body) SetLinearVelocity(v mgl32.Vec3, wake bool) {
	if b.kind == Static {
		return
	}
	b.velocity = v
	if wake {
		b.WakeUp()
	}
}

// SetAngularVelocity replaces the angular velocity (rad/s).
func (b *Body) SetAngularVelocity(w mgl32.Vec3, wake bool) {
	if b.kind == Static || b.lockRotations {
		return
	}
	b.angularVelocity = w
	if wake {
		b.WakeUp()
	}
}

// ApplyImpulse changes velocity by impulse/mass. Only dynamic bodies respond.
func (b *Body) ApplyImpulse(impulse mgl32.Vec3, wake bool) {
	if b.kind != Dynamic {
		return
	}
	b.velocity = b.velocity.Add(impulse.Mul(b.invMass))
	if wake {
		b.WakeUp()
	}
}

// Sleep puts the body to rest and clears its velocities.
func (b *Body) Sleep() {
	if b.kind != Dynamic {
		return
	}
	b.sleeping = true
	b.sleepTimer = 0
	b.velocity = mgl32.Vec3{}
	b.angularVelocity = mgl32.Vec3{}
}

// WakeUp forces the body out of sleep state
func (b *Body) WakeUp() {
	b.sleeping = false
	b.sleepTimer = 0
}

// trySleep checks if the body should go to sleep based on velocity
func (b *Body) trySleep(dt float32) {
	if !b.canSleep || b.sleeping || b.kind != Dynamic {
		return
	}

	speed := b.velocity.Len()
	angSpeed := b.angularVelocity.Len()

	if speed < SleepVelocityThreshold && angSpeed < SleepAngularThreshold {
		b.sleepTimer += dt

		// Extra damping when nearly at rest to reduce jitter
		const dampFactor = 0.9
		b.velocity = b.velocity.Mul(dampFactor)
		b.angularVelocity = b.angularVelocity.Mul(dampFactor)

		if b.sleepTimer >= SleepTimeThreshold {
			b.Sleep()
		}
	} else {
		b.sleepTimer = 0
	}
}
