package controller

import (
	"errors"
	"fmt"

	"floatsim/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrInvalidConfig = errors.New("controller: invalid config")

// Config tunes the floating capsule. Distances are measured from the body
// origin (capsule centre) down to the ground.
type Config struct {
	CapsuleHalfHeight float32 `json:"capsuleHalfHeight"`
	CapsuleRadius     float32 `json:"capsuleRadius"`
	Mass              float32 `json:"mass"`

	FloatHeight    float32 `json:"floatHeight"`
	GroundedSlack  float32 `json:"groundedSlack"`
	RayLength      float32 `json:"rayLength"`
	SpringStrength float32 `json:"springStrength"`
	SpringDamping  float32 `json:"springDamping"`

	MoveSpeed        float32 `json:"moveSpeed"`
	SprintMultiplier float32 `json:"sprintMultiplier"`
	AirControl       float32 `json:"airControl"`
	AccelTuning      float32 `json:"accelTuning"`
	TurnRate         float32 `json:"turnRate"` // rad/s

	JumpForce              float32 `json:"jumpForce"`
	CoyoteTime             float32 `json:"coyoteTime"`     // s
	JumpBufferTime         float32 `json:"jumpBufferTime"` // s
	LandSpeedFullIntensity float32 `json:"landSpeedFullIntensity"`
}

// DefaultConfig returns tuning that hovers a 1.8m capsule 0.3m above flat
// ground under -20 gravity.
func DefaultConfig() Config {
	return Config{
		CapsuleHalfHeight: 0.5,
		CapsuleRadius:     0.4,
		Mass:              1,

		FloatHeight:    1.2,
		GroundedSlack:  0.1,
		RayLength:      2.0,
		SpringStrength: 300,
		SpringDamping:  20,

		MoveSpeed:        6,
		SprintMultiplier: 1.7,
		AirControl:       0.4,
		AccelTuning:      0.15,
		TurnRate:         2.5,

		JumpForce:              9,
		CoyoteTime:             0.12,
		JumpBufferTime:         0.15,
		LandSpeedFullIntensity: 12,
	}
}

// Validate rejects tunings the controller cannot run with.
func (c Config) Validate() error {
	switch {
	case c.CapsuleRadius <= 0 || c.CapsuleHalfHeight < 0:
		return fmt.Errorf("capsule %v/%v: %w", c.CapsuleHalfHeight, c.CapsuleRadius, ErrInvalidConfig)
	case c.Mass <= 0:
		return fmt.Errorf("mass %v: %w", c.Mass, ErrInvalidConfig)
	case c.FloatHeight <= c.CapsuleHalfHeight+c.CapsuleRadius:
		return fmt.Errorf("float height %v does not clear the capsule: %w", c.FloatHeight, ErrInvalidConfig)
	case c.RayLength < c.FloatHeight+c.GroundedSlack:
		return fmt.Errorf("ray length %v shorter than float height + slack: %w", c.RayLength, ErrInvalidConfig)
	case c.AccelTuning <= 0 || c.AccelTuning > 1:
		return fmt.Errorf("accel tuning %v outside (0,1]: %w", c.AccelTuning, ErrInvalidConfig)
	case c.LandSpeedFullIntensity <= 0:
		return fmt.Errorf("land speed %v: %w", c.LandSpeedFullIntensity, ErrInvalidConfig)
	}
	return nil
}

// Shape returns the player capsule.
func (c Config) Shape() physics.Shape {
	return physics.NewCapsule(c.CapsuleHalfHeight, c.CapsuleRadius)
}

// BodyDesc returns an upright, never-sleeping dynamic body at pos.
func (c Config) BodyDesc(pos mgl32.Vec3, rot mgl32.Quat) physics.BodyDesc {
	desc := physics.DefaultBodyDesc(physics.Dynamic)
	desc.Position = pos
	desc.Rotation = rot
	desc.Mass = c.Mass
	desc.Restitution = 0
	desc.Friction = 0
	desc.LinearDamping = 0
	desc.LockRotations = true
	desc.CanSleep = false
	return desc
}
