package camera

import "github.com/go-gl/mathgl/mgl32"

// Follow is a third-person camera that trails a target along its facing.
type Follow struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Fovy     float32 // Degrees

	Distance  float32 // Behind the target on the horizontal plane
	Height    float32 // Above the target
	LookAhead float32 // Target point shift along the facing
}

func New() *Follow {
	return &Follow{
		Fovy:      55,
		Distance:  7,
		Height:    3.5,
		LookAhead: 1.5,
	}
}

// Update places the camera at its offset behind a target at pos facing rot.
func (c *Follow) Update(pos mgl32.Vec3, rot mgl32.Quat) {
	forward := flatForward(rot)
	c.Position = pos.Sub(forward.Mul(c.Distance)).Add(mgl32.Vec3{0, c.Height, 0})
	c.Target = pos.Add(forward.Mul(c.LookAhead)).Add(mgl32.Vec3{0, 0.5, 0})
}

// View returns the look-at matrix.
func (c *Follow) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, mgl32.Vec3{0, 1, 0})
}

// Projection returns a perspective matrix for the given aspect ratio.
func (c *Follow) Projection(aspect, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fovy), aspect, near, far)
}

// flatForward is the horizontal facing of rot, -Z when rot points straight up
// or down.
func flatForward(rot mgl32.Quat) mgl32.Vec3 {
	f := rot.Rotate(mgl32.Vec3{0, 0, -1})
	f[1] = 0
	if f.Len() < 1e-4 {
		return mgl32.Vec3{0, 0, -1}
	}
	return f.Normalize()
}
