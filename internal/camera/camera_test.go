package camera

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFollowSnapsBehindTarget(t *testing.T) {
	c := New()
	c.Update(mgl32.Vec3{0, 1, 0}, mgl32.QuatIdent())

	// Facing -Z puts the camera at +Z
	want := mgl32.Vec3{0, 1 + c.Height, c.Distance}
	if !c.Position.ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("Expected camera at %v, got %v", want, c.Position)
	}
	if c.Target.Z() >= 0 {
		t.Errorf("Expected target ahead of the player, got %v", c.Target)
	}
}

func TestFollowTurnsWithYaw(t *testing.T) {
	c := New()
	// Yaw a quarter turn left faces -X
	c.Update(mgl32.Vec3{}, mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0}))
	if c.Position.X() < c.Distance-1e-3 {
		t.Errorf("Expected camera on +X, got %v", c.Position)
	}
}

func TestFollowKeepsFixedOffset(t *testing.T) {
	c := New()
	c.Update(mgl32.Vec3{}, mgl32.QuatIdent())
	c.Update(mgl32.Vec3{10, 0, 0}, mgl32.QuatIdent())
	if c.Position.X() != 10 {
		t.Errorf("Expected camera to track the target exactly, got %v", c.Position)
	}
}

func TestFrustumCulling(t *testing.T) {
	c := New()
	c.Update(mgl32.Vec3{}, mgl32.QuatIdent())
	f := c.Of(16.0/9.0, 0.1, 200)

	if !f.ContainsPoint(c.Target) {
		t.Error("Expected the look target to be visible")
	}
	behind := c.Position.Add(mgl32.Vec3{0, 0, 20})
	if f.ContainsSphere(behind, 1) {
		t.Error("Expected a sphere behind the camera to be culled")
	}
	if f.ContainsSphere(mgl32.Vec3{0, 0, -500}, 1) {
		t.Error("Expected a sphere past the far plane to be culled")
	}
	if !f.ContainsSphere(behind, 30) {
		t.Error("Expected a large sphere reaching into view to pass")
	}
}
