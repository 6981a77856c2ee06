package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// OBB represents an Oriented Bounding Box
type OBB struct {
	Center   mgl32.Vec3    // World-space center
	HalfSize mgl32.Vec3    // Half-extents along local axes
	Axes     [3]mgl32.Vec3 // Local X, Y, Z axes (rotated)
}

// NewOBB creates an OBB from center, half extents and orientation.
func NewOBB(center, half mgl32.Vec3, rot mgl32.Quat) OBB {
	return OBB{
		Center:   center,
		HalfSize: half,
		Axes: [3]mgl32.Vec3{
			rot.Rotate(mgl32.Vec3{1, 0, 0}),
			rot.Rotate(mgl32.Vec3{0, 1, 0}),
			rot.Rotate(mgl32.Vec3{0, 0, 1}),
		},
	}
}

func (o OBB) project(axis mgl32.Vec3) float32 {
	return o.HalfSize.X()*absf(o.Axes[0].Dot(axis)) +
		o.HalfSize.Y()*absf(o.Axes[1].Dot(axis)) +
		o.HalfSize.Z()*absf(o.Axes[2].Dot(axis))
}

// IntersectsOBB tests if two OBBs intersect using the Separating Axis Theorem
func (a OBB) IntersectsOBB(b OBB) bool {
	_, _, ok := a.penetration(b)
	return ok
}

// penetration tests the 15 SAT axes and returns the axis of least overlap,
// oriented to push a away from b.
func (a OBB) penetration(b OBB) (mgl32.Vec3, float32, bool) {
	t := b.Center.Sub(a.Center)
	minPenetration := float32(math.MaxFloat32)
	var best mgl32.Vec3

	separated := false
	testAxis := func(axis mgl32.Vec3) {
		if separated {
			return
		}
		l := axis.Len()
		if l < 0.0001 {
			return
		}
		axis = axis.Mul(1 / l)

		dist := t.Dot(axis)
		penetration := a.project(axis) + b.project(axis) - absf(dist)
		if penetration < 0 {
			separated = true
			return
		}
		if penetration < minPenetration {
			minPenetration = penetration
			if dist < 0 {
				best = axis
			} else {
				best = axis.Mul(-1)
			}
		}
	}

	for i := 0; i < 3; i++ {
		testAxis(a.Axes[i])
	}
	for i := 0; i < 3; i++ {
		testAxis(b.Axes[i])
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			testAxis(a.Axes[i].Cross(b.Axes[j]))
		}
	}

	if separated {
		return mgl32.Vec3{}, 0, false
	}
	return best, minPenetration, true
}

// ResolveOBB returns the minimum translation vector to push 'a' out of 'b'.
// Returns zero vector if no overlap.
func (a OBB) ResolveOBB(b OBB) mgl32.Vec3 {
	axis, depth, ok := a.penetration(b)
	if !ok {
		return mgl32.Vec3{}
	}
	return axis.Mul(depth)
}

// toLocal expresses a world point in the box frame.
func (o OBB) toLocal(p mgl32.Vec3) mgl32.Vec3 {
	d := p.Sub(o.Center)
	return mgl32.Vec3{d.Dot(o.Axes[0]), d.Dot(o.Axes[1]), d.Dot(o.Axes[2])}
}

func (o OBB) toWorld(local mgl32.Vec3) mgl32.Vec3 {
	return o.Center.
		Add(o.Axes[0].Mul(local.X())).
		Add(o.Axes[1].Mul(local.Y())).
		Add(o.Axes[2].Mul(local.Z()))
}

// Contains reports whether p lies inside the box.
func (o OBB) Contains(p mgl32.Vec3) bool {
	l := o.toLocal(p)
	return absf(l.X()) <= o.HalfSize.X() && absf(l.Y()) <= o.HalfSize.Y() && absf(l.Z()) <= o.HalfSize.Z()
}

// ClosestPoint returns the point of the box nearest to p (p itself when inside).
func (o OBB) ClosestPoint(p mgl32.Vec3) mgl32.Vec3 {
	l := o.toLocal(p)
	return o.toWorld(mgl32.Vec3{
		clamp(l.X(), -o.HalfSize.X(), o.HalfSize.X()),
		clamp(l.Y(), -o.HalfSize.Y(), o.HalfSize.Y()),
		clamp(l.Z(), -o.HalfSize.Z(), o.HalfSize.Z()),
	})
}

// IntersectsSphere tests if an OBB intersects with a sphere
func (o OBB) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	return lenSq(center.Sub(o.ClosestPoint(center))) <= radius*radius
}

// sphereContact returns the push-out normal (box towards sphere) and depth.
func (o OBB) sphereContact(center mgl32.Vec3, radius float32) (mgl32.Vec3, float32, mgl32.Vec3, bool) {
	closest := o.ClosestPoint(center)
	d := center.Sub(closest)
	distSq := lenSq(d)
	if distSq > radius*radius {
		return mgl32.Vec3{}, 0, mgl32.Vec3{}, false
	}
	if distSq > epsilon {
		dist := sqrtf(distSq)
		return d.Mul(1 / dist), radius - dist, closest, true
	}

	// Center inside the box: leave through the nearest face.
	l := o.toLocal(center)
	bestAxis, bestDepth, sign := 0, float32(math.MaxFloat32), float32(1)
	for i := 0; i < 3; i++ {
		depth := o.HalfSize[i] - absf(l[i])
		if depth < bestDepth {
			bestDepth = depth
			bestAxis = i
			sign = 1
			if l[i] < 0 {
				sign = -1
			}
		}
	}
	n := o.Axes[bestAxis].Mul(sign)
	return n, bestDepth + radius, center, true
}
