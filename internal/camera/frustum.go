package camera

import "github.com/go-gl/mathgl/mgl32"

// Frustum represents the 6 planes of a view frustum for culling
type Frustum struct {
	planes [6]Plane // left, right, bottom, top, near, far
}

// Plane represents a plane in 3D space (ax + by + cz + d = 0)
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// ExtractFrustum extracts frustum planes from a view-projection matrix
// Uses the Gribb/Hartmann method for plane extraction
func ExtractFrustum(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	var f Frustum
	f.planes[0] = planeOf(r3.Add(r0))
	f.planes[1] = planeOf(r3.Sub(r0))
	f.planes[2] = planeOf(r3.Add(r1))
	f.planes[3] = planeOf(r3.Sub(r1))
	f.planes[4] = planeOf(r3.Add(r2))
	f.planes[5] = planeOf(r3.Sub(r2))
	return f
}

// Of returns the frustum of c at the given aspect ratio and clip range.
func (c *Follow) Of(aspect, near, far float32) Frustum {
	return ExtractFrustum(c.Projection(aspect, near, far).Mul4(c.View()))
}

func planeOf(v mgl32.Vec4) Plane {
	p := Plane{Normal: v.Vec3(), Distance: v.W()}
	length := p.Normal.Len()
	if length == 0 {
		return p
	}
	return Plane{Normal: p.Normal.Mul(1 / length), Distance: p.Distance / length}
}

// ContainsSphere tests if a sphere is inside or intersects the frustum
func (f *Frustum) ContainsSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f.planes {
		if f.planes[i].Normal.Dot(center)+f.planes[i].Distance < -radius {
			return false
		}
	}
	return true
}

// ContainsPoint tests if a point is inside the frustum
func (f *Frustum) ContainsPoint(point mgl32.Vec3) bool {
	return f.ContainsSphere(point, 0)
}
