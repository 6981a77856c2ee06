package physics

import "github.com/go-gl/mathgl/mgl32"

type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewAABBFromCenter creates an AABB from a center point and half extents.
func NewAABBFromCenter(center, half mgl32.Vec3) AABB {
	return AABB{
		Min: center.Sub(half),
		Max: center.Add(half),
	}
}

func (a AABB) Intersects(b AABB) bool {
	return a.Min.X() <= b.Max.X() && a.Max.X() >= b.Min.X() &&
		a.Min.Y() <= b.Max.Y() && a.Max.Y() >= b.Min.Y() &&
		a.Min.Z() <= b.Max.Z() && a.Max.Z() >= b.Min.Z()
}

// Expand grows the box by margin on every side.
func (a AABB) Expand(margin float32) AABB {
	m := mgl32.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// shapeAABB bounds a shape placed at pos with rotation rot.
func shapeAABB(s Shape, pos mgl32.Vec3, rot mgl32.Quat) AABB {
	switch s.Kind {
	case Cuboid:
		o := NewOBB(pos, s.HalfExtents, rot)
		var half mgl32.Vec3
		for i := 0; i < 3; i++ {
			half = half.Add(mgl32.Vec3{
				absf(o.Axes[i].X()),
				absf(o.Axes[i].Y()),
				absf(o.Axes[i].Z()),
			}.Mul(o.HalfSize[i]))
		}
		return NewAABBFromCenter(pos, half)
	case Ball:
		r := s.Radius
		return NewAABBFromCenter(pos, mgl32.Vec3{r, r, r})
	case Capsule:
		a, b := capsuleSegment(s, pos, rot)
		r := mgl32.Vec3{s.Radius, s.Radius, s.Radius}
		lo := mgl32.Vec3{minf(a.X(), b.X()), minf(a.Y(), b.Y()), minf(a.Z(), b.Z())}
		hi := mgl32.Vec3{maxf(a.X(), b.X()), maxf(a.Y(), b.Y()), maxf(a.Z(), b.Z())}
		return AABB{Min: lo.Sub(r), Max: hi.Add(r)}
	case Heightfield:
		f := s.Field
		lo, hi := float32(math32Max), float32(-math32Max)
		for _, h := range f.Heights {
			h *= f.Size.Y()
			lo = minf(lo, h)
			hi = maxf(hi, h)
		}
		return AABB{
			Min: mgl32.Vec3{pos.X() - f.Size.X()/2, pos.Y() + lo, pos.Z() - f.Size.Z()/2},
			Max: mgl32.Vec3{pos.X() + f.Size.X()/2, pos.Y() + hi, pos.Z() + f.Size.Z()/2},
		}
	}
	return AABB{Min: pos, Max: pos}
}

const math32Max = 3.4e38

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
