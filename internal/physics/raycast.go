package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type RaycastHit struct {
	Body     BodyHandle
	Collider ColliderHandle
	Point    mgl32.Vec3
	Normal   mgl32.Vec3
	Distance float32
}

// CastRay returns the closest hit along direction within maxDistance.
// The collider named by exclude (zero for none) is ignored.
func (w *World) CastRay(origin, direction mgl32.Vec3, maxDistance float32, exclude ColliderHandle) (RaycastHit, bool) {
	if direction.Len() < epsilon || maxDistance <= 0 {
		return RaycastHit{}, false
	}
	direction = direction.Normalize()

	var closestHit RaycastHit
	closestHit.Distance = maxDistance
	hit := false

	for _, b := range w.order {
		if b.collider == exclude {
			continue
		}
		var (
			info RaycastHit
			ok   bool
		)
		switch b.shape.Kind {
		case Cuboid:
			info, ok = raycastBox(origin, direction, bodyOBB(b), closestHit.Distance)
		case Ball:
			info, ok = raycastSphere(origin, direction, b.position, b.shape.Radius, closestHit.Distance)
		case Capsule:
			p, q := capsuleSegment(b.shape, b.position, b.rotation)
			info, ok = raycastCapsule(origin, direction, p, q, b.shape.Radius, closestHit.Distance)
		case Heightfield:
			info, ok = raycastHeightfield(origin, direction, b.position, b.shape.Field, closestHit.Distance)
		}
		if ok && info.Distance <= closestHit.Distance {
			closestHit = info
			closestHit.Body = b.handle
			closestHit.Collider = b.collider
			hit = true
		}
	}

	return closestHit, hit
}

// raycastBox runs the slab test in the box's local frame.
func raycastBox(origin, direction mgl32.Vec3, o OBB, maxDistance float32) (RaycastHit, bool) {
	lo := o.toLocal(origin)
	ld := mgl32.Vec3{direction.Dot(o.Axes[0]), direction.Dot(o.Axes[1]), direction.Dot(o.Axes[2])}

	tmin, tmax := float32(-1e30), float32(1e30)
	hitAxis, hitSign := 0, float32(-1)

	for i := 0; i < 3; i++ {
		half := o.HalfSize[i]
		if absf(ld[i]) < epsilon {
			if lo[i] < -half || lo[i] > half {
				return RaycastHit{}, false
			}
			continue
		}
		t1 := (-half - lo[i]) / ld[i]
		t2 := (half - lo[i]) / ld[i]
		sign := float32(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1
		}
		if t1 > tmin {
			tmin = t1
			hitAxis, hitSign = i, sign
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return RaycastHit{}, false
		}
	}

	if tmax < 0 || tmin > maxDistance {
		return RaycastHit{}, false
	}

	t := tmin
	normal := o.Axes[hitAxis].Mul(hitSign)
	if t < 0 {
		// Origin inside the box: report the exit face.
		t = tmax
		normal = normal.Mul(-1)
	}
	if t > maxDistance {
		return RaycastHit{}, false
	}

	point := origin.Add(direction.Mul(t))
	return RaycastHit{Point: point, Normal: normal, Distance: t}, true
}

func raycastSphere(origin, direction, center mgl32.Vec3, radius, maxDistance float32) (RaycastHit, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(direction)
	c := oc.Dot(oc) - radius*radius

	discriminant := b*b - c
	if discriminant < 0 {
		return RaycastHit{}, false
	}

	sq := float32(math.Sqrt(float64(discriminant)))
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 || t > maxDistance {
		return RaycastHit{}, false
	}

	point := origin.Add(direction.Mul(t))
	normal := normalizeOr(point.Sub(center), direction.Mul(-1))
	return RaycastHit{Point: point, Normal: normal, Distance: t}, true
}

// raycastCapsule intersects the cylinder body and both end caps and keeps
// the nearest hit.
func raycastCapsule(origin, direction, p, q mgl32.Vec3, radius, maxDistance float32) (RaycastHit, bool) {
	best := RaycastHit{Distance: maxDistance}
	found := false
	keep := func(h RaycastHit, ok bool) {
		if ok && h.Distance <= best.Distance {
			best = h
			found = true
		}
	}
	keep(raycastSphere(origin, direction, p, radius, maxDistance))
	keep(raycastSphere(origin, direction, q, radius, maxDistance))

	axis := q.Sub(p)
	length := axis.Len()
	if length < epsilon {
		return best, found
	}
	axis = axis.Mul(1 / length)

	// Project onto the plane orthogonal to the axis and solve the circle.
	oc := origin.Sub(p)
	dPerp := direction.Sub(axis.Mul(direction.Dot(axis)))
	oPerp := oc.Sub(axis.Mul(oc.Dot(axis)))
	a := dPerp.Dot(dPerp)
	if a > epsilon {
		b := oPerp.Dot(dPerp)
		c := oPerp.Dot(oPerp) - radius*radius
		disc := b*b - a*c
		if disc >= 0 {
			sq := float32(math.Sqrt(float64(disc)))
			for _, t := range [2]float32{(-b - sq) / a, (-b + sq) / a} {
				if t < 0 || t > best.Distance {
					continue
				}
				point := origin.Add(direction.Mul(t))
				along := point.Sub(p).Dot(axis)
				if along < 0 || along > length {
					continue
				}
				onAxis := p.Add(axis.Mul(along))
				keep(RaycastHit{
					Point:    point,
					Normal:   normalizeOr(point.Sub(onAxis), direction.Mul(-1)),
					Distance: t,
				}, true)
				break
			}
		}
	}
	return best, found
}

// raycastHeightfield marches along the ray and refines the first crossing by bisection.
func raycastHeightfield(origin, direction, fieldPos mgl32.Vec3, field *HeightField, maxDistance float32) (RaycastHit, bool) {
	dx, dz := field.cellSize()
	step := minf(dx, dz) * 0.5

	above := func(t float32) (bool, bool) {
		p := origin.Add(direction.Mul(t)).Sub(fieldPos)
		h, ok := field.HeightAt(p.X(), p.Z())
		if !ok {
			return false, false
		}
		return p.Y() > h, true
	}

	prevT := float32(0)
	prevAbove, prevOK := above(0)
	if prevOK && !prevAbove {
		return RaycastHit{}, false
	}

	for t := step; ; t += step {
		if t > maxDistance {
			t = maxDistance
		}
		isAbove, ok := above(t)
		if ok && prevOK && prevAbove && !isAbove {
			lo, hi := prevT, t
			for i := 0; i < 12; i++ {
				mid := (lo + hi) / 2
				if a, _ := above(mid); a {
					lo = mid
				} else {
					hi = mid
				}
			}
			point := origin.Add(direction.Mul(hi))
			local := point.Sub(fieldPos)
			return RaycastHit{
				Point:    point,
				Normal:   field.NormalAt(local.X(), local.Z()),
				Distance: hi,
			}, true
		}
		if t >= maxDistance {
			break
		}
		prevT, prevAbove, prevOK = t, isAbove, ok
	}
	return RaycastHit{}, false
}
