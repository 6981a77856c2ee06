package physics

import "github.com/go-gl/mathgl/mgl32"

// contact is a narrow-phase result. normal is unit length and points from
// the second body towards the first.
type contact struct {
	normal mgl32.Vec3
	depth  float32
	point  mgl32.Vec3
}

func (c contact) flipped() contact {
	c.normal = c.normal.Mul(-1)
	return c
}

// capsuleSegment returns the end points of the capsule's inner segment.
func capsuleSegment(s Shape, pos mgl32.Vec3, rot mgl32.Quat) (mgl32.Vec3, mgl32.Vec3) {
	axis := rot.Rotate(mgl32.Vec3{0, s.HalfHeight, 0})
	return pos.Sub(axis), pos.Add(axis)
}

// roundSegment describes balls and capsules as a swept sphere.
func roundSegment(b *Body) (mgl32.Vec3, mgl32.Vec3, float32) {
	if b.shape.Kind == Capsule {
		p, q := capsuleSegment(b.shape, b.position, b.rotation)
		return p, q, b.shape.Radius
	}
	return b.position, b.position, b.shape.Radius
}

func bodyOBB(b *Body) OBB {
	return NewOBB(b.position, b.shape.HalfExtents, b.rotation)
}

// collide dispatches on the shape pair.
func collide(a, b *Body) (contact, bool) {
	ka, kb := a.shape.Kind, b.shape.Kind
	switch {
	case ka == Heightfield && kb == Heightfield:
		return contact{}, false
	case kb == Heightfield:
		return collideHeightfield(a, b)
	case ka == Heightfield:
		c, ok := collideHeightfield(b, a)
		return c.flipped(), ok
	case ka == Cuboid && kb == Cuboid:
		return collideBoxes(a, b)
	case kb == Cuboid:
		return collideBoxRound(b, a)
	case ka == Cuboid:
		c, ok := collideBoxRound(a, b)
		return c.flipped(), ok
	default:
		return collideRound(a, b)
	}
}

// collideRound handles ball/capsule pairs via closest points between segments.
func collideRound(a, b *Body) (contact, bool) {
	pa, qa, ra := roundSegment(a)
	pb, qb, rb := roundSegment(b)
	ca, cb := closestPointsSegments(pa, qa, pb, qb)

	d := ca.Sub(cb)
	dist := d.Len()
	if dist >= ra+rb {
		return contact{}, false
	}
	n := normalizeOr(d, mgl32.Vec3{0, 1, 0})
	depth := ra + rb - dist
	return contact{
		normal: n,
		depth:  depth,
		point:  cb.Add(n.Mul(rb - depth/2)),
	}, true
}

// collideBoxRound returns a contact whose normal points from the box towards
// the round body.
func collideBoxRound(box, round *Body) (contact, bool) {
	o := bodyOBB(box)
	p, q, r := roundSegment(round)

	s := closestPointOnSegment(p, q, o.Center)
	for i := 0; i < 2; i++ {
		s = closestPointOnSegment(p, q, o.ClosestPoint(s))
	}

	n, depth, point, ok := o.sphereContact(s, r)
	if !ok {
		return contact{}, false
	}
	return contact{normal: n, depth: depth, point: point}, true
}

func collideBoxes(a, b *Body) (contact, bool) {
	oa, ob := bodyOBB(a), bodyOBB(b)
	axis, depth, ok := oa.penetration(ob)
	if !ok {
		return contact{}, false
	}
	onB := ob.ClosestPoint(oa.Center)
	onA := oa.ClosestPoint(onB)
	return contact{
		normal: axis,
		depth:  depth,
		point:  onA.Add(onB).Mul(0.5),
	}, true
}

// collideHeightfield tests the sample points of a against the field body f.
// The normal points from the field towards a.
func collideHeightfield(a, f *Body) (contact, bool) {
	field := f.shape.Field
	var best contact
	found := false

	probe := func(pt mgl32.Vec3, r float32) {
		local := pt.Sub(f.position)
		h, ok := field.HeightAt(local.X(), local.Z())
		if !ok {
			return
		}
		n := field.NormalAt(local.X(), local.Z())
		gap := (local.Y() - h) * n.Y()
		depth := r - gap
		if depth <= 0 || (found && depth <= best.depth) {
			return
		}
		found = true
		best = contact{
			normal: n,
			depth:  depth,
			point:  mgl32.Vec3{pt.X(), f.position.Y() + h, pt.Z()},
		}
	}

	switch a.shape.Kind {
	case Ball, Capsule:
		p, q, r := roundSegment(a)
		probe(p, r)
		probe(q, r)
	case Cuboid:
		o := bodyOBB(a)
		hx, hy, hz := o.HalfSize.X(), o.HalfSize.Y(), o.HalfSize.Z()
		for _, sx := range [2]float32{-1, 1} {
			for _, sy := range [2]float32{-1, 1} {
				for _, sz := range [2]float32{-1, 1} {
					probe(o.toWorld(mgl32.Vec3{sx * hx, sy * hy, sz * hz}), 0)
				}
			}
		}
	case Heightfield:
	}
	return best, found
}
