package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-6

// clamp restricts a value to a range
func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

func sqrtf(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

func lenSq(v mgl32.Vec3) float32 {
	return v.Dot(v)
}

// normalizeOr returns v normalized, or fallback when v has no usable length.
func normalizeOr(v, fallback mgl32.Vec3) mgl32.Vec3 {
	l := v.Len()
	if l < epsilon {
		return fallback
	}
	return v.Mul(1 / l)
}

// closestPointOnSegment returns the point on [a, b] nearest to p.
func closestPointOnSegment(a, b, p mgl32.Vec3) mgl32.Vec3 {
	ab := b.Sub(a)
	denom := lenSq(ab)
	if denom < epsilon {
		return a
	}
	t := clamp(p.Sub(a).Dot(ab)/denom, 0, 1)
	return a.Add(ab.Mul(t))
}

// closestPointsSegments returns the nearest points between segments [p1,q1] and [p2,q2].
func closestPointsSegments(p1, q1, p2, q2 mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := lenSq(d1)
	e := lenSq(d2)
	f := d2.Dot(r)

	var s, t float32
	switch {
	case a < epsilon && e < epsilon:
		return p1, p2
	case a < epsilon:
		t = clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e < epsilon {
			s = clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom > epsilon {
				s = clamp((b*f-c*e)/denom, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = clamp((b-c)/a, 0, 1)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

// integrateRotation advances q by angular velocity w (rad/s) over dt.
func integrateRotation(q mgl32.Quat, w mgl32.Vec3, dt float32) mgl32.Quat {
	if lenSq(w) < epsilon {
		return q
	}
	spin := mgl32.Quat{W: 0, V: w}.Mul(q)
	return mgl32.Quat{
		W: q.W + 0.5*dt*spin.W,
		V: q.V.Add(spin.V.Mul(0.5 * dt)),
	}.Normalize()
}
