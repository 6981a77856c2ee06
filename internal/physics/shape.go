package physics

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// BodyKind decides how a body takes part in the simulation.
type BodyKind uint8

const (
	Static BodyKind = iota
	Dynamic
	Kinematic
)

func (k BodyKind) String() string {
	switch k {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case Kinematic:
		return "kinematic"
	default:
		return fmt.Sprintf("BodyKind(%d)", uint8(k))
	}
}

// ShapeKind selects the collider geometry.
type ShapeKind uint8

const (
	Cuboid ShapeKind = iota
	Ball
	Capsule
	Heightfield
)

func (k ShapeKind) String() string {
	switch k {
	case Cuboid:
		return "cuboid"
	case Ball:
		return "ball"
	case Capsule:
		return "capsule"
	case Heightfield:
		return "heightfield"
	default:
		return fmt.Sprintf("ShapeKind(%d)", uint8(k))
	}
}

var (
	ErrInvalidShape = errors.New("physics: invalid shape")
	ErrInvalidBody  = errors.New("physics: invalid body")
)

// Shape is a closed variant over the supported collider geometries.
// Only the fields of the active Kind are meaningful.
type Shape struct {
	Kind ShapeKind

	HalfExtents mgl32.Vec3 // Cuboid
	Radius      float32    // Ball, Capsule
	HalfHeight  float32    // Capsule: half length of the inner segment along local Y
	Field       *HeightField
}

// NewCuboid returns a box with the given half extents.
func NewCuboid(hx, hy, hz float32) Shape {
	return Shape{Kind: Cuboid, HalfExtents: mgl32.Vec3{hx, hy, hz}}
}

// NewBall returns a sphere.
func NewBall(radius float32) Shape {
	return Shape{Kind: Ball, Radius: radius}
}

// NewCapsule returns a Y-aligned capsule; total height is 2*(halfHeight+radius).
func NewCapsule(halfHeight, radius float32) Shape {
	return Shape{Kind: Capsule, HalfHeight: halfHeight, Radius: radius}
}

// NewHeightfieldShape wraps a height field.
func NewHeightfieldShape(field *HeightField) Shape {
	return Shape{Kind: Heightfield, Field: field}
}

// Validate checks the parameters of the active variant.
func (s Shape) Validate() error {
	switch s.Kind {
	case Cuboid:
		if s.HalfExtents.X() <= 0 || s.HalfExtents.Y() <= 0 || s.HalfExtents.Z() <= 0 {
			return fmt.Errorf("cuboid half extents %v: %w", s.HalfExtents, ErrInvalidShape)
		}
	case Ball:
		if s.Radius <= 0 {
			return fmt.Errorf("ball radius %v: %w", s.Radius, ErrInvalidShape)
		}
	case Capsule:
		if s.Radius <= 0 || s.HalfHeight < 0 {
			return fmt.Errorf("capsule radius %v half height %v: %w", s.Radius, s.HalfHeight, ErrInvalidShape)
		}
	case Heightfield:
		if s.Field == nil {
			return fmt.Errorf("heightfield without data: %w", ErrInvalidShape)
		}
		return s.Field.validate()
	default:
		return fmt.Errorf("%v: %w", s.Kind, ErrInvalidShape)
	}
	return nil
}

// BoundingRadius is the radius of a sphere around the body origin enclosing the shape.
func (s Shape) BoundingRadius() float32 {
	switch s.Kind {
	case Cuboid:
		return s.HalfExtents.Len()
	case Ball:
		return s.Radius
	case Capsule:
		return s.HalfHeight + s.Radius
	case Heightfield:
		return s.Field.boundingRadius()
	}
	return 0
}

// Volume is used to derive a default mass.
func (s Shape) Volume() float32 {
	const pi = 3.14159265
	switch s.Kind {
	case Cuboid:
		return 8 * s.HalfExtents.X() * s.HalfExtents.Y() * s.HalfExtents.Z()
	case Ball:
		return 4.0 / 3.0 * pi * s.Radius * s.Radius * s.Radius
	case Capsule:
		r := s.Radius
		return pi*r*r*2*s.HalfHeight + 4.0/3.0*pi*r*r*r
	}
	return 0
}

// HeightField is a regular grid of heights centred on its body's origin.
// Heights are stored row-major, Rows along Z and Cols along X.
type HeightField struct {
	Rows, Cols int
	Heights    []float32
	Size       mgl32.Vec3 // X: extent along X, Y: height multiplier, Z: extent along Z
}

// NewHeightField samples fn over a rows×cols grid covering sizeX×sizeZ.
func NewHeightField(rows, cols int, sizeX, sizeZ float32, fn func(x, z float32) float32) *HeightField {
	h := &HeightField{
		Rows:    rows,
		Cols:    cols,
		Heights: make([]float32, rows*cols),
		Size:    mgl32.Vec3{sizeX, 1, sizeZ},
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, z := h.cellToLocal(r, c)
			if fn != nil {
				h.Heights[r*cols+c] = fn(x, z)
			}
		}
	}
	return h
}

func (h *HeightField) validate() error {
	if h.Rows < 2 || h.Cols < 2 {
		return fmt.Errorf("heightfield %dx%d needs at least 2x2 samples: %w", h.Rows, h.Cols, ErrInvalidShape)
	}
	if len(h.Heights) != h.Rows*h.Cols {
		return fmt.Errorf("heightfield has %d heights, want %d: %w", len(h.Heights), h.Rows*h.Cols, ErrInvalidShape)
	}
	if h.Size.X() <= 0 || h.Size.Z() <= 0 {
		return fmt.Errorf("heightfield size %v: %w", h.Size, ErrInvalidShape)
	}
	return nil
}

func (h *HeightField) boundingRadius() float32 {
	var maxAbs float32
	for _, v := range h.Heights {
		if a := absf(v * h.Size.Y()); a > maxAbs {
			maxAbs = a
		}
	}
	return mgl32.Vec3{h.Size.X() / 2, maxAbs, h.Size.Z() / 2}.Len()
}

func (h *HeightField) cellSize() (float32, float32) {
	return h.Size.X() / float32(h.Cols-1), h.Size.Z() / float32(h.Rows-1)
}

func (h *HeightField) cellToLocal(r, c int) (float32, float32) {
	dx, dz := h.cellSize()
	return -h.Size.X()/2 + float32(c)*dx, -h.Size.Z()/2 + float32(r)*dz
}

// Contains reports whether the local XZ point lies over the field.
func (h *HeightField) Contains(x, z float32) bool {
	return x >= -h.Size.X()/2 && x <= h.Size.X()/2 && z >= -h.Size.Z()/2 && z <= h.Size.Z()/2
}

// HeightAt bilinearly interpolates the surface height at local (x, z).
func (h *HeightField) HeightAt(x, z float32) (float32, bool) {
	if !h.Contains(x, z) {
		return 0, false
	}
	dx, dz := h.cellSize()
	fc := (x + h.Size.X()/2) / dx
	fr := (z + h.Size.Z()/2) / dz

	c0 := clampInt(int(fc), 0, h.Cols-2)
	r0 := clampInt(int(fr), 0, h.Rows-2)
	tx := clamp(fc-float32(c0), 0, 1)
	tz := clamp(fr-float32(r0), 0, 1)

	h00 := h.Heights[r0*h.Cols+c0]
	h10 := h.Heights[r0*h.Cols+c0+1]
	h01 := h.Heights[(r0+1)*h.Cols+c0]
	h11 := h.Heights[(r0+1)*h.Cols+c0+1]

	top := h00 + (h10-h00)*tx
	bottom := h01 + (h11-h01)*tx
	return (top + (bottom-top)*tz) * h.Size.Y(), true
}

// NormalAt estimates the surface normal at local (x, z) with central differences.
func (h *HeightField) NormalAt(x, z float32) mgl32.Vec3 {
	dx, dz := h.cellSize()
	ex, ez := dx*0.5, dz*0.5
	hl, _ := h.HeightAt(clamp(x-ex, -h.Size.X()/2, h.Size.X()/2), z)
	hr, _ := h.HeightAt(clamp(x+ex, -h.Size.X()/2, h.Size.X()/2), z)
	hd, _ := h.HeightAt(x, clamp(z-ez, -h.Size.Z()/2, h.Size.Z()/2))
	hu, _ := h.HeightAt(x, clamp(z+ez, -h.Size.Z()/2, h.Size.Z()/2))

	n := mgl32.Vec3{(hl - hr) / (2 * ex), 1, (hd - hu) / (2 * ez)}
	return normalizeOr(n, mgl32.Vec3{0, 1, 0})
}
