package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func newTestWorld(t *testing.T) (*World, *Body) {
	t.Helper()
	w := NewWorld(mgl32.Vec3{0, -20, 0})
	desc := DefaultBodyDesc(Static)
	desc.Position = mgl32.Vec3{0, -0.5, 0}
	ground, err := w.CreateBody(desc, NewCuboid(20, 0.5, 20))
	if err != nil {
		t.Fatalf("CreateBody ground failed: %v", err)
	}
	return w, ground
}

func dropBall(t *testing.T, w *World, y float32) *Body {
	t.Helper()
	desc := DefaultBodyDesc(Dynamic)
	desc.Position = mgl32.Vec3{0, y, 0}
	desc.Restitution = 0
	desc.Mass = 1
	ball, err := w.CreateBody(desc, NewBall(0.5))
	if err != nil {
		t.Fatalf("CreateBody ball failed: %v", err)
	}
	return ball
}

func TestBallSettlesOnGround(t *testing.T) {
	w, ground := newTestWorld(t)
	ball := dropBall(t, w, 3)

	var starts []CollisionStart
	for i := 0; i < 180; i++ {
		w.Step(1.0 / 60.0)
		starts = append(starts, w.DrainCollisionEvents()...)
	}

	y := ball.Translation().Y()
	if math.Abs(float64(y-0.5)) > 0.05 {
		t.Errorf("Expected ball to rest at y≈0.5, got %v", y)
	}

	if len(starts) != 1 {
		t.Fatalf("Expected exactly 1 collision start, got %d", len(starts))
	}
	ev := starts[0]
	if ev.A != ball.Collider() || ev.B != ground.Collider() {
		t.Errorf("Unexpected pair %d/%d", ev.A, ev.B)
	}
	if ev.VelocityA.Y() > -1 {
		t.Errorf("Expected pre-impact downward velocity, got %v", ev.VelocityA)
	}
}

func TestRestingBodyFallsAsleepAndWakes(t *testing.T) {
	w, _ := newTestWorld(t)
	ball := dropBall(t, w, 0.6)

	for i := 0; i < 120; i++ {
		w.Step(1.0 / 60.0)
	}
	if !ball.IsSleeping() {
		t.Fatal("Expected resting ball to fall asleep")
	}

	pos := ball.Translation()
	w.Step(1.0 / 60.0)
	if !ball.Translation().ApproxEqualThreshold(pos, 1e-6) {
		t.Error("Sleeping body should not move")
	}

	ball.ApplyImpulse(mgl32.Vec3{0, 5, 0}, true)
	if ball.IsSleeping() {
		t.Error("ApplyImpulse with wake should wake the body")
	}
	w.Step(1.0 / 60.0)
	if ball.Translation().Y() <= pos.Y() {
		t.Error("Woken body should move upward after impulse")
	}
}

func TestCastRayHitsGroundAndHonorsExclude(t *testing.T) {
	w, ground := newTestWorld(t)

	hit, ok := w.CastRay(mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, -1, 0}, 10, 0)
	if !ok {
		t.Fatal("Expected ray to hit ground")
	}
	if math.Abs(float64(hit.Distance-5)) > 1e-4 {
		t.Errorf("Expected distance 5, got %v", hit.Distance)
	}
	if hit.Collider != ground.Collider() {
		t.Errorf("Expected ground collider %d, got %d", ground.Collider(), hit.Collider)
	}
	if !hit.Normal.ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Errorf("Expected up normal, got %v", hit.Normal)
	}

	if _, ok := w.CastRay(mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, -1, 0}, 4, 0); ok {
		t.Error("Ray shorter than the gap should miss")
	}
	if _, ok := w.CastRay(mgl32.Vec3{0, 5, 0}, mgl32.Vec3{0, -1, 0}, 10, ground.Collider()); ok {
		t.Error("Excluded collider should not be hit")
	}
}

func TestCastRayCapsuleAndRotatedBox(t *testing.T) {
	w := NewWorld(mgl32.Vec3{})
	capsule, _ := w.CreateBody(DefaultBodyDesc(Static), NewCapsule(0.5, 0.4))

	hit, ok := w.CastRay(mgl32.Vec3{-5, 0, 0}, mgl32.Vec3{1, 0, 0}, 10, 0)
	if !ok || hit.Collider != capsule.Collider() {
		t.Fatal("Expected ray to hit capsule side")
	}
	if math.Abs(float64(hit.Distance-4.6)) > 1e-4 {
		t.Errorf("Expected distance 4.6, got %v", hit.Distance)
	}

	hit, ok = w.CastRay(mgl32.Vec3{-5, 0.7, 0}, mgl32.Vec3{1, 0, 0}, 10, 0)
	want := 5 - float32(math.Sqrt(0.16-0.04))
	if !ok || math.Abs(float64(hit.Distance-want)) > 1e-3 {
		t.Errorf("Expected cap hit at %v, got %v (ok=%v)", want, hit.Distance, ok)
	}

	w.RemoveBody(capsule.Handle())
	desc := DefaultBodyDesc(Static)
	desc.Rotation = mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 1, 0})
	w.CreateBody(desc, NewCuboid(1, 1, 1))

	hit, ok = w.CastRay(mgl32.Vec3{-5, 0, 0}, mgl32.Vec3{1, 0, 0}, 10, 0)
	want = 5 - float32(math.Sqrt2)
	if !ok || math.Abs(float64(hit.Distance-want)) > 1e-3 {
		t.Errorf("Expected rotated box hit at %v, got %v (ok=%v)", want, hit.Distance, ok)
	}
}

func TestHeightFieldQueries(t *testing.T) {
	field := NewHeightField(5, 5, 8, 8, func(x, z float32) float32 { return 0.5 * x })

	h, ok := field.HeightAt(1, 0)
	if !ok || math.Abs(float64(h-0.5)) > 1e-5 {
		t.Errorf("Expected height 0.5, got %v (ok=%v)", h, ok)
	}
	if _, ok := field.HeightAt(10, 0); ok {
		t.Error("Expected query outside the field to fail")
	}

	n := field.NormalAt(0, 0)
	want := mgl32.Vec3{-0.5, 1, 0}.Normalize()
	if !n.ApproxEqualThreshold(want, 1e-4) {
		t.Errorf("Expected normal %v, got %v", want, n)
	}

	w := NewWorld(mgl32.Vec3{})
	w.CreateBody(DefaultBodyDesc(Static), NewHeightfieldShape(field))
	hit, ok := w.CastRay(mgl32.Vec3{2, 5, 0}, mgl32.Vec3{0, -1, 0}, 10, 0)
	if !ok || math.Abs(float64(hit.Point.Y()-1)) > 1e-3 {
		t.Errorf("Expected ray to hit field at y=1, got %v (ok=%v)", hit.Point, ok)
	}
}

func TestBallRestsOnHeightfield(t *testing.T) {
	w := NewWorld(mgl32.Vec3{0, -20, 0})
	field := NewHeightField(9, 9, 16, 16, nil)
	if _, err := w.CreateBody(DefaultBodyDesc(Static), NewHeightfieldShape(field)); err != nil {
		t.Fatalf("CreateBody heightfield failed: %v", err)
	}
	ball := dropBall(t, w, 2)

	for i := 0; i < 180; i++ {
		w.Step(1.0 / 60.0)
	}
	if y := ball.Translation().Y(); math.Abs(float64(y-0.5)) > 0.05 {
		t.Errorf("Expected ball to rest at y≈0.5 on field, got %v", y)
	}
}

func TestBoxLandsOnBox(t *testing.T) {
	w, _ := newTestWorld(t)
	desc := DefaultBodyDesc(Dynamic)
	desc.Position = mgl32.Vec3{0, 3, 0}
	desc.Restitution = 0
	box, _ := w.CreateBody(desc, NewCuboid(0.5, 0.5, 0.5))

	for i := 0; i < 180; i++ {
		w.Step(1.0 / 60.0)
	}
	if y := box.Translation().Y(); math.Abs(float64(y-0.5)) > 0.05 {
		t.Errorf("Expected box to rest at y≈0.5, got %v", y)
	}
}

func TestBallsCollideWithEachOther(t *testing.T) {
	w := NewWorld(mgl32.Vec3{})
	desc := DefaultBodyDesc(Dynamic)
	desc.Position = mgl32.Vec3{-1, 0, 0}
	desc.Velocity = mgl32.Vec3{3, 0, 0}
	a, _ := w.CreateBody(desc, NewBall(0.5))
	desc.Position = mgl32.Vec3{1, 0, 0}
	desc.Velocity = mgl32.Vec3{}
	b, _ := w.CreateBody(desc, NewBall(0.5))

	var starts []CollisionStart
	for i := 0; i < 60; i++ {
		w.Step(1.0 / 60.0)
		starts = append(starts, w.DrainCollisionEvents()...)
	}
	if len(starts) == 0 {
		t.Fatal("Expected a collision start between the balls")
	}
	rel := starts[0].VelocityA.Sub(starts[0].VelocityB).Len()
	if rel < 2 {
		t.Errorf("Expected contact-time relative speed near 3, got %v", rel)
	}
	if b.LinearVelocity().X() <= 0 {
		t.Errorf("Expected struck ball to move +X, got %v", b.LinearVelocity())
	}
	if a.LinearVelocity().X() >= 3 {
		t.Errorf("Expected striking ball to slow down, got %v", a.LinearVelocity())
	}
}

func TestCreateBodyValidation(t *testing.T) {
	w := NewWorld(mgl32.Vec3{})

	if _, err := w.CreateBody(DefaultBodyDesc(Dynamic), NewBall(0)); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape for zero radius, got %v", err)
	}
	if _, err := w.CreateBody(DefaultBodyDesc(Dynamic), Shape{Kind: ShapeKind(42)}); !errors.Is(err, ErrInvalidShape) {
		t.Errorf("Expected ErrInvalidShape for unknown kind, got %v", err)
	}
	field := NewHeightField(2, 2, 1, 1, nil)
	if _, err := w.CreateBody(DefaultBodyDesc(Dynamic), NewHeightfieldShape(field)); !errors.Is(err, ErrInvalidBody) {
		t.Errorf("Expected ErrInvalidBody for dynamic heightfield, got %v", err)
	}
	if _, err := w.CreateBody(BodyDesc{Kind: BodyKind(9)}, NewBall(1)); !errors.Is(err, ErrInvalidBody) {
		t.Errorf("Expected ErrInvalidBody for unknown body kind, got %v", err)
	}
	if w.BodyCount() != 0 {
		t.Errorf("Failed creations should not add bodies, got %d", w.BodyCount())
	}
}

func TestRemoveBody(t *testing.T) {
	w, ground := newTestWorld(t)
	ball := dropBall(t, w, 0.4)
	w.Step(1.0 / 60.0)

	removed, ok := w.RemoveBody(ball.Handle())
	if !ok || removed != ball {
		t.Fatal("Expected RemoveBody to return the ball")
	}
	if w.BodyForCollider(ball.Collider()) != nil {
		t.Error("Collider lookup should fail after removal")
	}
	if len(w.DrainCollisionEvents()) != 0 {
		t.Error("Pending events for a removed body should be dropped")
	}
	if _, ok := w.RemoveBody(ball.Handle()); ok {
		t.Error("Second removal should report false")
	}
	if w.BodyCount() != 1 || w.Body(ground.Handle()) == nil {
		t.Error("Ground should remain")
	}
}

func TestSetVelocityOnStaticIgnored(t *testing.T) {
	w, ground := newTestWorld(t)
	ground.SetLinearVelocity(mgl32.Vec3{1, 0, 0}, true)
	ground.ApplyImpulse(mgl32.Vec3{0, 10, 0}, true)
	w.Step(1.0 / 60.0)
	if ground.LinearVelocity() != (mgl32.Vec3{}) {
		t.Errorf("Static body should not take velocity, got %v", ground.LinearVelocity())
	}
}

func TestContactCountTracksTouchingPairs(t *testing.T) {
	w, _ := newTestWorld(t)
	desc := DefaultBodyDesc(Dynamic)
	desc.Position = mgl32.Vec3{0, 2, 0}
	desc.Restitution = 0
	desc.CanSleep = false
	ball, err := w.CreateBody(desc, NewBall(0.5))
	if err != nil {
		t.Fatal(err)
	}

	if w.ContactCount() != 0 {
		t.Errorf("Expected no contacts before stepping, got %d", w.ContactCount())
	}
	for i := 0; i < 120; i++ {
		w.Step(1.0 / 60.0)
	}
	if w.ContactCount() != 1 {
		t.Errorf("Expected the resting ball to touch the ground, got %d pairs", w.ContactCount())
	}
	w.LogContacts()

	w.RemoveBody(ball.Handle())
	if w.ContactCount() != 0 {
		t.Errorf("Expected removal to drop the contact, got %d pairs", w.ContactCount())
	}
}
