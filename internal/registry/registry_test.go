package registry

import (
	"errors"
	"testing"

	"floatsim/internal/engine"
	"floatsim/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

func spawnBall(t *testing.T, w *physics.World) *physics.Body {
	t.Helper()
	b, err := w.CreateBody(physics.DefaultBodyDesc(physics.Dynamic), physics.NewBall(0.5))
	if err != nil {
		t.Fatalf("CreateBody failed: %v", err)
	}
	return b
}

func TestRegisterLookupReverse(t *testing.T) {
	w := physics.NewWorld(mgl32.Vec3{})
	r := New(w)
	body := spawnBall(t, w)

	if err := r.Register(5, Entry{Body: body, Slot: 2}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	e, ok := r.Lookup(5)
	if !ok || e.Body != body || e.Slot != 2 {
		t.Errorf("Unexpected entry %+v (ok=%v)", e, ok)
	}
	if e.Collider != body.Collider() {
		t.Errorf("Expected collider to default to body collider %d, got %d", body.Collider(), e.Collider)
	}

	id, ok := r.EntityForCollider(body.Collider())
	if !ok || id != 5 {
		t.Errorf("Expected reverse lookup to give 5, got %d (ok=%v)", id, ok)
	}
}

func TestDuplicateAndInvalidRegistration(t *testing.T) {
	w := physics.NewWorld(mgl32.Vec3{})
	r := New(w)
	body := spawnBall(t, w)

	r.Register(1, Entry{Body: body})
	if err := r.Register(1, Entry{Body: body}); !errors.Is(err, ErrDuplicateEntity) {
		t.Errorf("Expected ErrDuplicateEntity, got %v", err)
	}
	if err := r.Register(engine.NoEntity, Entry{Body: body}); !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("Expected ErrInvalidEntity, got %v", err)
	}
}

func TestSharedColliderIsRejected(t *testing.T) {
	w := physics.NewWorld(mgl32.Vec3{})
	r := New(w)
	body := spawnBall(t, w)

	if err := r.Register(1, Entry{Body: body}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(2, Entry{Body: body}); !errors.Is(err, ErrColliderTaken) {
		t.Errorf("Expected ErrColliderTaken, got %v", err)
	}
	if _, ok := r.Lookup(2); ok {
		t.Error("Rejected entity should not be registered")
	}
	if id, ok := r.EntityForCollider(body.Collider()); !ok || id != 1 {
		t.Errorf("Expected collider to stay with 1, got %d (ok=%v)", id, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", r.Len())
	}
}

func TestUnregisterRemovesBothDirectionsAndBody(t *testing.T) {
	w := physics.NewWorld(mgl32.Vec3{})
	r := New(w)
	body := spawnBall(t, w)
	r.Register(3, Entry{Body: body})

	got, ok := r.Unregister(3)
	if !ok || got != body {
		t.Fatal("Expected Unregister to return the body")
	}
	if _, ok := r.Lookup(3); ok {
		t.Error("Lookup should fail after unregister")
	}
	if _, ok := r.EntityForCollider(body.Collider()); ok {
		t.Error("Reverse lookup should fail after unregister")
	}
	if w.BodyCount() != 0 {
		t.Errorf("Expected body removed from world, %d remain", w.BodyCount())
	}

	// Stale removal is a no-op.
	if _, ok := r.Unregister(3); ok {
		t.Error("Second unregister should report false")
	}
}

func TestForEachAscendingOrder(t *testing.T) {
	w := physics.NewWorld(mgl32.Vec3{})
	r := New(w)
	for _, id := range []engine.EntityID{9, 2, 7, 4} {
		r.Register(id, Entry{Body: spawnBall(t, w)})
	}

	var seen []engine.EntityID
	r.ForEach(func(id engine.EntityID, _ Entry) { seen = append(seen, id) })

	want := []engine.EntityID{2, 4, 7, 9}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Position %d: expected %d, got %d", i, want[i], seen[i])
		}
	}
}

func TestClear(t *testing.T) {
	w := physics.NewWorld(mgl32.Vec3{})
	r := New(w)
	body := spawnBall(t, w)
	r.Register(1, Entry{Body: body})

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Len())
	}
	if _, ok := r.EntityForCollider(body.Collider()); ok {
		t.Error("Reverse map should be cleared")
	}
	if w.BodyCount() != 1 {
		t.Error("Clear should not touch the world")
	}
}
