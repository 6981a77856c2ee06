package engine

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDispatcherRoutesByKind(t *testing.T) {
	var d Dispatcher
	var collisions []CollisionEvent
	var players []PlayerEvent
	anyCount := 0

	d.Collision.AddListener(func(ev CollisionEvent) { collisions = append(collisions, ev) })
	d.Player.AddListener(func(ev PlayerEvent) { players = append(players, ev) })
	d.Any.AddListener(func(Event) { anyCount++ })

	d.Dispatch([]Event{
		{Kind: EventCollision, A: 3, B: NoEntity, Impulse: 4.5, Position: mgl32.Vec3{1, 0, 2}},
		{Kind: EventJump, Entity: 1},
		{Kind: EventLand, Entity: 1, Intensity: 0.5},
	})

	if anyCount != 3 {
		t.Errorf("Expected 3 events on Any, got %d", anyCount)
	}
	if len(collisions) != 1 || collisions[0].A != 3 || collisions[0].Impulse != 4.5 {
		t.Errorf("Unexpected collision delivery: %+v", collisions)
	}
	if len(players) != 2 {
		t.Fatalf("Expected 2 player events, got %d", len(players))
	}
	if players[1].Kind != EventLand || players[1].Intensity != 0.5 {
		t.Errorf("Unexpected land event: %+v", players[1])
	}
}

func TestListenersIgnoreNil(t *testing.T) {
	var l Listeners[int]
	l.AddListener(nil)
	if l.GetListenerCount() != 0 {
		t.Errorf("Expected nil callback to be ignored, got %d listeners", l.GetListenerCount())
	}

	l.AddListener(func(int) {})
	l.RemoveAllListeners()
	if l.GetListenerCount() != 0 {
		t.Error("RemoveAllListeners should clear listeners")
	}
}

func TestIDAllocatorMonotonic(t *testing.T) {
	var a IDAllocator
	first := a.Next()
	second := a.Next()

	if first != 1 {
		t.Errorf("Expected first ID 1, got %d", first)
	}
	if second <= first {
		t.Errorf("Expected increasing IDs, got %d then %d", first, second)
	}
	if a.Last() != second {
		t.Errorf("Expected Last() %d, got %d", second, a.Last())
	}
}

func TestInputBoxDefaultsToZero(t *testing.T) {
	var box InputBox
	if got := box.Load(); got != (Input{}) {
		t.Errorf("Expected zero input, got %+v", got)
	}

	box.Set(Input{Forward: true, Turn: -0.5})
	got := box.Load()
	if !got.Forward || got.Turn != -0.5 {
		t.Errorf("Expected stored input, got %+v", got)
	}
}

func TestManualClockAdvance(t *testing.T) {
	epoch := time.Unix(0, 0)
	c := NewManualClock(epoch)
	c.Advance(250 * time.Millisecond)

	if ms := Millis(c.Now(), epoch); ms != 250 {
		t.Errorf("Expected 250ms, got %v", ms)
	}
}
