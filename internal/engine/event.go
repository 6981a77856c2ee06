package engine

import (
	"github.com/go-gl/mathgl/mgl32"
)

// EventKind tags the payload carried by an Event.
type EventKind uint8

const (
	EventCollision EventKind = iota + 1
	EventJump
	EventLand
)

func (k EventKind) String() string {
	switch k {
	case EventCollision:
		return "collision"
	case EventJump:
		return "jump"
	case EventLand:
		return "land"
	default:
		return "unknown"
	}
}

// Event is the single message type emitted by the physics context.
// Collision events fill A, B and Impulse; jump/land events fill Entity and Intensity.
type Event struct {
	Kind     EventKind
	Tick     uint64
	Position mgl32.Vec3

	A, B    EntityID
	Impulse float32

	Entity    EntityID
	Intensity float32
}

// CollisionEvent is the subscriber view of an EventCollision.
// A or B is NoEntity when that side is untracked (ground, terrain).
type CollisionEvent struct {
	A, B     EntityID
	Position mgl32.Vec3
	Impulse  float32
}

// PlayerEvent is the subscriber view of jump and land events.
type PlayerEvent struct {
	Kind      EventKind
	Entity    EntityID
	Position  mgl32.Vec3
	Intensity float32
}

// Listeners is a multi-cast list of callbacks taking one argument.
type Listeners[T any] struct {
	listeners []func(T)
}

// AddListener adds a callback to be invoked when the event fires
func (l *Listeners[T]) AddListener(callback func(T)) {
	if callback == nil {
		return
	}
	l.listeners = append(l.listeners, callback)
}

// RemoveAllListeners clears all listeners
func (l *Listeners[T]) RemoveAllListeners() {
	l.listeners = nil
}

// Invoke calls all registered listeners
func (l *Listeners[T]) Invoke(arg T) {
	for _, listener := range l.listeners {
		listener(arg)
	}
}

// GetListenerCount returns the number of registered listeners
func (l *Listeners[T]) GetListenerCount() int {
	return len(l.listeners)
}

// Dispatcher fans polled events out to typed subscribers.
// It is driven by whichever goroutine polls the queue; it holds no lock.
type Dispatcher struct {
	Collision Listeners[CollisionEvent]
	Player    Listeners[PlayerEvent]
	Any       Listeners[Event]
}

// Dispatch delivers each event to the matching listener list in order.
func (d *Dispatcher) Dispatch(events []Event) {
	for _, ev := range events {
		d.Any.Invoke(ev)
		switch ev.Kind {
		case EventCollision:
			d.Collision.Invoke(CollisionEvent{A: ev.A, B: ev.B, Position: ev.Position, Impulse: ev.Impulse})
		case EventJump, EventLand:
			d.Player.Invoke(PlayerEvent{Kind: ev.Kind, Entity: ev.Entity, Position: ev.Position, Intensity: ev.Intensity})
		}
	}
}
