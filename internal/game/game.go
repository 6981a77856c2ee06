// Package game is the session object that owns the physics world, the
// transform bus and the stepper, and exposes the orchestrator API.
package game

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"floatsim/internal/bus"
	"floatsim/internal/collision"
	"floatsim/internal/config"
	"floatsim/internal/controller"
	"floatsim/internal/engine"
	"floatsim/internal/physics"
	"floatsim/internal/registry"
	"floatsim/internal/stepper"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrDisposed     = errors.New("game: session disposed")
	ErrPlayerExists = errors.New("game: player controller already spawned")
)

// BodyConfig describes the rigid body behind a spawned entity. Desc, when
// set, replaces the defaults for Kind; its Position and Rotation are taken
// from the spawn transform.
type BodyConfig struct {
	Kind  physics.BodyKind
	Shape physics.Shape
	Desc  *physics.BodyDesc
}

func (bc BodyConfig) desc(t engine.Transform) physics.BodyDesc {
	d := physics.DefaultBodyDesc(bc.Kind)
	if bc.Desc != nil {
		d = *bc.Desc
		d.Kind = bc.Kind
	}
	d.Position = t.Position
	d.Rotation = t.Rotation
	if d.Rotation == (mgl32.Quat{}) {
		d.Rotation = mgl32.QuatIdent()
	}
	return d
}

// Game is one simulation session. Spawning and removal may be called from
// any goroutine; they are serialized against the physics tick.
type Game struct {
	cfg   config.Config
	clock engine.Clock

	updateMutex sync.Mutex
	ids         engine.IDAllocator
	world       *physics.World
	registry    *registry.Registry
	bus         *bus.Bus
	events      *engine.Queue
	input       *engine.InputBox
	stepper     *stepper.Stepper
	dispatcher  engine.Dispatcher

	player   engine.EntityID
	disposed atomic.Bool
}

// New builds a stopped session. A nil clock uses wall time.
func New(cfg config.Config, clock engine.Clock) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = engine.SystemClock{}
	}

	g := &Game{
		cfg:    cfg,
		clock:  clock,
		world:  physics.NewWorld(mgl32.Vec3(cfg.World.Gravity)),
		bus:    bus.New(cfg.Bus.MaxEntities),
		events: engine.NewQueue(),
		input:  &engine.InputBox{},
	}
	g.registry = registry.New(g.world)
	g.stepper = stepper.New(cfg.Stepper, stepper.Deps{
		World:    g.world,
		Registry: g.registry,
		Bus:      g.bus,
		Tracker:  collision.NewTracker(cfg.Collision),
		Events:   g.events,
		Input:    g.input,
		Clock:    clock,
		Lock:     &g.updateMutex,
	})
	return g, nil
}

// RunSafe runs fn with the tick excluded.
func (g *Game) RunSafe(fn func()) {
	g.updateMutex.Lock()
	defer g.updateMutex.Unlock()
	fn()
}

// SpawnEntity creates a body and publishes it on the bus. When the bus is
// full the body is removed again and the wrapped ErrCapacityExhausted returned.
func (g *Game) SpawnEntity(t engine.Transform, bc BodyConfig) (engine.EntityID, error) {
	if g.disposed.Load() {
		return engine.NoEntity, ErrDisposed
	}
	var id engine.EntityID
	var err error
	g.RunSafe(func() {
		id, err = g.spawnLocked(bc.desc(t), bc.Shape)
	})
	return id, err
}

// SpawnPlayerController spawns the capsule and installs the controller that
// drives it. Only one player exists per session.
func (g *Game) SpawnPlayerController(t engine.Transform, cfg controller.Config) (engine.EntityID, error) {
	if g.disposed.Load() {
		return engine.NoEntity, ErrDisposed
	}
	if err := cfg.Validate(); err != nil {
		return engine.NoEntity, err
	}

	var id engine.EntityID
	var err error
	g.RunSafe(func() {
		if g.player != engine.NoEntity {
			err = ErrPlayerExists
			return
		}
		rot := t.Rotation
		if rot == (mgl32.Quat{}) {
			rot = mgl32.QuatIdent()
		}
		id, err = g.spawnLocked(cfg.BodyDesc(t.Position, rot), cfg.Shape())
		if err != nil {
			return
		}
		e, _ := g.registry.Lookup(id)
		g.player = id
		g.stepper.SetController(controller.New(g.world, e.Body, id, cfg))
	})
	return id, err
}

func (g *Game) spawnLocked(desc physics.BodyDesc, shape physics.Shape) (engine.EntityID, error) {
	body, err := g.world.CreateBody(desc, shape)
	if err != nil {
		return engine.NoEntity, fmt.Errorf("spawn: %w", err)
	}

	id := g.ids.Next()
	slot, err := g.bus.RegisterEntity(id)
	if err != nil {
		g.world.RemoveBody(body.Handle())
		return engine.NoEntity, fmt.Errorf("spawn: %w", err)
	}
	if err := g.registry.Register(id, registry.Entry{Body: body, Slot: slot}); err != nil {
		g.bus.UnregisterEntity(id)
		g.world.RemoveBody(body.Handle())
		return engine.NoEntity, fmt.Errorf("spawn: %w", err)
	}

	pos, rot := body.Pose()
	g.bus.WriteTransform(slot, pos, rot)
	return id, nil
}

// RemoveEntity tears an entity down in the bus, registry and world. Unknown
// ids are a no-op.
func (g *Game) RemoveEntity(id engine.EntityID) bool {
	if g.disposed.Load() {
		return false
	}
	removed := false
	g.RunSafe(func() {
		e, ok := g.registry.Lookup(id)
		if !ok {
			return
		}
		g.bus.UnregisterEntity(id)
		g.registry.Unregister(id)
		g.stepper.Forget(e.Body.Handle())
		if id == g.player {
			g.player = engine.NoEntity
			g.stepper.SetController(nil)
		}
		removed = true
	})
	return removed
}

// SetPlayerInput replaces the input sampled by the next tick.
func (g *Game) SetPlayerInput(in engine.Input) {
	g.input.Set(in)
}

func (g *Game) Start()  { g.stepper.Start() }
func (g *Game) Pause()  { g.stepper.Pause() }
func (g *Game) Resume() { g.stepper.Resume() }

// Dispose stops the stepper and clears session state. Later calls are no-ops.
func (g *Game) Dispose() {
	if !g.disposed.CompareAndSwap(false, true) {
		return
	}
	g.stepper.Dispose()
	g.RunSafe(func() {
		g.player = engine.NoEntity
		g.events.Consume()
	})
	log.Printf("Game: disposed")
}

// Disposed reports whether Dispose has run.
func (g *Game) Disposed() bool { return g.disposed.Load() }

// Events drains the pending events.
func (g *Game) Events() []engine.Event {
	return g.events.Consume()
}

// DispatchEvents drains pending events into the subscriber lists and returns
// how many were delivered.
func (g *Game) DispatchEvents() int {
	events := g.events.Consume()
	g.dispatcher.Dispatch(events)
	return len(events)
}

// Dispatcher is where collision and player listeners subscribe.
func (g *Game) Dispatcher() *engine.Dispatcher { return &g.dispatcher }

// Bus returns the writer handle. Readers must Attach their own handle.
func (g *Game) Bus() *bus.Bus { return g.bus }

// Player returns the player entity, or NoEntity.
func (g *Game) Player() engine.EntityID {
	g.updateMutex.Lock()
	defer g.updateMutex.Unlock()
	return g.player
}

// Controller returns the player controller, if any. Read it under RunSafe
// while the stepper is running.
func (g *Game) Controller() *controller.Controller { return g.stepper.Controller() }

// Body returns the body of id. Use under RunSafe while the stepper is running.
func (g *Game) Body(id engine.EntityID) (*physics.Body, bool) {
	e, ok := g.registry.Lookup(id)
	if !ok {
		return nil, false
	}
	return e.Body, true
}

// EntityCount returns the number of live entities.
func (g *Game) EntityCount() int {
	g.updateMutex.Lock()
	defer g.updateMutex.Unlock()
	return g.registry.Len()
}

func (g *Game) Config() config.Config     { return g.cfg }
func (g *Game) World() *physics.World     { return g.world }
func (g *Game) Stepper() *stepper.Stepper { return g.stepper }
func (g *Game) Epoch() time.Time          { return g.stepper.Epoch() }
func (g *Game) Clock() engine.Clock       { return g.clock }
func (g *Game) Interval() time.Duration   { return g.stepper.Interval() }

// Step advances the session by one tick at the clock's current time. It is
// meant for headless drivers that do not call Start.
func (g *Game) Step() error {
	if g.disposed.Load() {
		return ErrDisposed
	}
	g.stepper.Tick(g.clock.Now())
	return nil
}
