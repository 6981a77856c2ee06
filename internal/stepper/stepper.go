// Package stepper runs the fixed-interval physics tick: controller, distance
// sleeping, world step, collision filtering and publication to the bus.
package stepper

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"floatsim/internal/bus"
	"floatsim/internal/collision"
	"floatsim/internal/controller"
	"floatsim/internal/engine"
	"floatsim/internal/physics"
	"floatsim/internal/registry"
)

var ErrInvalidConfig = errors.New("stepper: invalid config")

// Config controls tick cadence and distance sleeping.
type Config struct {
	TickRate      float64 `json:"tickRate"`   // Hz
	MaxDeltaMs    float64 `json:"maxDeltaMs"` // dt cap after a stall
	SleepDistance float32 `json:"sleepDistance"`
	WakeDistance  float32 `json:"wakeDistance"`
	LogContacts   bool    `json:"logContacts"` // once per second
}

// DefaultConfig returns a 60 Hz tick with a 40/30 sleep/wake band.
func DefaultConfig() Config {
	return Config{
		TickRate:      60,
		MaxDeltaMs:    100,
		SleepDistance: 40,
		WakeDistance:  30,
	}
}

// Validate enforces a positive rate and sleep hysteresis.
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tick rate %v: %w", c.TickRate, ErrInvalidConfig)
	}
	if c.MaxDeltaMs <= 0 {
		return fmt.Errorf("max delta %v: %w", c.MaxDeltaMs, ErrInvalidConfig)
	}
	if c.SleepDistance <= c.WakeDistance || c.WakeDistance <= 0 {
		return fmt.Errorf("sleep distance %v must exceed wake distance %v: %w", c.SleepDistance, c.WakeDistance, ErrInvalidConfig)
	}
	return nil
}

// Interval is the tick period.
func (c Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickRate)
}

// Deps are the collaborators a stepper drives. World, Registry and Bus are required.
type Deps struct {
	World    *physics.World
	Registry *registry.Registry
	Bus      *bus.Bus
	Tracker  *collision.Tracker
	Events   *engine.Queue
	Input    *engine.InputBox
	Clock    engine.Clock
	Epoch    time.Time   // zero: Clock.Now() at construction
	Lock     sync.Locker // held for the whole tick when set
}

// Stepper owns the physics goroutine.
type Stepper struct {
	cfg        Config
	world      *physics.World
	registry   *registry.Registry
	bus        *bus.Bus
	tracker    *collision.Tracker
	events     *engine.Queue
	input      *engine.InputBox
	clock      engine.Clock
	lock       sync.Locker
	epoch      time.Time
	interval   time.Duration
	intervalMs float64

	player        *controller.Controller
	distanceSlept map[physics.BodyHandle]bool
	lastTick      time.Time
	resetDelta    atomic.Bool

	tickCount atomic.Uint64
	paused    atomic.Bool
	running   atomic.Bool
	disposed  atomic.Bool

	nextTickDeadline time.Time
	stopChan         chan struct{}
	stopOnce         sync.Once
	wg               sync.WaitGroup

	lastLogTime time.Time
}

// New builds a stepper. Missing required collaborators are programmer
// errors and panic.
func New(cfg Config, deps Deps) *Stepper {
	if deps.World == nil || deps.Registry == nil || deps.Bus == nil {
		panic("stepper: World, Registry and Bus must be constructed before the stepper")
	}
	if deps.Tracker == nil {
		deps.Tracker = collision.NewTracker(collision.DefaultConfig())
	}
	if deps.Events == nil {
		deps.Events = engine.NewQueue()
	}
	if deps.Input == nil {
		deps.Input = &engine.InputBox{}
	}
	if deps.Clock == nil {
		deps.Clock = engine.SystemClock{}
	}
	if deps.Epoch.IsZero() {
		deps.Epoch = deps.Clock.Now()
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultConfig().TickRate
	}
	interval := cfg.Interval()
	return &Stepper{
		cfg:           cfg,
		world:         deps.World,
		registry:      deps.Registry,
		bus:           deps.Bus,
		tracker:       deps.Tracker,
		events:        deps.Events,
		input:         deps.Input,
		clock:         deps.Clock,
		lock:          deps.Lock,
		epoch:         deps.Epoch,
		interval:      interval,
		intervalMs:    float64(interval) / float64(time.Millisecond),
		distanceSlept: make(map[physics.BodyHandle]bool),
		stopChan:      make(chan struct{}),
	}
}

func (s *Stepper) mustInit() {
	if s == nil || s.world == nil {
		panic("stepper: used before construction (use stepper.New)")
	}
}

// SetController installs the player controller. Call with the tick lock held
// or before Start.
func (s *Stepper) SetController(c *controller.Controller) {
	s.mustInit()
	s.player = c
	if c != nil {
		s.tracker.SetPlayer(c.Entity())
	} else {
		s.tracker.SetPlayer(engine.NoEntity)
	}
}

// Controller returns the installed player controller, if any.
func (s *Stepper) Controller() *controller.Controller {
	s.mustInit()
	return s.player
}

// Forget drops per-body bookkeeping for a removed body.
func (s *Stepper) Forget(h physics.BodyHandle) {
	s.mustInit()
	delete(s.distanceSlept, h)
}

// Epoch is the time origin of the published frame timing.
func (s *Stepper) Epoch() time.Time { return s.epoch }

// Interval is the tick period.
func (s *Stepper) Interval() time.Duration { return s.interval }

// Ticks reports completed steps.
func (s *Stepper) Ticks() uint64 { return s.tickCount.Load() }

// Paused reports whether ticking is suspended.
func (s *Stepper) Paused() bool { return s.paused.Load() }

// DistanceSleeping reports whether h was put to sleep by player distance.
func (s *Stepper) DistanceSleeping(h physics.BodyHandle) bool {
	return s.distanceSlept[h]
}

// Tick performs one physics step at time now. It is exported so headless
// drivers can advance the simulation deterministically.
func (s *Stepper) Tick(now time.Time) {
	s.mustInit()
	if s.disposed.Load() {
		return
	}
	if s.lock != nil {
		s.lock.Lock()
		defer s.lock.Unlock()
	}

	dt := s.delta(now)
	tick := s.tickCount.Load() + 1
	in := s.input.Load()

	// 1. Controller
	if s.player != nil {
		for _, ev := range s.player.Update(in, dt) {
			s.events.Push(engine.Event{
				Kind:      ev.Kind,
				Tick:      tick,
				Entity:    ev.Entity,
				Position:  ev.Position,
				Intensity: ev.Intensity,
			})
		}
		if e, ok := s.registry.Lookup(s.player.Entity()); ok {
			var bits uint32
			if s.player.Grounded() {
				bits |= bus.FlagGrounded
			}
			s.bus.WriteFlags(e.Slot, bits)
		}
	}

	// 2. Distance sleep/wake
	s.updateDistanceSleep()

	// 3. World
	s.world.Step(dt)
	if s.player != nil {
		s.player.PostStep(in)
	}
	if s.cfg.LogContacts {
		s.world.LogContacts()
	}

	// 4. Collisions
	nowMs := engine.Millis(now, s.epoch)
	for _, ev := range s.tracker.Process(s.world.DrainCollisionEvents(), s.registry, nowMs) {
		s.events.Push(engine.Event{
			Kind:     engine.EventCollision,
			Tick:     tick,
			A:        ev.A,
			B:        ev.B,
			Position: ev.Position,
			Impulse:  ev.Impulse,
		})
	}

	// 5. Publish
	var playerID engine.EntityID
	if s.player != nil {
		playerID = s.player.Entity()
	}
	s.registry.ForEach(func(id engine.EntityID, e registry.Entry) {
		pos, rot := e.Body.Pose()
		if !s.bus.WriteTransform(e.Slot, pos, rot) {
			return
		}
		if id != playerID {
			var bits uint32
			if e.Body.IsSleeping() {
				bits |= bus.FlagSleeping
			}
			s.bus.WriteFlags(e.Slot, bits)
		}
	})
	s.bus.WriteFrameTiming(nowMs, s.intervalMs)
	s.bus.SignalFrameComplete()
	s.tickCount.Add(1)
}

// delta returns the clamped step length in seconds.
func (s *Stepper) delta(now time.Time) float32 {
	nominal := s.interval.Seconds()
	first := s.lastTick.IsZero()
	reset := s.resetDelta.Swap(false)
	prev := s.lastTick
	s.lastTick = now
	if first || reset {
		return float32(nominal)
	}

	dt := now.Sub(prev).Seconds()
	if dt <= 0 {
		return float32(nominal)
	}
	if maxDt := s.cfg.MaxDeltaMs / 1000; dt > maxDt {
		if time.Since(s.lastLogTime) >= time.Second {
			s.lastLogTime = time.Now()
			log.Printf("Stepper: clamped %.1fms step to %.1fms", dt*1000, s.cfg.MaxDeltaMs)
		}
		dt = maxDt
	}
	return float32(dt)
}

// updateDistanceSleep sleeps far bodies and wakes those it slept once they
// come back within the smaller wake radius.
func (s *Stepper) updateDistanceSleep() {
	if s.player == nil {
		return
	}
	center := s.player.Position()
	sleepSq := s.cfg.SleepDistance * s.cfg.SleepDistance
	wakeSq := s.cfg.WakeDistance * s.cfg.WakeDistance

	s.registry.ForEach(func(id engine.EntityID, e registry.Entry) {
		b := e.Body
		if id == s.player.Entity() || b.Kind() != physics.Dynamic {
			return
		}
		h := b.Handle()
		if s.distanceSlept[h] && !b.IsSleeping() {
			// Woken by something else, e.g. a collision.
			delete(s.distanceSlept, h)
		}

		p := b.Translation()
		dx, dz := p.X()-center.X(), p.Z()-center.Z()
		d2 := dx*dx + dz*dz

		switch {
		case !b.IsSleeping() && d2 > sleepSq:
			b.Sleep()
			s.distanceSlept[h] = true
		case s.distanceSlept[h] && d2 < wakeSq:
			b.WakeUp()
			delete(s.distanceSlept, h)
		}
	})
}

// Start launches the tick goroutine. Calling Start twice is a no-op.
func (s *Stepper) Start() {
	s.mustInit()
	if s.disposed.Load() {
		return
	}
	if s.running.CompareAndSwap(false, true) {
		s.wg.Add(1)
		go s.schedulerLoop()
	}
}

// Pause suspends ticking without stopping the goroutine.
func (s *Stepper) Pause() {
	s.mustInit()
	s.paused.Store(true)
}

// Resume continues ticking; the first step after resuming uses the nominal dt.
func (s *Stepper) Resume() {
	s.mustInit()
	if s.paused.CompareAndSwap(true, false) {
		s.resetDelta.Store(true)
	}
}

// Dispose stops rescheduling, waits for an in-flight tick and clears
// registry and cooldown state. Safe to call more than once.
func (s *Stepper) Dispose() {
	s.mustInit()
	s.stopOnce.Do(func() {
		s.disposed.Store(true)
		close(s.stopChan)
		s.wg.Wait()
		s.running.Store(false)

		if s.lock != nil {
			s.lock.Lock()
			defer s.lock.Unlock()
		}
		s.registry.Clear()
		s.tracker.Reset()
		for h := range s.distanceSlept {
			delete(s.distanceSlept, h)
		}
		log.Printf("Stepper: disposed after %d ticks", s.tickCount.Load())
	})
}

func (s *Stepper) schedulerLoop() {
	defer s.wg.Done()

	s.nextTickDeadline = time.Now().Add(s.interval)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-timer.C:
		}

		if !s.paused.Load() {
			s.Tick(s.clock.Now())
		}

		// Deadlines advance by a fixed interval so timer jitter does not
		// accumulate; after a long stall the schedule restarts from now.
		now := time.Now()
		s.nextTickDeadline = s.nextTickDeadline.Add(s.interval)
		if now.Sub(s.nextTickDeadline) > 2*s.interval {
			s.nextTickDeadline = now.Add(s.interval)
		}
		sleep := s.nextTickDeadline.Sub(now)
		if sleep < 0 {
			sleep = 0
		}
		timer.Reset(sleep)
	}
}
