// Package collision turns raw collision-start contacts into rate-limited
// gameplay collision events.
package collision

import (
	"log"

	"floatsim/internal/engine"
	"floatsim/internal/physics"
)

// Config tunes event filtering.
type Config struct {
	CooldownMs      float64 `json:"cooldownMs"`
	MaxPerStep      int     `json:"maxPerStep"`
	MinImpulse      float32 `json:"minImpulse"`
	PruneIntervalMs float64 `json:"pruneIntervalMs"`
}

// DefaultConfig returns the standard filter settings.
func DefaultConfig() Config {
	return Config{
		CooldownMs:      350,
		MaxPerStep:      12,
		MinImpulse:      1.0,
		PruneIntervalMs: 5000,
	}
}

// Resolver maps colliders to entities; untracked colliders report false.
type Resolver interface {
	EntityForCollider(c physics.ColliderHandle) (engine.EntityID, bool)
}

// MakePairKey packs two ids into an order-independent key.
func MakePairKey(a, b engine.EntityID) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}

// Tracker filters contacts. It is owned by the physics goroutine.
type Tracker struct {
	cfg       Config
	player    engine.EntityID
	cooldowns map[uint64]float64 // pair key -> last emission time (ms)
	lastPrune float64
	dropped   uint64
}

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:       cfg,
		cooldowns: make(map[uint64]float64),
	}
}

// SetPlayer names the entity whose contacts are ignored.
func (t *Tracker) SetPlayer(id engine.EntityID) {
	t.player = id
}

// Process filters one step's collision starts and returns the surviving
// events in input order. nowMs is the step time.
func (t *Tracker) Process(starts []physics.CollisionStart, resolve Resolver, nowMs float64) []engine.CollisionEvent {
	if nowMs-t.lastPrune >= t.cfg.PruneIntervalMs {
		t.prune(nowMs)
	}
	if len(starts) == 0 {
		return nil
	}

	var out []engine.CollisionEvent
	for _, s := range starts {
		if t.cfg.MaxPerStep > 0 && len(out) >= t.cfg.MaxPerStep {
			t.dropped++
			continue
		}

		a, _ := resolve.EntityForCollider(s.A)
		b, _ := resolve.EntityForCollider(s.B)
		if a == engine.NoEntity && b == engine.NoEntity {
			continue
		}
		if t.player != engine.NoEntity && (a == t.player || b == t.player) {
			continue
		}

		key := MakePairKey(a, b)
		if last, ok := t.cooldowns[key]; ok && nowMs-last < t.cfg.CooldownMs {
			continue
		}

		impulse := Impulse(a, b, s)
		if impulse < t.cfg.MinImpulse {
			continue
		}

		t.cooldowns[key] = nowMs
		out = append(out, engine.CollisionEvent{
			A:        a,
			B:        b,
			Position: s.Point,
			Impulse:  impulse,
		})
	}
	return out
}

// Impulse estimates the hit strength. Against untracked geometry it is the
// vertical speed of the tracked body, otherwise the relative speed.
func Impulse(a, b engine.EntityID, s physics.CollisionStart) float32 {
	switch {
	case a == engine.NoEntity:
		return absf(s.VelocityB.Y())
	case b == engine.NoEntity:
		return absf(s.VelocityA.Y())
	default:
		return s.VelocityA.Sub(s.VelocityB).Len()
	}
}

func (t *Tracker) prune(nowMs float64) {
	t.lastPrune = nowMs
	removed := 0
	for key, last := range t.cooldowns {
		if nowMs-last >= t.cfg.CooldownMs {
			delete(t.cooldowns, key)
			removed++
		}
	}
	if t.dropped > 0 {
		log.Printf("Collision: pruned %d cooldowns, %d events over per-step cap since last prune", removed, t.dropped)
		t.dropped = 0
	}
}

// Pending returns the number of cooldown entries held.
func (t *Tracker) Pending() int {
	return len(t.cooldowns)
}

// Reset forgets all cooldowns.
func (t *Tracker) Reset() {
	for key := range t.cooldowns {
		delete(t.cooldowns, key)
	}
	t.lastPrune = 0
	t.dropped = 0
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
