// Package bus implements the shared transform bus between the physics
// goroutine (single writer) and render goroutines (readers).
//
// The bus is a fixed-layout block of memory split into regions:
//
//	control   int32   [frameCounter, entityCount, id_0 ... id_{MAX-1}]
//	transform float32 14 per slot: previous pose (7) then current pose (7)
//	flags     uint32  1 per slot
//	timing    float64 [currentTimeMs, intervalMs]
//
// Every word is accessed atomically. The only ordering contract is that the
// writer finishes all per-slot writes for a step before SignalFrameComplete.
package bus

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"floatsim/internal/engine"

	"github.com/go-gl/mathgl/mgl32"
)

// Layout constants.
const (
	FloatsPerPose = 7
	FloatsPerSlot = 2 * FloatsPerPose

	controlFrame  = 0
	controlCount  = 1
	controlHeader = 2

	timingCurrent  = 0
	timingInterval = 1
)

// DefaultMaxEntities is used when no capacity is configured.
const DefaultMaxEntities = 1024

// Flag bits carried in the flags region.
const (
	FlagGrounded uint32 = 1 << iota
	FlagSleeping
)

var (
	ErrCapacityExhausted = errors.New("bus: capacity exhausted")
	ErrInvalidEntity     = errors.New("bus: invalid entity id")
)

// Memory is the shared block. It is created once per session and never resized.
type Memory struct {
	capacity  int
	control   []atomic.Int32
	transform []atomic.Uint32
	flags     []atomic.Uint32
	timing    [2]atomic.Uint64
}

// NewMemory allocates regions for maxEntities slots.
func NewMemory(maxEntities int) *Memory {
	if maxEntities <= 0 {
		maxEntities = DefaultMaxEntities
	}
	return &Memory{
		capacity:  maxEntities,
		control:   make([]atomic.Int32, controlHeader+maxEntities),
		transform: make([]atomic.Uint32, FloatsPerSlot*maxEntities),
		flags:     make([]atomic.Uint32, maxEntities),
	}
}

// Pose is one position + rotation sample as stored in a slot.
type Pose = engine.Transform

// SlotTransforms holds the two poses of one slot.
type SlotTransforms struct {
	Previous Pose
	Current  Pose
}

// Timing is the frame timing the writer publishes after each step.
type Timing struct {
	CurrentTime float64 // ms
	Interval    float64 // ms
}

// Entry pairs an entity with its slot.
type Entry struct {
	ID   engine.EntityID
	Slot int
}

// Bus is a handle onto Memory with its own id→slot cache.
// The physics goroutine owns the writer handle; each reader attaches its own
// handle and calls RebuildSlotMap to re-derive the mapping from shared state.
type Bus struct {
	mem     *Memory
	slots   map[engine.EntityID]int
	written []bool // writer-local: slot has been written at least once

	lastLogTime time.Time
}

// New creates fresh shared memory and a writer handle onto it.
func New(maxEntities int) *Bus {
	mem := NewMemory(maxEntities)
	return &Bus{
		mem:     mem,
		slots:   make(map[engine.EntityID]int),
		written: make([]bool, mem.capacity),
	}
}

// Attach returns a second handle onto the same memory with an empty slot map.
// Call RebuildSlotMap before reading.
func (b *Bus) Attach() *Bus {
	b.mustInit()
	return &Bus{
		mem:   b.mem,
		slots: make(map[engine.EntityID]int),
	}
}

func (b *Bus) mustInit() {
	if b == nil || b.mem == nil {
		panic("bus: used before initialization (construct with bus.New)")
	}
}

// Capacity returns MAX_ENTITIES for this bus.
func (b *Bus) Capacity() int {
	b.mustInit()
	return b.mem.capacity
}

// EntityCount returns the number of slots ever assigned (never decreases).
func (b *Bus) EntityCount() int {
	b.mustInit()
	return int(b.mem.control[controlCount].Load())
}

// RegisterEntity assigns the next free slot to id. Registering an id that is
// already mapped returns its existing slot.
func (b *Bus) RegisterEntity(id engine.EntityID) (int, error) {
	b.mustInit()
	if id == engine.NoEntity {
		return -1, ErrInvalidEntity
	}
	if slot, ok := b.slots[id]; ok {
		return slot, nil
	}

	count := int(b.mem.control[controlCount].Load())
	if count >= b.mem.capacity {
		log.Printf("Bus: capacity exhausted (%d slots), dropping entity %d", b.mem.capacity, id)
		return -1, fmt.Errorf("register entity %d: %w", id, ErrCapacityExhausted)
	}

	slot := count
	b.mem.control[controlHeader+slot].Store(int32(id))
	// Publish the id before the count so a reader that sees the count sees the id.
	b.mem.control[controlCount].Store(int32(count + 1))
	b.slots[id] = slot
	return slot, nil
}

// UnregisterEntity drops the mapping and tombstones the slot. The slot is not reused.
func (b *Bus) UnregisterEntity(id engine.EntityID) {
	b.mustInit()
	slot, ok := b.slots[id]
	if !ok {
		return
	}
	delete(b.slots, id)
	b.mem.control[controlHeader+slot].Store(int32(engine.NoEntity))
	b.mem.flags[slot].Store(0)
}

// Slot returns the slot for id from this handle's map.
func (b *Bus) Slot(id engine.EntityID) (int, bool) {
	b.mustInit()
	slot, ok := b.slots[id]
	return slot, ok
}

// Entities returns the id/slot pairs known to this handle, in slot order.
func (b *Bus) Entities() []Entry {
	b.mustInit()
	out := make([]Entry, 0, len(b.slots))
	count := b.EntityCount()
	for slot := 0; slot < count; slot++ {
		id := engine.EntityID(b.mem.control[controlHeader+slot].Load())
		if s, ok := b.slots[id]; ok && s == slot {
			out = append(out, Entry{ID: id, Slot: slot})
		}
	}
	return out
}

// RebuildSlotMap re-derives id→slot from the control region. Idempotent.
func (b *Bus) RebuildSlotMap() {
	b.mustInit()
	count := b.EntityCount()
	for id := range b.slots {
		delete(b.slots, id)
	}
	for slot := 0; slot < count; slot++ {
		id := engine.EntityID(b.mem.control[controlHeader+slot].Load())
		if id == engine.NoEntity {
			continue
		}
		b.slots[id] = slot
	}
}

func (b *Bus) validSlot(slot int, op string) bool {
	return b.slotBelow(slot, b.mem.capacity, op)
}

// registeredSlot also rejects slots no entity has been registered to.
func (b *Bus) registeredSlot(slot int, op string) bool {
	return b.slotBelow(slot, int(b.mem.control[controlCount].Load()), op)
}

func (b *Bus) slotBelow(slot, limit int, op string) bool {
	if slot >= 0 && slot < limit {
		return true
	}
	if time.Since(b.lastLogTime) >= time.Second {
		b.lastLogTime = time.Now()
		log.Printf("Bus: %s slot %d out of range [0,%d)", op, slot, limit)
	}
	return false
}

// WriteTransform stores a new current pose for slot, shifting the old current
// pose into previous. The first write to a slot seeds both poses.
func (b *Bus) WriteTransform(slot int, pos mgl32.Vec3, rot mgl32.Quat) bool {
	b.mustInit()
	if !b.registeredSlot(slot, "write") {
		return false
	}
	base := slot * FloatsPerSlot
	words := b.mem.transform[base : base+FloatsPerSlot]

	if b.written != nil && !b.written[slot] {
		b.written[slot] = true
		storePose(words[:FloatsPerPose], pos, rot)
	} else {
		for i := 0; i < FloatsPerPose; i++ {
			words[i].Store(words[FloatsPerPose+i].Load())
		}
	}
	storePose(words[FloatsPerPose:], pos, rot)
	return true
}

// ReadTransform returns previous and current poses of slot.
func (b *Bus) ReadTransform(slot int) (SlotTransforms, bool) {
	b.mustInit()
	if !b.validSlot(slot, "read") {
		return SlotTransforms{}, false
	}
	base := slot * FloatsPerSlot
	words := b.mem.transform[base : base+FloatsPerSlot]
	return SlotTransforms{
		Previous: loadPose(words[:FloatsPerPose]),
		Current:  loadPose(words[FloatsPerPose:]),
	}, true
}

// WriteFlags replaces the flag bits of slot.
func (b *Bus) WriteFlags(slot int, bits uint32) bool {
	b.mustInit()
	if !b.registeredSlot(slot, "flags write") {
		return false
	}
	b.mem.flags[slot].Store(bits)
	return true
}

// ReadFlags returns the flag bits of slot.
func (b *Bus) ReadFlags(slot int) (uint32, bool) {
	b.mustInit()
	if !b.validSlot(slot, "flags read") {
		return 0, false
	}
	return b.mem.flags[slot].Load(), true
}

// SignalFrameComplete publishes the step. Call only after every write of the step.
func (b *Bus) SignalFrameComplete() uint32 {
	b.mustInit()
	return uint32(b.mem.control[controlFrame].Add(1))
}

// FrameCounter returns the number of completed steps.
func (b *Bus) FrameCounter() uint32 {
	b.mustInit()
	return uint32(b.mem.control[controlFrame].Load())
}

// WriteFrameTiming records when the current poses were produced and the step interval.
func (b *Bus) WriteFrameTiming(nowMs, intervalMs float64) {
	b.mustInit()
	b.mem.timing[timingCurrent].Store(math.Float64bits(nowMs))
	b.mem.timing[timingInterval].Store(math.Float64bits(intervalMs))
}

// ReadFrameTiming returns the last published timing.
func (b *Bus) ReadFrameTiming() Timing {
	b.mustInit()
	return Timing{
		CurrentTime: math.Float64frombits(b.mem.timing[timingCurrent].Load()),
		Interval:    math.Float64frombits(b.mem.timing[timingInterval].Load()),
	}
}

func storePose(words []atomic.Uint32, pos mgl32.Vec3, rot mgl32.Quat) {
	words[0].Store(math.Float32bits(pos[0]))
	words[1].Store(math.Float32bits(pos[1]))
	words[2].Store(math.Float32bits(pos[2]))
	words[3].Store(math.Float32bits(rot.V[0]))
	words[4].Store(math.Float32bits(rot.V[1]))
	words[5].Store(math.Float32bits(rot.V[2]))
	words[6].Store(math.Float32bits(rot.W))
}

func loadPose(words []atomic.Uint32) Pose {
	f := func(i int) float32 { return math.Float32frombits(words[i].Load()) }
	return Pose{
		Position: mgl32.Vec3{f(0), f(1), f(2)},
		Rotation: mgl32.Quat{W: f(6), V: mgl32.Vec3{f(3), f(4), f(5)}},
	}
}
