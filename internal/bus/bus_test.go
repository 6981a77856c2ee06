package bus

import (
	"errors"
	"sync"
	"testing"

	"floatsim/internal/engine"

	"github.com/go-gl/mathgl/mgl32"
)

func TestRegisterWriteSignalRebuildRead(t *testing.T) {
	writer := New(8)

	slot, err := writer.RegisterEntity(42)
	if err != nil {
		t.Fatalf("RegisterEntity failed: %v", err)
	}

	if !writer.WriteTransform(slot, mgl32.Vec3{1, 2, 3}, mgl32.Quat{W: 1}) {
		t.Fatal("WriteTransform returned false for registered slot")
	}
	writer.SignalFrameComplete()

	reader := writer.Attach()
	if _, ok := reader.Slot(42); ok {
		t.Error("Fresh reader handle should not know any slot before rebuild")
	}
	reader.RebuildSlotMap()

	readSlot, ok := reader.Slot(42)
	if !ok {
		t.Fatal("Rebuilt reader did not find entity 42")
	}
	if readSlot != slot {
		t.Errorf("Expected slot %d, got %d", slot, readSlot)
	}

	tr, ok := reader.ReadTransform(readSlot)
	if !ok {
		t.Fatal("ReadTransform failed")
	}
	want := engine.Transform{Position: mgl32.Vec3{1, 2, 3}, Rotation: mgl32.Quat{W: 1}}
	if !tr.Current.ApproxEqual(want, 1e-6) {
		t.Errorf("Expected current %+v, got %+v", want, tr.Current)
	}
	if reader.FrameCounter() != 1 {
		t.Errorf("Expected frame counter 1, got %d", reader.FrameCounter())
	}
}

func TestPreviousEqualsPriorCurrent(t *testing.T) {
	b := New(4)
	slot, _ := b.RegisterEntity(1)

	b.WriteTransform(slot, mgl32.Vec3{0, 0, 0}, mgl32.QuatIdent())
	first, _ := b.ReadTransform(slot)
	if !first.Previous.ApproxEqual(first.Current, 1e-6) {
		t.Errorf("First write should seed previous == current, got %+v", first)
	}

	for step := 1; step <= 5; step++ {
		before, _ := b.ReadTransform(slot)
		b.WriteTransform(slot, mgl32.Vec3{float32(step), 0, 0}, mgl32.QuatIdent())
		after, _ := b.ReadTransform(slot)

		if !after.Previous.ApproxEqual(before.Current, 1e-6) {
			t.Errorf("Step %d: previous %+v should equal prior current %+v", step, after.Previous, before.Current)
		}
		if after.Current.Position.X() != float32(step) {
			t.Errorf("Step %d: expected current x=%d, got %v", step, step, after.Current.Position.X())
		}
	}
}

func TestFrameCounterIncrementsByOne(t *testing.T) {
	b := New(2)
	for i := uint32(1); i <= 10; i++ {
		got := b.SignalFrameComplete()
		if got != i {
			t.Errorf("Expected counter %d after signal, got %d", i, got)
		}
		if b.FrameCounter() != i {
			t.Errorf("FrameCounter() = %d, want %d", b.FrameCounter(), i)
		}
	}
}

func TestCapacityExhaustion(t *testing.T) {
	b := New(2)
	if _, err := b.RegisterEntity(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.RegisterEntity(2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slot, err := b.RegisterEntity(3)
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Errorf("Expected ErrCapacityExhausted, got %v", err)
	}
	if slot != -1 {
		t.Errorf("Expected slot -1 on failure, got %d", slot)
	}
	if b.EntityCount() != 2 {
		t.Errorf("Entity count should stay at 2, got %d", b.EntityCount())
	}
}

func TestDuplicateRegistrationReturnsSameSlot(t *testing.T) {
	b := New(4)
	s1, _ := b.RegisterEntity(7)
	s2, _ := b.RegisterEntity(7)
	if s1 != s2 {
		t.Errorf("Expected same slot for duplicate registration, got %d and %d", s1, s2)
	}
	if b.EntityCount() != 1 {
		t.Errorf("Expected 1 slot used, got %d", b.EntityCount())
	}
}

func TestUnregisterAbandonsSlot(t *testing.T) {
	b := New(4)
	s1, _ := b.RegisterEntity(1)
	b.RegisterEntity(2)

	b.UnregisterEntity(1)
	if _, ok := b.Slot(1); ok {
		t.Error("Unregistered entity should not have a slot")
	}

	s3, _ := b.RegisterEntity(3)
	if s3 == s1 {
		t.Errorf("Slot %d was reused after unregister", s1)
	}
	if b.EntityCount() != 3 {
		t.Errorf("Entity count should only grow, got %d", b.EntityCount())
	}

	reader := b.Attach()
	reader.RebuildSlotMap()
	if _, ok := reader.Slot(1); ok {
		t.Error("Reader rebuilt a mapping for a tombstoned slot")
	}
	if len(reader.Entities()) != 2 {
		t.Errorf("Expected 2 live entities, got %d", len(reader.Entities()))
	}

	// Removing twice is a silent no-op.
	b.UnregisterEntity(1)
	b.UnregisterEntity(99)
}

func TestOutOfRangeSlotIsRejected(t *testing.T) {
	b := New(2)
	if b.WriteTransform(2, mgl32.Vec3{}, mgl32.QuatIdent()) {
		t.Error("Write to slot == capacity should fail")
	}
	if b.WriteTransform(-1, mgl32.Vec3{}, mgl32.QuatIdent()) {
		t.Error("Write to negative slot should fail")
	}
	if _, ok := b.ReadTransform(5); ok {
		t.Error("Read of out-of-range slot should fail")
	}
	if b.WriteFlags(9, FlagGrounded) {
		t.Error("Flags write out of range should fail")
	}
}

func TestWriteToUnregisteredSlotIsRejected(t *testing.T) {
	b := New(16)
	slot, err := b.RegisterEntity(1)
	if err != nil {
		t.Fatal(err)
	}
	if b.WriteTransform(slot+5, mgl32.Vec3{1, 0, 0}, mgl32.QuatIdent()) {
		t.Error("Write to a slot past the entity count should fail")
	}
	if b.WriteFlags(slot+1, FlagGrounded) {
		t.Error("Flags write to a slot past the entity count should fail")
	}
	if !b.WriteTransform(slot, mgl32.Vec3{1, 0, 0}, mgl32.QuatIdent()) {
		t.Error("Write to the registered slot should succeed")
	}
	if b.EntityCount() != 1 {
		t.Errorf("Expected 1 entity, got %d", b.EntityCount())
	}
}

func TestFlagsAndTiming(t *testing.T) {
	b := New(2)
	slot, _ := b.RegisterEntity(1)

	b.WriteFlags(slot, FlagGrounded)
	bits, ok := b.ReadFlags(slot)
	if !ok || bits&FlagGrounded == 0 {
		t.Errorf("Expected grounded flag, got %b (ok=%v)", bits, ok)
	}

	b.WriteFrameTiming(1234.5, 16.667)
	timing := b.ReadFrameTiming()
	if timing.CurrentTime != 1234.5 || timing.Interval != 16.667 {
		t.Errorf("Unexpected timing %+v", timing)
	}
}

func TestZeroBusPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic when using an uninitialized bus")
		}
	}()
	var b Bus
	b.SignalFrameComplete()
}

func TestInvalidEntityID(t *testing.T) {
	b := New(2)
	if _, err := b.RegisterEntity(engine.NoEntity); !errors.Is(err, ErrInvalidEntity) {
		t.Errorf("Expected ErrInvalidEntity, got %v", err)
	}
}

func TestConcurrentWriterAndReader(t *testing.T) {
	writer := New(16)
	for id := engine.EntityID(1); id <= 8; id++ {
		writer.RegisterEntity(id)
	}
	reader := writer.Attach()

	const steps = 500
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for step := 1; step <= steps; step++ {
			for _, e := range writer.Entities() {
				writer.WriteTransform(e.Slot, mgl32.Vec3{float32(step), 0, 0}, mgl32.QuatIdent())
			}
			writer.WriteFrameTiming(float64(step), 16)
			writer.SignalFrameComplete()
		}
	}()

	var last uint32
	for last < steps {
		frame := reader.FrameCounter()
		if frame < last {
			t.Fatalf("Frame counter went backwards: %d -> %d", last, frame)
		}
		last = frame
		reader.RebuildSlotMap()
		for _, e := range reader.Entities() {
			reader.ReadTransform(e.Slot)
		}
	}
	wg.Wait()

	if reader.FrameCounter() != steps {
		t.Errorf("Expected %d frames, got %d", steps, reader.FrameCounter())
	}
}
