package termview

import (
	"testing"
	"time"

	"floatsim/internal/bus"
	"floatsim/internal/config"
	"floatsim/internal/controller"
	"floatsim/internal/engine"
	"floatsim/internal/game"
	"floatsim/internal/world"

	"github.com/gdamore/tcell/v2"
)

type fakeSession struct {
	input           engine.Input
	pauses, resumes int
	dispatched      int
}

func (f *fakeSession) SetPlayerInput(in engine.Input) { f.input = in }
func (f *fakeSession) Pause()                         { f.pauses++ }
func (f *fakeSession) Resume()                        { f.resumes++ }

func (f *fakeSession) DispatchEvents() int {
	f.dispatched++
	return 0
}

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	screen.SetSize(80, 24)
	t.Cleanup(screen.Fini)
	return screen
}

func TestKeyStateHoldWindow(t *testing.T) {
	var k KeyState
	now := time.Unix(100, 0)
	k.Press(tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone), now)
	k.Press(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), now)

	in := k.Input(now.Add(100 * time.Millisecond))
	if !in.Forward || !in.Left || in.Backward || in.Jump {
		t.Errorf("Expected forward+left held, got %+v", in)
	}
	if in := k.Input(now.Add(HoldWindow + time.Millisecond)); in.Forward || in.Left {
		t.Errorf("Expected keys released after hold window, got %+v", in)
	}

	if k.Press(tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone), now) {
		t.Error("Expected unbound key to be ignored")
	}
	k.Press(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone), now)
	if !k.Input(now).Sprint {
		t.Error("Expected sprint toggled on")
	}
}

func TestHandleEventPauseAndQuit(t *testing.T) {
	screen := newScreen(t)
	v := New(screen, &world.Scene{Props: map[engine.EntityID]world.Prop{}}, bus.New(4), time.Time{})
	s := &fakeSession{}
	now := time.Now()

	if !v.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone), s, now) {
		t.Fatal("Pause should not quit")
	}
	v.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone), s, now)
	if s.pauses != 1 || s.resumes != 1 {
		t.Errorf("Expected one pause and one resume, got %d/%d", s.pauses, s.resumes)
	}
	if v.HandleEvent(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), s, now) {
		t.Error("Expected q to quit")
	}
	if v.HandleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), s, now) {
		t.Error("Expected Esc to quit")
	}
}

func TestFrameDrawsPlayerAndProps(t *testing.T) {
	cfg := config.Default()
	cfg.World.Terrain = config.TerrainFlat
	cfg.World.Crates = 4
	cfg.World.Balls = 0
	clock := engine.NewManualClock(time.Unix(0, 0))
	g, err := game.New(cfg, clock)
	if err != nil {
		t.Fatal(err)
	}
	scene, err := world.Populate(g)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		clock.Advance(g.Interval())
		g.Step()
	}

	screen := newScreen(t)
	v := New(screen, scene, g.Bus(), g.Epoch())
	stats := v.Frame(clock.Now().Add(time.Second))
	if stats.Entities != 5 {
		t.Errorf("Expected 5 entities, got %d", stats.Entities)
	}

	w, h := screen.Size()
	if r, _, _, _ := screen.GetContent(w/2, h/2); r != '^' {
		t.Errorf("Expected player facing -Z at the centre, got %q", r)
	}
	crates := 0
	for y := 1; y < h; y++ {
		for x := 0; x < w; x++ {
			if r, _, _, _ := screen.GetContent(x, y); r == '■' {
				crates++
			}
		}
	}
	if crates == 0 {
		t.Error("Expected crates drawn")
	}
	if r, _, _, _ := screen.GetContent(1, 0); r != 'f' {
		t.Errorf("Expected HUD on the first row, got %q", r)
	}
}

func TestFacingGlyph(t *testing.T) {
	cases := map[float32]rune{0: '^', 1.5708: '<', 3.1416: 'v', -1.5708: '>'}
	for yaw, want := range cases {
		rot := controller.YawQuat(yaw)
		if got := facingGlyph(rot); got != want {
			t.Errorf("yaw %v: expected %q, got %q", yaw, want, got)
		}
	}
}
