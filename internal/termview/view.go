// Package termview draws the simulation top-down in a terminal and feeds
// keyboard input back to the session.
package termview

import (
	"fmt"
	"math"
	"time"

	"floatsim/internal/bus"
	"floatsim/internal/engine"
	"floatsim/internal/interp"
	"floatsim/internal/physics"
	"floatsim/internal/world"

	"github.com/gdamore/tcell/v2"
	"github.com/go-gl/mathgl/mgl32"
)

// CellsPerMeter is the horizontal scale. Rows cover twice the distance of
// columns to keep terminal cells roughly square.
const CellsPerMeter = 2

// Session is the part of the game the view drives.
type Session interface {
	SetPlayerInput(in engine.Input)
	Pause()
	Resume()
	DispatchEvents() int
}

type pose struct {
	pos mgl32.Vec3
	rot mgl32.Quat
}

var palette = [world.PaletteSize]tcell.Color{
	tcell.ColorRed, tcell.ColorBlue, tcell.ColorGreen, tcell.ColorPurple, tcell.ColorOrange,
	tcell.ColorYellow, tcell.ColorPink, tcell.ColorSkyblue, tcell.ColorLime, tcell.ColorFuchsia,
}

// View renders one scene. It is driven from a single goroutine.
type View struct {
	screen   tcell.Screen
	scene    *world.Scene
	consumer *interp.Consumer
	keys     KeyState

	poses    map[engine.EntityID]pose
	sleeping map[engine.EntityID]bool
	paused   bool
	stats    interp.FrameStats
	fps      float64
	lastDraw time.Time
}

// New builds a view over an initialised screen. b is any handle onto the
// session bus; the view attaches its own reader.
func New(screen tcell.Screen, scene *world.Scene, b *bus.Bus, epoch time.Time) *View {
	v := &View{
		screen:   screen,
		scene:    scene,
		poses:    make(map[engine.EntityID]pose),
		sleeping: make(map[engine.EntityID]bool),
	}
	v.consumer = interp.New(b, v, epoch)
	return v
}

// Apply implements interp.Sink.
func (v *View) Apply(id engine.EntityID, pos mgl32.Vec3, rot mgl32.Quat) {
	v.poses[id] = pose{pos: pos, rot: rot}
	if slot, ok := v.consumer.Bus().Slot(id); ok {
		bits, _ := v.consumer.Bus().ReadFlags(slot)
		v.sleeping[id] = bits&bus.FlagSleeping != 0
	}
}

// Frame pulls interpolated poses for render time now and redraws.
func (v *View) Frame(now time.Time) interp.FrameStats {
	clear(v.poses)
	clear(v.sleeping)
	v.stats = v.consumer.Frame(now)
	if !v.lastDraw.IsZero() {
		if dt := now.Sub(v.lastDraw).Seconds(); dt > 0 {
			v.fps = 0.9*v.fps + 0.1/dt
		}
	}
	v.lastDraw = now
	v.Draw()
	return v.stats
}

// Input returns the current keyboard intent.
func (v *View) Input(now time.Time) engine.Input { return v.keys.Input(now) }

// HandleEvent applies one terminal event. It returns false when the user quits.
func (v *View) HandleEvent(ev tcell.Event, s Session, now time.Time) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case 'p':
				v.paused = !v.paused
				if v.paused {
					s.Pause()
				} else {
					s.Resume()
				}
				return true
			}
		}
		v.keys.Press(ev, now)
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

// Run polls terminal events and redraws at fps until the user quits or
// done closes.
func (v *View) Run(s Session, fps int, done <-chan struct{}) {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	for {
		select {
		case <-done:
			return
		case ev := <-eventChan:
			if !v.HandleEvent(ev, s, time.Now()) {
				return
			}
		case now := <-ticker.C:
			s.SetPlayerInput(v.Input(now))
			v.Frame(now)
			s.DispatchEvents()
		}
	}
}

// Draw renders the last applied poses centred on the player.
func (v *View) Draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	center := v.poses[v.scene.Player].pos

	v.drawGround(w, h, center)
	for id, p := range v.poses {
		if id == v.scene.Player {
			continue
		}
		prop, ok := v.scene.Props[id]
		if !ok {
			continue
		}
		v.drawProp(w, h, center, p, prop, v.sleeping[id])
	}
	if p, ok := v.poses[v.scene.Player]; ok {
		col, row := toScreen(w, h, center, p.pos)
		v.screen.SetContent(col, row, facingGlyph(p.rot), nil,
			tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true))
	}
	v.drawHUD(w)
	v.screen.Show()
}

func (v *View) drawGround(w, h int, center mgl32.Vec3) {
	style := tcell.StyleDefault.Foreground(tcell.ColorDarkGreen)
	half := v.scene.GroundSize / 2
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			x, z := toWorld(w, h, center, col, row)
			if x < -half || x > half || z < -half || z > half {
				continue
			}
			if r := groundGlyph(v.scene.HeightAt(x, z)); r != ' ' {
				v.screen.SetContent(col, row, r, nil, style)
			}
		}
	}
}

func (v *View) drawProp(w, h int, center mgl32.Vec3, p pose, prop world.Prop, asleep bool) {
	style := tcell.StyleDefault.Foreground(palette[prop.Color%len(palette)])
	if asleep {
		style = style.Dim(true)
	}
	glyph := '●'
	var hx, hz float32
	switch prop.Shape.Kind {
	case physics.Cuboid:
		glyph = '■'
		hx, hz = prop.Shape.HalfExtents.X(), prop.Shape.HalfExtents.Z()
	case physics.Ball, physics.Capsule:
		hx, hz = prop.Shape.Radius, prop.Shape.Radius
	}
	c0, r0 := toScreen(w, h, center, p.pos.Sub(mgl32.Vec3{hx, 0, hz}))
	c1, r1 := toScreen(w, h, center, p.pos.Add(mgl32.Vec3{hx, 0, hz}))
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			v.screen.SetContent(col, row, glyph, nil, style)
		}
	}
}

func (v *View) drawHUD(w int) {
	state := "running"
	if v.paused {
		state = "paused"
	}
	line := fmt.Sprintf(" frame %d  alpha %.2f  entities %d  fps %.0f  %s  sprint %v  [wasd/arrows move, space jump, r sprint, p pause, q quit]",
		v.stats.Frame, v.stats.Alpha, v.stats.Entities, v.fps, state, v.keys.Sprinting())
	style := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorWhite)
	col := 0
	for _, r := range line {
		if col >= w {
			break
		}
		v.screen.SetContent(col, 0, r, nil, style)
		col++
	}
}

// toScreen maps world XZ to a cell, -Z pointing up the screen.
func toScreen(w, h int, center, p mgl32.Vec3) (int, int) {
	col := w/2 + int(math.Round(float64((p.X()-center.X())*CellsPerMeter)))
	row := h/2 + int(math.Round(float64((p.Z()-center.Z())*CellsPerMeter/2)))
	return col, row
}

func toWorld(w, h int, center mgl32.Vec3, col, row int) (float32, float32) {
	x := center.X() + float32(col-w/2)/CellsPerMeter
	z := center.Z() + float32(row-h/2)*2/CellsPerMeter
	return x, z
}

func groundGlyph(height float32) rune {
	switch {
	case height > 1.2:
		return '^'
	case height > 0.5:
		return ':'
	case height > 0.1:
		return '.'
	case height < -1.2:
		return '~'
	case height < -0.5:
		return '-'
	}
	return ' '
}

// facingGlyph picks an arrow for the yaw of rot.
func facingGlyph(rot mgl32.Quat) rune {
	f := rot.Rotate(mgl32.Vec3{0, 0, -1})
	if math.Abs(float64(f.X())) > math.Abs(float64(f.Z())) {
		if f.X() > 0 {
			return '>'
		}
		return '<'
	}
	if f.Z() > 0 {
		return 'v'
	}
	return '^'
}
