// Package viewer renders the simulation in a raylib window with a follow
// camera behind the player.
package viewer

import (
	"fmt"
	"log"
	"math"
	"time"

	"floatsim/internal/bus"
	"floatsim/internal/camera"
	"floatsim/internal/config"
	"floatsim/internal/engine"
	"floatsim/internal/interp"
	"floatsim/internal/physics"
	"floatsim/internal/world"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

// Session is the part of the game the viewer drives.
type Session interface {
	SetPlayerInput(in engine.Input)
	Pause()
	Resume()
	DispatchEvents() int
}

// terrainStep is the ground mesh spacing in metres.
const terrainStep = 2

var (
	colorSky    = rl.NewColor(135, 170, 210, 255)
	colorGround = rl.NewColor(88, 128, 72, 255)
	colorPanel  = rl.NewColor(18, 18, 24, 220)
	colorText   = rl.NewColor(200, 200, 208, 255)
	colorPlayer = rl.NewColor(108, 99, 255, 255)

	palette = [world.PaletteSize]rl.Color{
		rl.Red, rl.Blue, rl.Lime, rl.Purple, rl.Orange,
		rl.Gold, rl.Pink, rl.SkyBlue, rl.Maroon, rl.Violet,
	}
)

type pose struct {
	pos mgl32.Vec3
	rot mgl32.Quat
}

type triangle struct {
	a, b, c rl.Vector3
	color   rl.Color
}

// Viewer owns the window. All methods must run on the thread that called Run.
type Viewer struct {
	cfg      config.ViewConfig
	scene    *world.Scene
	consumer *interp.Consumer
	camera   *camera.Follow

	poses   map[engine.EntityID]pose
	terrain []triangle
	paused  bool
	sprint  bool
	stats   interp.FrameStats
	drawn   int
}

// New prepares a viewer over b. The window opens in Run.
func New(cfg config.ViewConfig, scene *world.Scene, b *bus.Bus, epoch time.Time) *Viewer {
	v := &Viewer{
		cfg:    cfg,
		scene:  scene,
		camera: camera.New(),
		poses:  make(map[engine.EntityID]pose),
	}
	v.consumer = interp.New(b, v, epoch)
	v.terrain = buildTerrain(scene)
	return v
}

// Apply implements interp.Sink.
func (v *Viewer) Apply(id engine.EntityID, pos mgl32.Vec3, rot mgl32.Quat) {
	v.poses[id] = pose{pos: pos, rot: rot}
}

// Run opens the window and renders until it is closed or done closes.
func (v *Viewer) Run(s Session, done <-chan struct{}) {
	rl.SetConfigFlags(rl.FlagMsaa4xHint | rl.FlagWindowResizable)
	rl.InitWindow(v.cfg.Width, v.cfg.Height, v.cfg.Title)
	defer rl.CloseWindow()
	rl.SetTargetFPS(v.cfg.TargetFPS)
	rl.SetExitKey(0)
	log.Printf("Viewer: window %dx%d", v.cfg.Width, v.cfg.Height)

	for !rl.WindowShouldClose() {
		select {
		case <-done:
			return
		default:
		}

		if rl.IsKeyPressed(rl.KeyP) {
			v.togglePause(s)
		}
		if rl.IsKeyPressed(rl.KeyR) {
			v.sprint = !v.sprint
		}
		s.SetPlayerInput(v.input())

		clear(v.poses)
		v.stats = v.consumer.Frame(time.Now())
		if p, ok := v.poses[v.scene.Player]; ok {
			v.camera.Update(p.pos, p.rot)
		}
		s.DispatchEvents()

		rl.BeginDrawing()
		rl.ClearBackground(colorSky)
		v.draw3D()
		if v.drawHUD() {
			v.togglePause(s)
		}
		rl.EndDrawing()
	}
}

func (v *Viewer) togglePause(s Session) {
	v.paused = !v.paused
	if v.paused {
		s.Pause()
	} else {
		s.Resume()
	}
}

func (v *Viewer) input() engine.Input {
	in := engine.Input{
		Forward:  rl.IsKeyDown(rl.KeyW) || rl.IsKeyDown(rl.KeyUp),
		Backward: rl.IsKeyDown(rl.KeyS) || rl.IsKeyDown(rl.KeyDown),
		Left:     rl.IsKeyDown(rl.KeyA) || rl.IsKeyDown(rl.KeyLeft),
		Right:    rl.IsKeyDown(rl.KeyD) || rl.IsKeyDown(rl.KeyRight),
		Jump:     rl.IsKeyDown(rl.KeySpace),
		Sprint:   v.sprint || rl.IsKeyDown(rl.KeyLeftShift),
	}
	// Q/E turn in place
	if rl.IsKeyDown(rl.KeyQ) {
		in.Turn += 1
	}
	if rl.IsKeyDown(rl.KeyE) {
		in.Turn -= 1
	}
	return in
}

func (v *Viewer) draw3D() {
	cam := rl.Camera3D{
		Position:   vec(v.camera.Position),
		Target:     vec(v.camera.Target),
		Up:         rl.Vector3{X: 0, Y: 1, Z: 0},
		Fovy:       v.camera.Fovy,
		Projection: rl.CameraPerspective,
	}
	aspect := float32(rl.GetScreenWidth()) / float32(max(rl.GetScreenHeight(), 1))
	frustum := v.camera.Of(aspect, 0.1, 1000)

	rl.BeginMode3D(cam)
	for i := range v.terrain {
		tri := &v.terrain[i]
		rl.DrawTriangle3D(tri.a, tri.b, tri.c, tri.color)
	}

	v.drawn = 0
	for id, p := range v.poses {
		prop, ok := v.scene.Props[id]
		if !ok {
			continue
		}
		if !frustum.ContainsSphere(p.pos, prop.Shape.BoundingRadius()) {
			continue
		}
		v.drawProp(p, prop)
		v.drawn++
	}
	rl.EndMode3D()
}

func (v *Viewer) drawProp(p pose, prop world.Prop) {
	color := palette[prop.Color%len(palette)]
	if prop.Kind == world.Player {
		color = colorPlayer
	}

	rl.PushMatrix()
	rl.Translatef(p.pos.X(), p.pos.Y(), p.pos.Z())
	if angle, axis := axisAngle(p.rot); angle != 0 {
		rl.Rotatef(angle*rl.Rad2deg, axis.X(), axis.Y(), axis.Z())
	}

	origin := rl.Vector3{}
	switch prop.Shape.Kind {
	case physics.Cuboid:
		e := prop.Shape.HalfExtents.Mul(2)
		rl.DrawCube(origin, e.X(), e.Y(), e.Z(), color)
		rl.DrawCubeWires(origin, e.X(), e.Y(), e.Z(), rl.Fade(rl.Black, 0.4))
	case physics.Ball:
		rl.DrawSphere(origin, prop.Shape.Radius, color)
	case physics.Capsule:
		hh := prop.Shape.HalfHeight
		rl.DrawCapsule(rl.Vector3{Y: -hh}, rl.Vector3{Y: hh}, prop.Shape.Radius, 12, 6, color)
		// Nose marks the facing
		rl.DrawCube(rl.Vector3{Y: hh * 0.5, Z: -prop.Shape.Radius}, 0.2, 0.2, 0.3, rl.White)
	}
	rl.PopMatrix()
}

// drawHUD draws the status panel. It reports whether the pause button was hit.
func (v *Viewer) drawHUD() bool {
	rl.DrawRectangle(8, 8, 300, 104, colorPanel)
	state := "running"
	if v.paused {
		state = "paused"
	}
	lines := []string{
		fmt.Sprintf("frame %d  alpha %.2f", v.stats.Frame, v.stats.Alpha),
		fmt.Sprintf("entities %d  drawn %d", v.stats.Entities, v.drawn),
		fmt.Sprintf("fps %d  %s  sprint %v", rl.GetFPS(), state, v.sprint),
	}
	for i, line := range lines {
		gui.Label(rl.NewRectangle(16, float32(14+i*20), 284, 20), line)
	}

	label := "Pause"
	if v.paused {
		label = "Resume"
	}
	hit := gui.Button(rl.NewRectangle(16, 78, 90, 26), label)
	rl.DrawText("WASD move  Q/E turn  Space jump  R sprint  P pause", 116, 84, 10, colorText)
	return hit
}

// buildTerrain triangulates the ground once. Flat ground is two triangles.
func buildTerrain(scene *world.Scene) []triangle {
	half := scene.GroundSize / 2
	if scene.Field == nil {
		a := rl.Vector3{X: -half, Z: -half}
		b := rl.Vector3{X: -half, Z: half}
		c := rl.Vector3{X: half, Z: half}
		d := rl.Vector3{X: half, Z: -half}
		return []triangle{{a, b, c, colorGround}, {a, c, d, colorGround}}
	}

	n := int(scene.GroundSize / terrainStep)
	at := func(i, j int) rl.Vector3 {
		x := -half + float32(i)*terrainStep
		z := -half + float32(j)*terrainStep
		return rl.Vector3{X: x, Y: scene.HeightAt(x, z), Z: z}
	}
	tris := make([]triangle, 0, n*n*2)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			a, b, c, d := at(i, j), at(i, j+1), at(i+1, j+1), at(i+1, j)
			// Counter-clockwise seen from above
			tris = append(tris,
				triangle{a, b, c, shade(a, b, c)},
				triangle{a, c, d, shade(a, c, d)})
		}
	}
	return tris
}

// shade darkens steep faces.
func shade(a, b, c rl.Vector3) rl.Color {
	n := rl.Vector3Normalize(rl.Vector3CrossProduct(rl.Vector3Subtract(b, a), rl.Vector3Subtract(c, a)))
	k := 0.55 + 0.45*float32(math.Abs(float64(n.Y)))
	return rl.NewColor(uint8(float32(colorGround.R)*k), uint8(float32(colorGround.G)*k), uint8(float32(colorGround.B)*k), 255)
}

func vec(v mgl32.Vec3) rl.Vector3 {
	return rl.Vector3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

// axisAngle splits a unit quaternion into an angle in radians and an axis.
func axisAngle(q mgl32.Quat) (float32, mgl32.Vec3) {
	q = q.Normalize()
	if q.W < 0 {
		q = q.Scale(-1)
	}
	s := float32(math.Sqrt(float64(1 - q.W*q.W)))
	if s < 1e-5 {
		return 0, mgl32.Vec3{0, 1, 0}
	}
	angle := 2 * float32(math.Acos(float64(mgl32.Clamp(q.W, -1, 1))))
	return angle, q.V.Mul(1 / s)
}
