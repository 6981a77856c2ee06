// Package world fills a session with ground, props and the player.
package world

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"

	"floatsim/internal/bus"
	"floatsim/internal/config"
	"floatsim/internal/engine"
	"floatsim/internal/game"
	"floatsim/internal/physics"

	"github.com/go-gl/mathgl/mgl32"
)

// Kind tags what a published entity is so views can draw it.
type Kind uint8

const (
	Crate Kind = iota
	Ball
	Player
)

func (k Kind) String() string {
	switch k {
	case Crate:
		return "crate"
	case Ball:
		return "ball"
	case Player:
		return "player"
	}
	return "unknown"
}

// Prop is the render-side description of one entity.
type Prop struct {
	Kind  Kind
	Shape physics.Shape
	Color int // index into the view's palette
}

// Scene is what Populate created. Ground is not published on the bus.
type Scene struct {
	Terrain    string
	GroundSize float32
	Field      *physics.HeightField // nil for flat ground
	Player     engine.EntityID
	Props      map[engine.EntityID]Prop
}

// HeightAt returns the ground height under world (x, z).
func (s *Scene) HeightAt(x, z float32) float32 {
	if s.Field == nil {
		return 0
	}
	h, _ := s.Field.HeightAt(x, z)
	return h
}

// PaletteSize is the number of distinct prop colours handed out.
const PaletteSize = 10

// HeightfieldResolution is the sample count per side of hills terrain.
const HeightfieldResolution = 97

// Populate builds the ground and spawns crates, balls and the player from the
// session's world config. Props that do not fit on the bus are skipped.
func Populate(g *game.Game) (*Scene, error) {
	cfg := g.Config()
	wc := cfg.World
	rng := rand.New(rand.NewSource(wc.Seed))

	scene := &Scene{
		Terrain:    wc.Terrain,
		GroundSize: wc.GroundSize,
		Props:      make(map[engine.EntityID]Prop),
	}
	if err := createGround(g, scene); err != nil {
		return nil, err
	}

	if err := createCrates(g, scene, rng, wc.Crates); err != nil {
		return scene, err
	}
	if err := createBalls(g, scene, rng, wc.Balls); err != nil {
		return scene, err
	}

	spawn := mgl32.Vec3(wc.Spawn)
	spawn[1] = max(spawn[1], scene.HeightAt(spawn[0], spawn[2])+cfg.Controller.FloatHeight)
	id, err := g.SpawnPlayerController(engine.Transform{Position: spawn, Rotation: mgl32.QuatIdent()}, cfg.Controller)
	if err != nil {
		return scene, fmt.Errorf("spawn player: %w", err)
	}
	scene.Player = id
	scene.Props[id] = Prop{Kind: Player, Shape: cfg.Controller.Shape()}

	log.Printf("World: %s ground %.0fm, %d props, player %d", scene.Terrain, scene.GroundSize, len(scene.Props)-1, id)
	return scene, nil
}

func createGround(g *game.Game, scene *Scene) error {
	size := scene.GroundSize
	desc := physics.DefaultBodyDesc(physics.Static)
	desc.Friction = 0.8

	var shape physics.Shape
	switch scene.Terrain {
	case config.TerrainHills:
		scene.Field = physics.NewHeightField(HeightfieldResolution, HeightfieldResolution, size, size, Hills)
		shape = physics.NewHeightfieldShape(scene.Field)
	default:
		desc.Position = mgl32.Vec3{0, -0.5, 0}
		shape = physics.NewCuboid(size/2, 0.5, size/2)
	}

	var err error
	g.RunSafe(func() {
		_, err = g.World().CreateBody(desc, shape)
	})
	if err != nil {
		return fmt.Errorf("create ground: %w", err)
	}
	return nil
}

func createCrates(g *game.Game, scene *Scene, rng *rand.Rand, n int) error {
	for i := 0; i < n; i++ {
		angle := float32(i) * (2 * math.Pi / float32(max(n, 1)))
		radius := float32(8 + rng.Float64()*5 + float64(i/15)*6)
		x := float32(math.Cos(float64(angle))) * radius
		z := float32(math.Sin(float64(angle))) * radius
		y := scene.HeightAt(x, z) + float32(2+rng.Float64()*3)

		half := float32(0.5 + rng.Float64()*0.35)
		shape := physics.NewCuboid(half, half, half)
		rot := mgl32.QuatRotate(float32(rng.Float64()*2*math.Pi), mgl32.Vec3{0, 1, 0})

		ok, err := spawnProp(g, scene, engine.Transform{Position: mgl32.Vec3{x, y, z}, Rotation: rot},
			game.BodyConfig{Kind: physics.Dynamic, Shape: shape},
			Prop{Kind: Crate, Shape: shape, Color: i % PaletteSize})
		if err != nil || !ok {
			return err
		}
	}
	return nil
}

func createBalls(g *game.Game, scene *Scene, rng *rand.Rand, n int) error {
	for i := 0; i < n; i++ {
		angle := float32(i)*(2*math.Pi/float32(max(n, 1))) + 0.3
		radius := float32(5 + rng.Float64()*3)
		x := float32(math.Cos(float64(angle))) * radius
		z := float32(math.Sin(float64(angle))) * radius
		y := scene.HeightAt(x, z) + float32(4+rng.Float64()*4)

		shape := physics.NewBall(float32(0.35 + rng.Float64()*0.3))
		desc := physics.DefaultBodyDesc(physics.Dynamic)
		desc.Restitution = 0.6

		ok, err := spawnProp(g, scene, engine.NewTransform(x, y, z),
			game.BodyConfig{Kind: physics.Dynamic, Shape: shape, Desc: &desc},
			Prop{Kind: Ball, Shape: shape, Color: (i + 3) % PaletteSize})
		if err != nil || !ok {
			return err
		}
	}
	return nil
}

// spawnProp reports false without an error when the bus is full.
func spawnProp(g *game.Game, scene *Scene, t engine.Transform, bc game.BodyConfig, p Prop) (bool, error) {
	id, err := g.SpawnEntity(t, bc)
	if errors.Is(err, bus.ErrCapacityExhausted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("spawn %s: %w", p.Kind, err)
	}
	scene.Props[id] = p
	return true, nil
}

// Hills is the terrain height function: rolling waves that flatten out
// around the origin so the player spawns on level ground.
func Hills(x, z float32) float32 {
	fx, fz := float64(x), float64(z)
	h := 1.5*math.Sin(fx*0.12)*math.Cos(fz*0.1) + 0.6*math.Sin((fx+fz)*0.25)
	r := math.Hypot(fx, fz)
	return float32(h * smoothstep(6, 14, r))
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-edge0)/(edge1-edge0)))
	return t * t * (3 - 2*t)
}
