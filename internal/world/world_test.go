package world

import (
	"testing"
	"time"

	"floatsim/internal/config"
	"floatsim/internal/engine"
	"floatsim/internal/game"
)

func newGame(t *testing.T, mutate func(*config.Config)) *game.Game {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := game.New(cfg, engine.NewManualClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	return g
}

func TestPopulateFlat(t *testing.T) {
	g := newGame(t, func(c *config.Config) {
		c.World.Terrain = config.TerrainFlat
		c.World.Crates = 6
		c.World.Balls = 3
	})
	scene, err := Populate(g)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}

	counts := map[Kind]int{}
	for _, p := range scene.Props {
		counts[p.Kind]++
	}
	if counts[Crate] != 6 || counts[Ball] != 3 || counts[Player] != 1 {
		t.Errorf("Unexpected prop counts %v", counts)
	}
	if scene.Player == engine.NoEntity || g.Player() != scene.Player {
		t.Errorf("Expected player %d to be the session player %d", scene.Player, g.Player())
	}
	if g.EntityCount() != 10 {
		t.Errorf("Expected 10 entities, got %d", g.EntityCount())
	}
	// Ground plus every entity.
	if g.World().BodyCount() != 11 {
		t.Errorf("Expected 11 bodies, got %d", g.World().BodyCount())
	}
	if scene.Field != nil || scene.HeightAt(3, 3) != 0 {
		t.Error("Expected flat ground")
	}
}

func TestPopulateHillsKeepsSpawnLevel(t *testing.T) {
	g := newGame(t, func(c *config.Config) {
		c.World.Crates = 2
		c.World.Balls = 0
	})
	scene, err := Populate(g)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if scene.Field == nil {
		t.Fatal("Expected heightfield ground")
	}
	if h := scene.HeightAt(0, 0); h != 0 {
		t.Errorf("Expected level ground at spawn, got %v", h)
	}

	body, _ := g.Body(scene.Player)
	if y := body.Translation().Y(); y < g.Config().Controller.FloatHeight {
		t.Errorf("Expected player above float height, got %v", y)
	}
}

func TestPopulateDeterministic(t *testing.T) {
	positions := func() map[engine.EntityID][3]float32 {
		g := newGame(t, nil)
		scene, err := Populate(g)
		if err != nil {
			t.Fatalf("Populate: %v", err)
		}
		out := make(map[engine.EntityID][3]float32)
		for id := range scene.Props {
			b, _ := g.Body(id)
			out[id] = b.Translation()
		}
		return out
	}
	a, b := positions(), positions()
	if len(a) != len(b) {
		t.Fatalf("Expected equal prop counts, got %d and %d", len(a), len(b))
	}
	for id, p := range a {
		if b[id] != p {
			t.Errorf("Entity %d placed at %v then %v", id, p, b[id])
		}
	}
}

func TestHillsFlatNearOrigin(t *testing.T) {
	for _, p := range [][2]float32{{0, 0}, {3, -4}, {-5, 2}} {
		if h := Hills(p[0], p[1]); h != 0 {
			t.Errorf("Expected zero height at %v, got %v", p, h)
		}
	}
	if Hills(30, 20) == 0 && Hills(25, -17) == 0 {
		t.Error("Expected relief away from the origin")
	}
}
