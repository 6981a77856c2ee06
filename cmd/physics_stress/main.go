// Stress test timing fixed steps and interpolated reads as the prop count grows
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"floatsim/internal/config"
	"floatsim/internal/engine"
	"floatsim/internal/game"
	"floatsim/internal/interp"
	"floatsim/internal/world"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"
)

func main() {
	steps := flag.Int("steps", 240, "fixed steps per run")
	memProfile := flag.Bool("mem", false, "write a mem profile instead of a cpu profile")
	withProfile := flag.Bool("profile", false, "profile the whole run")
	flag.Parse()

	if *withProfile {
		mode := profile.CPUProfile
		if *memProfile {
			mode = profile.MemProfileAllocs
		}
		defer profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	// Test various prop counts
	testCounts := []int{10, 50, 100, 250, 500, 1000}
	for _, count := range testCounts {
		if err := run(count, *steps); err != nil {
			log.Printf("%5d props: %v", count, err)
		}
	}
}

func run(count, steps int) error {
	cfg := config.Default()
	cfg.World.Terrain = config.TerrainFlat
	cfg.World.Crates = count / 2
	cfg.World.Balls = count - count/2
	cfg.Bus.MaxEntities = count + 1

	clock := engine.NewManualClock(time.Unix(0, 0))
	g, err := game.New(cfg, clock)
	if err != nil {
		return err
	}
	defer g.Dispose()
	if _, err := world.Populate(g); err != nil {
		return err
	}

	applied := 0
	consumer := interp.New(g.Bus(), interp.SinkFunc(func(engine.EntityID, mgl32.Vec3, mgl32.Quat) {
		applied++
	}), g.Epoch())

	var stepTime, readTime time.Duration
	for i := 0; i < steps; i++ {
		clock.Advance(g.Interval())
		start := time.Now()
		if err := g.Step(); err != nil {
			return err
		}
		stepTime += time.Since(start)

		start = time.Now()
		consumer.Frame(clock.Now().Add(g.Interval() / 2))
		readTime += time.Since(start)
		g.DispatchEvents()
	}

	fmt.Printf("%5d props: step %8v | read %8v (%d poses) | %d bodies\n",
		count, (stepTime / time.Duration(steps)).Round(time.Microsecond),
		(readTime / time.Duration(steps)).Round(time.Microsecond), applied/steps, g.World().BodyCount())
	return nil
}
