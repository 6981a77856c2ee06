package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floatsim/internal/audio"
	"floatsim/internal/config"
	"floatsim/internal/engine"
	"floatsim/internal/game"
	"floatsim/internal/termview"
	"floatsim/internal/viewer"
	"floatsim/internal/world"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/pkg/profile"
)

func main() {
	configPath := flag.String("config", "", "JSON config overlaid on the defaults")
	view := flag.String("view", "window", "front end: window, term or headless")
	duration := flag.Duration("duration", 0, "stop after this long (0 runs until closed)")
	profileMode := flag.String("profile", "", "write a cpu or mem profile to the working directory")
	mute := flag.Bool("mute", false, "disable audio cues")
	crates := flag.Int("crates", -1, "override the crate count")
	saveConfig := flag.String("save-config", "", "write the effective config to this path and exit")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Config: %v", err)
		}
	}
	if *crates >= 0 {
		cfg.World.Crates = *crates
	}
	if *mute {
		cfg.Audio.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}
	if *saveConfig != "" {
		if err := cfg.Save(*saveConfig); err != nil {
			log.Fatalf("Config: %v", err)
		}
		log.Printf("Config written to %s", *saveConfig)
		return
	}

	switch *profileMode {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	default:
		log.Fatalf("Unknown profile mode %q", *profileMode)
	}

	g, err := game.New(cfg, nil)
	if err != nil {
		log.Fatalf("Game: %v", err)
	}
	defer g.Dispose()

	scene, err := world.Populate(g)
	if err != nil {
		log.Fatalf("World: %v", err)
	}

	if cfg.Audio.Enabled && *view != "headless" {
		rate := beep.SampleRate(cfg.Audio.SampleRate)
		out, err := audio.OpenSpeaker(rate)
		if err != nil {
			log.Printf("Audio: disabled, %v", err)
		} else {
			defer out.Close()
			audio.NewCues(out, rate, cfg.Audio.Volume).Attach(g.Dispatcher())
		}
	}
	attachLogging(g.Dispatcher(), scene)

	done := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		var timeout <-chan time.Time
		if *duration > 0 {
			timeout = time.After(*duration)
		}
		select {
		case <-sig:
		case <-timeout:
		}
		close(done)
	}()

	g.Start()
	switch *view {
	case "window":
		viewer.New(cfg.View, scene, g.Bus(), g.Epoch()).Run(g, done)
	case "term":
		runTerminal(g, scene, cfg, done)
	case "headless":
		runHeadless(g, done)
	default:
		log.Printf("Unknown view %q", *view)
	}

	log.Printf("Stopped after %d ticks with %d entities", g.Stepper().Ticks(), g.EntityCount())
}

func runTerminal(g *game.Game, scene *world.Scene, cfg config.Config, done <-chan struct{}) {
	screen, err := tcell.NewScreen()
	if err != nil {
		log.Printf("Terminal: %v", err)
		return
	}
	if err := screen.Init(); err != nil {
		log.Printf("Terminal: %v", err)
		return
	}
	defer screen.Fini()

	// Log lines would tear the screen
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	termview.New(screen, scene, g.Bus(), g.Epoch()).Run(g, int(cfg.View.TargetFPS), done)
}

// runHeadless drains events at 30 Hz until done.
func runHeadless(g *game.Game, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second / 30)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			g.DispatchEvents()
		}
	}
}

func attachLogging(d *engine.Dispatcher, scene *world.Scene) {
	d.Player.AddListener(func(ev engine.PlayerEvent) {
		log.Printf("Player: %v", ev.Kind)
	})
	d.Collision.AddListener(func(ev engine.CollisionEvent) {
		if ev.Impulse < 4 {
			return
		}
		log.Printf("Collision: %s / %s impulse %.1f", name(scene, ev.A), name(scene, ev.B), ev.Impulse)
	})
}

func name(scene *world.Scene, id engine.EntityID) string {
	if p, ok := scene.Props[id]; ok {
		return fmt.Sprintf("%v %d", p.Kind, id)
	}
	return "ground"
}
