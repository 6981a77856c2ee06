// Package config holds the runtime configuration of a simulation session.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"floatsim/internal/bus"
	"floatsim/internal/collision"
	"floatsim/internal/controller"
	"floatsim/internal/stepper"
)

var ErrInvalid = errors.New("config: invalid")

// Terrain kinds.
const (
	TerrainFlat  = "flat"
	TerrainHills = "hills"
)

type BusConfig struct {
	MaxEntities int `json:"maxEntities"`
}

type WorldConfig struct {
	Gravity    [3]float32 `json:"gravity"`
	Terrain    string     `json:"terrain"`
	GroundSize float32    `json:"groundSize"` // full width of the square ground
	Crates     int        `json:"crates"`
	Balls      int        `json:"balls"`
	Seed       int64      `json:"seed"`
	Spawn      [3]float32 `json:"spawn"`
}

type AudioConfig struct {
	Enabled    bool    `json:"enabled"`
	SampleRate int     `json:"sampleRate"`
	Volume     float64 `json:"volume"` // linear master gain
}

type ViewConfig struct {
	Width     int32  `json:"width"`
	Height    int32  `json:"height"`
	Title     string `json:"title"`
	TargetFPS int32  `json:"targetFps"`
}

// Config is the whole session configuration.
type Config struct {
	Bus        BusConfig         `json:"bus"`
	Stepper    stepper.Config    `json:"stepper"`
	Controller controller.Config `json:"controller"`
	Collision  collision.Config  `json:"collision"`
	World      WorldConfig       `json:"world"`
	Audio      AudioConfig       `json:"audio"`
	View       ViewConfig        `json:"view"`
}

// Default returns a runnable configuration.
func Default() Config {
	return Config{
		Bus:        BusConfig{MaxEntities: bus.DefaultMaxEntities},
		Stepper:    stepper.DefaultConfig(),
		Controller: controller.DefaultConfig(),
		Collision:  collision.DefaultConfig(),
		World: WorldConfig{
			Gravity:    [3]float32{0, -20, 0},
			Terrain:    TerrainHills,
			GroundSize: 120,
			Crates:     40,
			Balls:      12,
			Seed:       1,
			Spawn:      [3]float32{0, 3, 0},
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 44100,
			Volume:     0.6,
		},
		View: ViewConfig{
			Width:     1280,
			Height:    720,
			Title:     "floatsim",
			TargetFPS: 144,
		},
	}
}

// Load reads path over the defaults and validates the result. Keys absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Bus.MaxEntities <= 0 {
		return fmt.Errorf("bus.maxEntities %d: %w", c.Bus.MaxEntities, ErrInvalid)
	}
	if err := c.Stepper.Validate(); err != nil {
		return fmt.Errorf("stepper: %w", err)
	}
	if err := c.Controller.Validate(); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	if c.Collision.CooldownMs < 0 || c.Collision.MaxPerStep < 0 || c.Collision.MinImpulse < 0 {
		return fmt.Errorf("collision %+v: %w", c.Collision, ErrInvalid)
	}

	w := c.World
	switch w.Terrain {
	case TerrainFlat, TerrainHills:
	default:
		return fmt.Errorf("world.terrain %q: %w", w.Terrain, ErrInvalid)
	}
	if w.GroundSize <= 0 {
		return fmt.Errorf("world.groundSize %v: %w", w.GroundSize, ErrInvalid)
	}
	if w.Crates < 0 || w.Balls < 0 {
		return fmt.Errorf("world crates %d balls %d: %w", w.Crates, w.Balls, ErrInvalid)
	}
	// One slot per crate and ball plus the player; the ground is not published.
	if need := w.Crates + w.Balls + 1; need > c.Bus.MaxEntities {
		return fmt.Errorf("world needs %d slots, bus has %d: %w", need, c.Bus.MaxEntities, ErrInvalid)
	}

	if c.Audio.Enabled && c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sampleRate %d: %w", c.Audio.SampleRate, ErrInvalid)
	}
	if c.View.Width <= 0 || c.View.Height <= 0 {
		return fmt.Errorf("view %dx%d: %w", c.View.Width, c.View.Height, ErrInvalid)
	}
	return nil
}
