package audio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"floatsim/internal/engine"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Output plays finished cues. The speaker output mixes them on the audio
// thread; tests substitute a recorder.
type Output interface {
	Play(s beep.Streamer)
}

// Speaker is the system audio device behind one beep mixer.
type Speaker struct {
	mu    sync.Mutex
	mixer *beep.Mixer
}

// OpenSpeaker initialises the device at rate with a 100ms buffer.
func OpenSpeaker(rate beep.SampleRate) (*Speaker, error) {
	if err := speaker.Init(rate, rate.N(100*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	s := &Speaker{mixer: &beep.Mixer{}}
	speaker.Play(s.mixer)
	return s, nil
}

func (s *Speaker) Play(st beep.Streamer) {
	speaker.Lock()
	s.mixer.Add(st)
	speaker.Unlock()
}

// Close silences pending cues and releases the device.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mixer == nil {
		return
	}
	speaker.Lock()
	s.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	s.mixer = nil
}

// Cues turns simulation events into sounds on an Output.
type Cues struct {
	out    Output
	rate   beep.SampleRate
	volume float64

	mu     sync.Mutex
	played int
}

// NewCues plays on out at rate. volume is a linear master gain.
func NewCues(out Output, rate beep.SampleRate, volume float64) *Cues {
	return &Cues{out: out, rate: rate, volume: volume}
}

// Attach subscribes the cues to d.
func (c *Cues) Attach(d *engine.Dispatcher) {
	d.Collision.AddListener(c.Collision)
	d.Player.AddListener(c.Player)
}

// Collision plays an impact scaled by the event impulse.
func (c *Cues) Collision(ev engine.CollisionEvent) {
	c.play(ImpactCue(ImpactIntensity(ev.Impulse), c.rate))
}

// Player plays the jump or land cue.
func (c *Cues) Player(ev engine.PlayerEvent) {
	switch ev.Kind {
	case engine.EventJump:
		c.play(JumpCue(c.rate))
	case engine.EventLand:
		c.play(LandCue(float64(ev.Intensity), c.rate))
	default:
		log.Printf("Audio: no cue for %v", ev.Kind)
	}
}

// Played returns the number of cues sent to the output.
func (c *Cues) Played() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.played
}

func (c *Cues) play(s beep.Streamer) {
	if c.out == nil {
		return
	}
	c.out.Play(newVolume(s, c.volume))
	c.mu.Lock()
	c.played++
	c.mu.Unlock()
}
