// Package audio synthesizes short cues for collision, jump and land events.
package audio

import (
	"math"
	"math/rand"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
)

// WaveType selects the oscillator shape.
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSaw
	WaveNoise
)

// Cue durations.
const (
	ImpactDuration = 180 * time.Millisecond
	ImpactAttack   = 4 * time.Millisecond
	ImpactRelease  = 150 * time.Millisecond

	JumpDuration = 140 * time.Millisecond
	JumpAttack   = 10 * time.Millisecond
	JumpRelease  = 60 * time.Millisecond

	LandDuration = 120 * time.Millisecond
	LandAttack   = 2 * time.Millisecond
	LandRelease  = 100 * time.Millisecond
)

// ImpulseFullScale is the collision impulse mapped to full cue intensity.
const ImpulseFullScale = 12.0

// oscillator sweeps linearly from freq to endFreq over its duration.
type oscillator struct {
	freq     float64
	endFreq  float64
	phase    float64
	duration int
	position int
	wave     WaveType
	rate     beep.SampleRate
	rng      *rand.Rand
}

// NewOscillator generates a fixed-frequency wave.
func NewOscillator(freq float64, duration time.Duration, wave WaveType, rate beep.SampleRate) beep.Streamer {
	return NewSweep(freq, freq, duration, wave, rate)
}

// NewSweep generates a wave whose frequency glides from freq to endFreq.
func NewSweep(freq, endFreq float64, duration time.Duration, wave WaveType, rate beep.SampleRate) beep.Streamer {
	return &oscillator{
		freq:     freq,
		endFreq:  endFreq,
		duration: rate.N(duration),
		wave:     wave,
		rate:     rate,
		rng:      rand.New(rand.NewSource(int64(freq*1000) + 1)),
	}
}

func (o *oscillator) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if o.position >= o.duration {
			return i, i > 0
		}

		var val float64
		switch o.wave {
		case WaveSine:
			val = math.Sin(2 * math.Pi * o.phase)
		case WaveSquare:
			if o.phase < 0.5 {
				val = 1.0
			} else {
				val = -1.0
			}
		case WaveSaw:
			val = 2.0 * (o.phase - 0.5)
		case WaveNoise:
			val = o.rng.Float64()*2 - 1
		}

		samples[i][0] = val
		samples[i][1] = val

		t := float64(o.position) / float64(o.duration)
		freq := o.freq + (o.endFreq-o.freq)*t
		o.phase += freq / float64(o.rate)
		o.phase -= math.Floor(o.phase)
		o.position++
	}
	return len(samples), true
}

func (o *oscillator) Err() error { return nil }

// envelope applies a linear attack and release.
type envelope struct {
	streamer       beep.Streamer
	position       int
	attackSamples  int
	releaseSamples int
	sustainSamples int
	totalSamples   int
}

// NewEnvelope shapes s with an attack/sustain/release ramp.
func NewEnvelope(s beep.Streamer, duration, attack, release time.Duration, rate beep.SampleRate) beep.Streamer {
	total := rate.N(duration)
	att := rate.N(attack)
	rel := rate.N(release)
	sus := max(total-att-rel, 0)
	return &envelope{
		streamer:       s,
		attackSamples:  att,
		releaseSamples: rel,
		sustainSamples: sus,
		totalSamples:   total,
	}
}

func (e *envelope) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = e.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		if e.position >= e.totalSamples {
			return i, i > 0
		}

		vol := 1.0
		if e.position < e.attackSamples && e.attackSamples > 0 {
			vol = float64(e.position) / float64(e.attackSamples)
		}
		if releaseStart := e.attackSamples + e.sustainSamples; e.position >= releaseStart && e.releaseSamples > 0 {
			vol = max(float64(e.totalSamples-e.position)/float64(e.releaseSamples), 0)
		}

		samples[i][0] *= vol
		samples[i][1] *= vol
		e.position++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.streamer.Err() }

// newVolume scales s linearly; zero or less is silent.
func newVolume(s beep.Streamer, vol float64) beep.Streamer {
	if vol <= 0 {
		return &effects.Volume{Streamer: s, Base: 2, Volume: 0, Silent: true}
	}
	return &effects.Volume{Streamer: s, Base: 2, Volume: math.Log2(vol), Silent: false}
}

// ImpactIntensity maps a collision impulse into (0,1].
func ImpactIntensity(impulse float32) float64 {
	return math.Max(0.1, math.Min(1, float64(impulse)/ImpulseFullScale))
}

// ImpactCue is a thud: a low sine under a burst of noise, pitched down and
// louder as intensity grows.
func ImpactCue(intensity float64, rate beep.SampleRate) beep.Streamer {
	freq := 180 - 80*intensity
	body := NewEnvelope(NewSweep(freq, freq*0.6, ImpactDuration, WaveSine, rate), ImpactDuration, ImpactAttack, ImpactRelease, rate)
	click := NewEnvelope(NewOscillator(0, ImpactDuration/3, WaveNoise, rate), ImpactDuration/3, time.Millisecond, ImpactDuration/4, rate)
	return newVolume(beep.Mix(newVolume(body, 0.7), newVolume(click, 0.3)), 0.3+0.7*intensity)
}

// JumpCue is a short rising square chirp.
func JumpCue(rate beep.SampleRate) beep.Streamer {
	chirp := NewSweep(330, 660, JumpDuration, WaveSquare, rate)
	return newVolume(NewEnvelope(chirp, JumpDuration, JumpAttack, JumpRelease, rate), 0.25)
}

// LandCue is a soft falling saw scaled by landing intensity.
func LandCue(intensity float64, rate beep.SampleRate) beep.Streamer {
	thump := NewSweep(140, 70, LandDuration, WaveSaw, rate)
	return newVolume(NewEnvelope(thump, LandDuration, LandAttack, LandRelease, rate), 0.15+0.45*intensity)
}
