package termview

import (
	"time"

	"floatsim/internal/engine"

	"github.com/gdamore/tcell/v2"
)

// HoldWindow is how long a key counts as held after its last press or
// repeat. Terminals report no key releases, so held keys are inferred from
// the auto-repeat stream.
const HoldWindow = 180 * time.Millisecond

// Action is a movement intent bound to a key.
type Action uint8

const (
	ActForward Action = iota
	ActBackward
	ActLeft
	ActRight
	ActJump
	actionCount
)

// KeyState samples terminal key events into player input.
type KeyState struct {
	lastSeen [actionCount]time.Time
	sprint   bool
}

// Press records a key event at now. It reports whether the key is bound.
func (k *KeyState) Press(ev *tcell.EventKey, now time.Time) bool {
	switch ev.Key() {
	case tcell.KeyUp:
		k.lastSeen[ActForward] = now
		return true
	case tcell.KeyDown:
		k.lastSeen[ActBackward] = now
		return true
	case tcell.KeyLeft:
		k.lastSeen[ActLeft] = now
		return true
	case tcell.KeyRight:
		k.lastSeen[ActRight] = now
		return true
	case tcell.KeyRune:
	default:
		return false
	}

	switch ev.Rune() {
	case 'w', 'W':
		k.lastSeen[ActForward] = now
	case 's', 'S':
		k.lastSeen[ActBackward] = now
	case 'a', 'A':
		k.lastSeen[ActLeft] = now
	case 'd', 'D':
		k.lastSeen[ActRight] = now
	case ' ':
		k.lastSeen[ActJump] = now
	case 'r', 'R':
		k.sprint = !k.sprint
	default:
		return false
	}
	return true
}

// Input returns the intent held at now.
func (k *KeyState) Input(now time.Time) engine.Input {
	held := func(a Action) bool {
		t := k.lastSeen[a]
		return !t.IsZero() && now.Sub(t) <= HoldWindow
	}
	return engine.Input{
		Forward:  held(ActForward),
		Backward: held(ActBackward),
		Left:     held(ActLeft),
		Right:    held(ActRight),
		Jump:     held(ActJump),
		Sprint:   k.sprint,
	}
}

// Sprinting reports the sprint toggle.
func (k *KeyState) Sprinting() bool { return k.sprint }
