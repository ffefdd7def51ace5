// Package consent models the in-app explanation shown before the device permission dialog.
// A Prompt is decided once per mount; each exit fires exactly one of its callbacks.
package consent

import (
	"errors"
	"sync"
)

// ErrAlreadyDecided is returned when a prompt that has already been allowed, denied or
// dismissed receives another decision.
var ErrAlreadyDecided = errors.New("consent: prompt already decided")

// Capability is a device capability that needs the user's permission.
type Capability string

const (
	CapabilityGeolocation Capability = "geolocation"
)

// State is the decision state of one prompt.
type State int

const (
	StateUnprompted State = iota
	StateGranted
	StateDenied
)

func (s State) String() string {
	switch s {
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	default:
		return "unprompted"
	}
}

// Prompt is a single mount of the capability overlay. A new mount needs a new Prompt.
type Prompt struct {
	capability Capability
	onAllow    func()
	onDeny     func()

	mu    sync.Mutex
	state State
}

// NewPrompt returns an undecided prompt. Either callback may be nil.
func NewPrompt(capability Capability, onAllow, onDeny func()) *Prompt {
	return &Prompt{capability: capability, onAllow: onAllow, onDeny: onDeny}
}

// Capability returns the capability this prompt asks for.
func (p *Prompt) Capability() Capability { return p.capability }

// State returns the current decision.
func (p *Prompt) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Visible reports whether the overlay is still shown.
func (p *Prompt) Visible() bool { return p.State() == StateUnprompted }

// Allow grants the capability and fires onAllow.
func (p *Prompt) Allow() error { return p.decide(StateGranted, p.onAllow) }

// Deny refuses the capability and fires onDeny.
func (p *Prompt) Deny() error { return p.decide(StateDenied, p.onDeny) }

// Dismiss closes the overlay without an explicit answer. It counts as a denial.
func (p *Prompt) Dismiss() error { return p.Deny() }

func (p *Prompt) decide(next State, callback func()) error {
	p.mu.Lock()
	if p.state != StateUnprompted {
		p.mu.Unlock()
		return ErrAlreadyDecided
	}
	p.state = next
	p.mu.Unlock()
	if callback != nil {
		callback()
	}
	return nil
}
