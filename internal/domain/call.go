package domain

import (
	"fmt"
	"time"
)

type CallID string

type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

// CallPhase tracks one participant's side of a call. The two sides move
// independently: the caller sits in "calling" while the receiver rings.
type CallPhase string

const (
	PhaseIdle       CallPhase = "idle"
	PhaseCalling    CallPhase = "calling"
	PhaseRinging    CallPhase = "ringing"
	PhaseConnecting CallPhase = "connecting"
	PhaseConnected  CallPhase = "connected"
	PhaseEnded      CallPhase = "ended"
	PhaseFailed     CallPhase = "failed"
	PhaseRejected   CallPhase = "rejected"
)

var phaseTransitions = map[CallPhase][]CallPhase{
	PhaseIdle:       {PhaseCalling, PhaseRinging},
	PhaseCalling:    {PhaseConnecting, PhaseEnded, PhaseFailed, PhaseRejected},
	PhaseRinging:    {PhaseConnecting, PhaseEnded, PhaseFailed, PhaseRejected},
	PhaseConnecting: {PhaseConnected, PhaseEnded, PhaseFailed, PhaseRejected},
	PhaseConnected:  {PhaseEnded, PhaseFailed},
	PhaseFailed:     {PhaseEnded},
}

func (p CallPhase) CanTransition(to CallPhase) bool {
	for _, next := range phaseTransitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the phase ends the call for that side.
// Failed is not terminal: it auto-advances to ended after a grace period.
func (p CallPhase) Terminal() bool {
	return p == PhaseEnded || p == PhaseRejected
}

// NewCallID composes a collision-resistant id from the participants and
// the wall clock, matching what clients generate on their own.
func NewCallID(caller, receiver UserID) CallID {
	return CallID(fmt.Sprintf("%s-%s-%d", caller, receiver, time.Now().UnixMilli()))
}
