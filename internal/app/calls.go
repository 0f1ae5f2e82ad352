package app

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/domain"
)

const (
	// DefaultRingTimeout bounds the ringing phase server-side so an
	// unanswered call cannot ring forever.
	DefaultRingTimeout = 30 * time.Second
	// failureGrace gives the UI time to show "failed" before teardown.
	failureGrace = 2 * time.Second
)

// callSide is one participant's view of a call: their phase, whether
// their remote description has been relayed to them, and the ICE
// candidates that arrived too early to apply.
type callSide struct {
	phase         domain.CallPhase
	remoteDescSet bool
	pendingICE    []webrtc.ICECandidateInit
}

type callSession struct {
	id       domain.CallID
	callType domain.CallType
	caller   domain.UserID
	receiver domain.UserID
	sides    map[domain.UserID]*callSide
	ringing  *time.Timer
	grace    *time.Timer
}

func (c *callSession) other(uid domain.UserID) (domain.UserID, bool) {
	switch uid {
	case c.caller:
		return c.receiver, true
	case c.receiver:
		return c.caller, true
	}
	return "", false
}

func (c *callSession) stopTimers() {
	if c.ringing != nil {
		c.ringing.Stop()
	}
	if c.grace != nil {
		c.grace.Stop()
	}
}

// Calls brokers the call lifecycle and relays SDP/ICE between exactly
// two participants. All relay is directed; nothing a call emits is
// visible outside its pair.
type Calls struct {
	registry    *Registry
	ringTimeout time.Duration

	mu    sync.Mutex
	calls map[domain.CallID]*callSession
	// byUser guards against a second call involving a busy participant.
	byUser map[domain.UserID]domain.CallID
}

func NewCalls(registry *Registry, ringTimeout time.Duration) *Calls {
	if ringTimeout <= 0 {
		ringTimeout = DefaultRingTimeout
	}
	return &Calls{
		registry:    registry,
		ringTimeout: ringTimeout,
		calls:       make(map[domain.CallID]*callSession),
		byUser:      make(map[domain.UserID]domain.CallID),
	}
}

type incomingCallPayload struct {
	CallID     domain.CallID   `json:"callId"`
	CallerID   domain.UserID   `json:"callerId"`
	CallerInfo domain.Profile  `json:"callerInfo"`
	CallType   domain.CallType `json:"callType"`
}

type callEventPayload struct {
	CallID        domain.CallID `json:"callId"`
	ParticipantID domain.UserID `json:"participantId,omitempty"`
	Reason        string        `json:"reason,omitempty"`
}

// Initiate creates a call session and rings the receiver. An offline
// receiver or a busy participant fails the call synchronously toward
// the caller and creates nothing; the receiver sees nothing either way
// until incoming_call.
func (c *Calls) Initiate(callID domain.CallID, caller domain.UserID, callerInfo domain.Profile, receiver domain.UserID, callType domain.CallType) {
	if callID == "" {
		callID = domain.NewCallID(caller, receiver)
	}
	if !c.registry.Online(receiver) {
		log.Info().Str("module", "app.calls").Str("call", string(callID)).Str("receiver", string(receiver)).Msg("receiver offline")
		c.fail(caller, callID, "receiver_offline")
		return
	}

	c.mu.Lock()
	if _, busy := c.byUser[caller]; busy {
		c.mu.Unlock()
		c.fail(caller, callID, "busy")
		return
	}
	if _, busy := c.byUser[receiver]; busy {
		c.mu.Unlock()
		c.fail(caller, callID, "busy")
		return
	}
	sess := &callSession{
		id:       callID,
		callType: callType,
		caller:   caller,
		receiver: receiver,
		sides: map[domain.UserID]*callSide{
			caller:   {phase: domain.PhaseCalling},
			receiver: {phase: domain.PhaseRinging},
		},
	}
	sess.ringing = time.AfterFunc(c.ringTimeout, func() {
		c.ringExpired(callID)
	})
	c.calls[callID] = sess
	c.byUser[caller] = callID
	c.byUser[receiver] = callID
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Str("caller", string(caller)).Str("receiver", string(receiver)).Str("type", string(callType)).Msg("initiate")
	c.registry.Send(receiver, encode(EvIncomingCall, incomingCallPayload{
		CallID:     callID,
		CallerID:   caller,
		CallerInfo: callerInfo,
		CallType:   callType,
	}))
}

// Accept moves both sides to connecting and tells the caller to start
// generating its offer.
func (c *Calls) Accept(callID domain.CallID, receiver domain.UserID) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok || sess.receiver != receiver {
		c.mu.Unlock()
		log.Warn().Str("module", "app.calls").Str("call", string(callID)).Msg("accept for unknown call")
		return
	}
	if !sess.sides[sess.receiver].phase.CanTransition(domain.PhaseConnecting) {
		c.mu.Unlock()
		return
	}
	sess.sides[sess.caller].phase = domain.PhaseConnecting
	sess.sides[sess.receiver].phase = domain.PhaseConnecting
	if sess.ringing != nil {
		sess.ringing.Stop()
	}
	caller := sess.caller
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("accepted")
	c.registry.Send(caller, encode(EvCallAccepted, callEventPayload{
		CallID:        callID,
		ParticipantID: receiver,
	}))
}

// Reject relays the rejection to the caller and destroys the session.
func (c *Calls) Reject(callID domain.CallID, receiver domain.UserID) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok || sess.receiver != receiver {
		c.mu.Unlock()
		log.Warn().Str("module", "app.calls").Str("call", string(callID)).Msg("reject for unknown call")
		return
	}
	c.destroyLocked(sess)
	caller := sess.caller
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("rejected")
	c.registry.Send(caller, encode(EvCallRejected, callEventPayload{
		CallID:        callID,
		ParticipantID: receiver,
	}))
}

// End tears the call down from either party. The counterpart having
// already disconnected is not an error; the session is destroyed all
// the same.
func (c *Calls) End(callID domain.CallID, participant domain.UserID) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		log.Debug().Str("module", "app.calls").Str("call", string(callID)).Msg("end for unknown call")
		return
	}
	peer, member := sess.other(participant)
	if !member {
		c.mu.Unlock()
		log.Warn().Str("module", "app.calls").Str("call", string(callID)).Str("user", string(participant)).Msg("end from non-participant")
		return
	}
	c.destroyLocked(sess)
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Str("by", string(participant)).Msg("ended")
	c.registry.Send(peer, encode(EvCallEnded, callEventPayload{
		CallID:        callID,
		ParticipantID: participant,
	}))
}

// Fail marks the reporting side failed and schedules the auto-advance
// to ended after the grace period, notifying the counterpart.
func (c *Calls) Fail(callID domain.CallID, participant domain.UserID, reason string) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return
	}
	side, member := sess.sides[participant]
	if !member || !side.phase.CanTransition(domain.PhaseFailed) {
		c.mu.Unlock()
		return
	}
	side.phase = domain.PhaseFailed
	if sess.grace == nil {
		sess.grace = time.AfterFunc(failureGrace, func() {
			c.graceExpired(callID)
		})
	}
	peer, _ := sess.other(participant)
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Str("reason", reason).Msg("failed")
	c.registry.Send(peer, encode(EvCallFailed, callEventPayload{
		CallID:        callID,
		ParticipantID: participant,
		Reason:        reason,
	}))
}

// RelayOffer forwards the caller's SDP offer to the receiver, marks the
// receiver's remote description as applied and drains the candidates
// that arrived before it, in arrival order.
func (c *Calls) RelayOffer(callID domain.CallID, from domain.UserID, offer webrtc.SessionDescription) {
	c.relayDescription(callID, from, offer, EvWebRTCOffer)
}

// RelayAnswer mirrors RelayOffer toward the caller.
func (c *Calls) RelayAnswer(callID domain.CallID, from domain.UserID, answer webrtc.SessionDescription) {
	c.relayDescription(callID, from, answer, EvWebRTCAnswer)
}

type sdpPayload struct {
	CallID   domain.CallID             `json:"callId"`
	SenderID domain.UserID             `json:"senderId"`
	SDP      webrtc.SessionDescription `json:"sdp"`
}

type icePayload struct {
	CallID    domain.CallID           `json:"callId"`
	SenderID  domain.UserID           `json:"senderId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (c *Calls) relayDescription(callID domain.CallID, from domain.UserID, sdp webrtc.SessionDescription, event string) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		log.Warn().Str("module", "app.calls").Str("call", string(callID)).Str("event", event).Msg("sdp for unknown call")
		return
	}
	peer, member := sess.other(from)
	if !member {
		c.mu.Unlock()
		log.Warn().Str("module", "app.calls").Str("call", string(callID)).Str("user", string(from)).Msg("sdp from non-participant")
		return
	}
	peerSide := sess.sides[peer]
	peerSide.remoteDescSet = true
	queued := peerSide.pendingICE
	peerSide.pendingICE = nil
	if event == EvWebRTCAnswer {
		// Answer relayed means both ends hold both descriptions.
		for _, side := range sess.sides {
			if side.phase.CanTransition(domain.PhaseConnected) {
				side.phase = domain.PhaseConnected
			}
		}
	}
	c.mu.Unlock()

	c.registry.Send(peer, encode(event, sdpPayload{CallID: callID, SenderID: from, SDP: sdp}))
	for _, cand := range queued {
		c.registry.Send(peer, encode(EvICECandidate, icePayload{CallID: callID, SenderID: from, Candidate: cand}))
	}
	if len(queued) > 0 {
		log.Debug().Str("module", "app.calls").Str("call", string(callID)).Int("drained", len(queued)).Msg("flushed queued candidates")
	}
}

// RelayCandidate forwards an ICE candidate to the counterpart, or
// queues it in arrival order while the counterpart's remote description
// is still outstanding. Queued candidates are never dropped.
func (c *Calls) RelayCandidate(callID domain.CallID, from domain.UserID, cand webrtc.ICECandidateInit) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		log.Debug().Str("module", "app.calls").Str("call", string(callID)).Msg("candidate for unknown call")
		return
	}
	peer, member := sess.other(from)
	if !member {
		c.mu.Unlock()
		return
	}
	peerSide := sess.sides[peer]
	if !peerSide.remoteDescSet {
		peerSide.pendingICE = append(peerSide.pendingICE, cand)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.registry.Send(peer, encode(EvICECandidate, icePayload{CallID: callID, SenderID: from, Candidate: cand}))
}

// OnDisconnect ends any call the user participates in so the peer
// observes a call_ended rather than a silent vanish.
func (c *Calls) OnDisconnect(uid domain.UserID) {
	c.mu.Lock()
	callID, ok := c.byUser[uid]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.End(callID, uid)
}

// Active reports the call a user is currently in, if any.
func (c *Calls) Active(uid domain.UserID) (domain.CallID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byUser[uid]
	return id, ok
}

func (c *Calls) fail(caller domain.UserID, callID domain.CallID, reason string) {
	c.registry.Send(caller, encode(EvCallFailed, callEventPayload{
		CallID: callID,
		Reason: reason,
	}))
}

func (c *Calls) ringExpired(callID domain.CallID) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok || sess.sides[sess.receiver].phase != domain.PhaseRinging {
		c.mu.Unlock()
		return
	}
	c.destroyLocked(sess)
	caller, receiver := sess.caller, sess.receiver
	c.mu.Unlock()

	log.Info().Str("module", "app.calls").Str("call", string(callID)).Msg("ringing timed out")
	frame := encode(EvCallEnded, callEventPayload{CallID: callID, Reason: "timeout"})
	c.registry.Send(caller, frame)
	c.registry.Send(receiver, frame)
}

func (c *Calls) graceExpired(callID domain.CallID) {
	c.mu.Lock()
	sess, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.destroyLocked(sess)
	caller, receiver := sess.caller, sess.receiver
	c.mu.Unlock()

	frame := encode(EvCallEnded, callEventPayload{CallID: callID, Reason: "failed"})
	c.registry.Send(caller, frame)
	c.registry.Send(receiver, frame)
}

// destroyLocked removes the session and its queues. Caller holds c.mu.
func (c *Calls) destroyLocked(sess *callSession) {
	sess.stopTimers()
	for _, side := range sess.sides {
		side.pendingICE = nil
	}
	delete(c.calls, sess.id)
	if c.byUser[sess.caller] == sess.id {
		delete(c.byUser, sess.caller)
	}
	if c.byUser[sess.receiver] == sess.id {
		delete(c.byUser, sess.receiver)
	}
}
