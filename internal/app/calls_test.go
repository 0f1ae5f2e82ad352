package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/vkondrav/pigeon/internal/domain"
)

const testRingTimeout = 80 * time.Millisecond

func newTestCalls() (*Calls, *Registry) {
	r := NewRegistry()
	return NewCalls(r, testRingTimeout), r
}

func aliceProfile() domain.Profile {
	return domain.Profile{ID: "alice", Username: "alice"}
}

type callEvent struct {
	CallID        domain.CallID `json:"callId"`
	ParticipantID domain.UserID `json:"participantId"`
	Reason        string        `json:"reason"`
}

func decodeCallEvent(t *testing.T, ev recordedEvent) callEvent {
	t.Helper()
	var p callEvent
	if err := json.Unmarshal(ev.Data, &p); err != nil {
		t.Fatalf("bad call payload: %v", err)
	}
	return p
}

func TestInitiateOfflineReceiverFails(t *testing.T) {
	c, r := newTestCalls()
	caller := newFakeTransport()
	r.Admit("alice", caller)

	c.Initiate("", "alice", aliceProfile(), "bob", domain.CallVideo)

	failed := caller.eventsOfType(t, EvCallFailed)
	if len(failed) != 1 {
		t.Fatalf("call_failed events = %d, want 1", len(failed))
	}
	if got := decodeCallEvent(t, failed[0]); got.Reason != "receiver_offline" {
		t.Fatalf("reason = %q", got.Reason)
	}
	if _, active := c.Active("alice"); active {
		t.Fatalf("failed initiate must not leave a session behind")
	}
}

func TestCallFlowRelaysDescriptionsAndQueuedCandidates(t *testing.T) {
	c, r := newTestCalls()
	caller := newFakeTransport()
	receiver := newFakeTransport()
	r.Admit("alice", caller)
	r.Admit("bob", receiver)

	c.Initiate("call-1", "alice", aliceProfile(), "bob", domain.CallAudio)
	incoming := receiver.eventsOfType(t, EvIncomingCall)
	if len(incoming) != 1 {
		t.Fatalf("incoming_call events = %d, want 1", len(incoming))
	}

	c.Accept("call-1", "bob")
	if len(caller.eventsOfType(t, EvCallAccepted)) != 1 {
		t.Fatalf("caller never saw call_accepted")
	}

	// Candidates ahead of the offer must queue, then flush in arrival
	// order right after the offer is relayed.
	c.RelayCandidate("call-1", "alice", webrtc.ICECandidateInit{Candidate: "cand-1"})
	c.RelayCandidate("call-1", "alice", webrtc.ICECandidateInit{Candidate: "cand-2"})
	if n := len(receiver.eventsOfType(t, EvICECandidate)); n != 0 {
		t.Fatalf("candidate relayed before remote description, got %d", n)
	}

	c.RelayOffer("call-1", "alice", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"})

	evs := receiver.events(t)
	var order []string
	for _, ev := range evs {
		if ev.Type == EvWebRTCOffer || ev.Type == EvICECandidate {
			order = append(order, ev.Type)
		}
	}
	want := []string{EvWebRTCOffer, EvICECandidate, EvICECandidate}
	if len(order) != len(want) {
		t.Fatalf("relay order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("relay order = %v, want %v", order, want)
		}
	}
	cands := receiver.eventsOfType(t, EvICECandidate)
	var first struct {
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal(cands[0].Data, &first); err != nil {
		t.Fatalf("bad candidate payload: %v", err)
	}
	if first.Candidate.Candidate != "cand-1" {
		t.Fatalf("queued candidates flushed out of order: %q first", first.Candidate.Candidate)
	}

	// With the remote description applied, candidates pass straight through.
	c.RelayCandidate("call-1", "alice", webrtc.ICECandidateInit{Candidate: "cand-3"})
	if n := len(receiver.eventsOfType(t, EvICECandidate)); n != 3 {
		t.Fatalf("live candidate not relayed, got %d", n)
	}

	c.RelayAnswer("call-1", "bob", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"})
	if len(caller.eventsOfType(t, EvWebRTCAnswer)) != 1 {
		t.Fatalf("caller never saw the answer")
	}
}

func TestInitiateWhileBusyFails(t *testing.T) {
	c, r := newTestCalls()
	for _, uid := range []domain.UserID{"alice", "bob"} {
		r.Admit(uid, newFakeTransport())
	}
	carol := newFakeTransport()
	r.Admit("carol", carol)

	c.Initiate("call-1", "alice", aliceProfile(), "bob", domain.CallVideo)
	c.Initiate("call-2", "carol", domain.Profile{ID: "carol", Username: "carol"}, "bob", domain.CallVideo)

	failed := carol.eventsOfType(t, EvCallFailed)
	if len(failed) != 1 {
		t.Fatalf("second caller got %d call_failed, want 1", len(failed))
	}
	if got := decodeCallEvent(t, failed[0]); got.Reason != "busy" {
		t.Fatalf("reason = %q, want busy", got.Reason)
	}
	if _, active := c.Active("carol"); active {
		t.Fatalf("busy initiate must not register carol")
	}
	if id, active := c.Active("bob"); !active || id != "call-1" {
		t.Fatalf("first call disturbed: %q %v", id, active)
	}
}

func TestEndToleratesDisconnectedPeer(t *testing.T) {
	c, r := newTestCalls()
	caller := newFakeTransport()
	receiver := newFakeTransport()
	r.Admit("alice", caller)
	r.Admit("bob", receiver)

	c.Initiate("call-1", "alice", aliceProfile(), "bob", domain.CallAudio)
	c.Accept("call-1", "bob")
	r.Remove("bob", receiver)

	c.End("call-1", "alice")
	if _, active := c.Active("alice"); active {
		t.Fatalf("session survived End")
	}
	if _, active := c.Active("bob"); active {
		t.Fatalf("receiver still marked busy")
	}
}

func TestDisconnectEndsActiveCall(t *testing.T) {
	c, r := newTestCalls()
	caller := newFakeTransport()
	receiver := newFakeTransport()
	r.Admit("alice", caller)
	r.Admit("bob", receiver)

	c.Initiate("call-1", "alice", aliceProfile(), "bob", domain.CallVideo)
	c.Accept("call-1", "bob")

	c.OnDisconnect("bob")
	ended := caller.eventsOfType(t, EvCallEnded)
	if len(ended) != 1 {
		t.Fatalf("caller got %d call_ended, want 1", len(ended))
	}
	if got := decodeCallEvent(t, ended[0]); got.ParticipantID != "bob" {
		t.Fatalf("participantId = %q", got.ParticipantID)
	}
	if _, active := c.Active("alice"); active {
		t.Fatalf("caller still marked busy after peer disconnect")
	}
}

func TestRejectNotifiesCaller(t *testing.T) {
	c, r := newTestCalls()
	caller := newFakeTransport()
	r.Admit("alice", caller)
	r.Admit("bob", newFakeTransport())

	c.Initiate("call-1", "alice", aliceProfile(), "bob", domain.CallVideo)
	c.Reject("call-1", "bob")

	if len(caller.eventsOfType(t, EvCallRejected)) != 1 {
		t.Fatalf("caller never saw call_rejected")
	}
	if _, active := c.Active("alice"); active {
		t.Fatalf("rejected call left a session behind")
	}
}

func TestFailNotifiesPeerWithReason(t *testing.T) {
	c, r := newTestCalls()
	caller := newFakeTransport()
	r.Admit("alice", caller)
	r.Admit("bob", newFakeTransport())

	c.Initiate("call-1", "alice", aliceProfile(), "bob", domain.CallVideo)
	c.Accept("call-1", "bob")
	c.Fail("call-1", "bob", "ice_failed")

	failed := caller.eventsOfType(t, EvCallFailed)
	if len(failed) != 1 {
		t.Fatalf("caller got %d call_failed, want 1", len(failed))
	}
	if got := decodeCallEvent(t, failed[0]); got.Reason != "ice_failed" || got.ParticipantID != "bob" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestUnansweredCallTimesOut(t *testing.T) {
	c, r := newTestCalls()
	caller := newFakeTransport()
	receiver := newFakeTransport()
	r.Admit("alice", caller)
	r.Admit("bob", receiver)

	c.Initiate("call-1", "alice", aliceProfile(), "bob", domain.CallAudio)

	deadline := time.After(time.Second)
	for {
		if len(caller.eventsOfType(t, EvCallEnded)) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("ringing never timed out")
		case <-time.After(10 * time.Millisecond):
		}
	}
	ended := caller.eventsOfType(t, EvCallEnded)
	if got := decodeCallEvent(t, ended[0]); got.Reason != "timeout" {
		t.Fatalf("reason = %q, want timeout", got.Reason)
	}
	if len(receiver.eventsOfType(t, EvCallEnded)) != 1 {
		t.Fatalf("receiver missed the timeout notification")
	}
	if _, active := c.Active("alice"); active {
		t.Fatalf("timed-out call left a session behind")
	}

	// Accept landing after the timeout is a no-op.
	c.Accept("call-1", "bob")
	if len(caller.eventsOfType(t, EvCallAccepted)) != 0 {
		t.Fatalf("stale accept produced call_accepted")
	}
}
