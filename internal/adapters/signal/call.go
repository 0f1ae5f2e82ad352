package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/domain"
)

func (ctl *Controller) handleInitiateCall(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		CallID     domain.CallID   `json:"callId"`
		ReceiverID domain.UserID   `json:"receiverId"`
		CallType   domain.CallType `json:"callType"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.CallType != domain.CallAudio && p.CallType != domain.CallVideo {
		p.CallType = domain.CallVideo
	}

	// Caller info relayed to the receiver comes from the store, not the
	// payload, so a client cannot impersonate a name or avatar.
	info := domain.Profile{ID: uid}
	ctx, cancel := storeCtx()
	if u, err := ctl.Users.GetUser(ctx, uid); err == nil {
		info = u.Profile()
	} else {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("caller info lookup")
	}
	cancel()

	ctl.Calls.Initiate(p.CallID, uid, info, p.ReceiverID, p.CallType)
}

func (ctl *Controller) handleAcceptCall(c *wsConn, uid domain.UserID, data []byte) {
	callID, ok := ctl.callID(c, data)
	if !ok {
		return
	}
	ctl.Calls.Accept(callID, uid)
}

func (ctl *Controller) handleRejectCall(c *wsConn, uid domain.UserID, data []byte) {
	callID, ok := ctl.callID(c, data)
	if !ok {
		return
	}
	ctl.Calls.Reject(callID, uid)
}

func (ctl *Controller) handleEndCall(c *wsConn, uid domain.UserID, data []byte) {
	callID, ok := ctl.callID(c, data)
	if !ok {
		return
	}
	ctl.Calls.End(callID, uid)
}

// handleConnectionFailed reports a dead peer connection (ICE failure,
// media error) from the client's side; the coordinator marks that side
// failed and the grace timer tears the call down.
func (ctl *Controller) handleConnectionFailed(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		CallID domain.CallID `json:"callId"`
		Reason string        `json:"reason"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Reason == "" {
		p.Reason = "connection_failed"
	}
	ctl.Calls.Fail(p.CallID, uid, p.Reason)
}

func (ctl *Controller) handleOffer(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		CallID domain.CallID             `json:"callId"`
		SDP    webrtc.SessionDescription `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.SDP.SDP == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Calls.RelayOffer(p.CallID, uid, p.SDP)
}

func (ctl *Controller) handleAnswer(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		CallID domain.CallID             `json:"callId"`
		SDP    webrtc.SessionDescription `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.SDP.SDP == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Calls.RelayAnswer(p.CallID, uid, p.SDP)
}

func (ctl *Controller) handleCandidate(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		CallID    domain.CallID           `json:"callId"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" || p.Candidate.Candidate == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	ctl.Calls.RelayCandidate(p.CallID, uid, p.Candidate)
}

func (ctl *Controller) callID(c *wsConn, data []byte) (domain.CallID, bool) {
	var p struct {
		CallID domain.CallID `json:"callId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		ctl.sendError(c, "bad_payload")
		return "", false
	}
	return p.CallID, true
}
