// Package app holds the realtime coordinator: the connection registry
// and the components that consume it (presence, typing, message
// delivery, call signaling). All shared maps live behind component
// locks; no store call is issued while a lock is held.
package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/core"
)

// Server-pushed event names. Client-to-server names live in the signal
// adapter; these are the ones the coordinator itself emits.
const (
	EvUserStatus     = "user_status"
	EvReceiveMessage = "receive_message"
	EvMessageStatus  = "message_status_update"
	EvReactionUpdate = "reaction_update"
	EvMessageDeleted = "message_deleted"
	EvUserTyping     = "user_typing"
	EvIncomingCall   = "incoming_call"
	EvCallAccepted   = "call_accepted"
	EvCallRejected   = "call_rejected"
	EvCallEnded      = "call_ended"
	EvCallFailed     = "call_failed"
	EvWebRTCOffer    = "webrtc_offer"
	EvWebRTCAnswer   = "webrtc_answer"
	EvICECandidate   = "webrtc_ice_candidate"
	EvNewStatus      = "new_status"
	EvStatusDeleted  = "status_deleted"
	EvStatusViewed   = "status_viewed"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// encode wraps a payload in the wire envelope. A marshal failure is a
// programming error on our side; log and return nil so TrySend no-ops.
func encode(event string, data any) core.Frame {
	b, err := json.Marshal(envelope{Type: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("module", "app").Str("event", event).Msg("encode")
		return nil
	}
	return b
}
