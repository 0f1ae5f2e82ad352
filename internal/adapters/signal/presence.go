package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/domain"
)

// handleUserConnected admits the session into the registry. The
// principal came from the verified token, never from the payload; a
// replaced older connection for the same user is closed here since the
// transport layer owns transport lifecycles.
func (ctl *Controller) handleUserConnected(c *wsConn) {
	uid, already := c.principal()
	c.admit(uid)
	if old := ctl.Registry.Admit(uid, c); old != nil && old != c {
		old.Close()
	}
	if !already {
		ctl.Presence.OnUserOnline(uid)
	}
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("user connected")
}

func (ctl *Controller) handleGetUserStatus(c *wsConn, data []byte) {
	var p struct {
		UserID domain.UserID `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	status := ctl.Presence.QueryStatus(p.UserID)
	ctl.sendJSON(c, map[string]any{
		"type": "user_status",
		"data": status,
	})
}

func (ctl *Controller) handleTyping(c *wsConn, uid domain.UserID, data []byte, start bool) {
	var p struct {
		ConversationID string        `json:"conversationId"`
		ReceiverID     domain.UserID `json:"receiverId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ConversationID == "" || p.ReceiverID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if start {
		ctl.Typing.Start(uid, p.ConversationID, p.ReceiverID)
	} else {
		ctl.Typing.Stop(uid, p.ConversationID, p.ReceiverID)
	}
}
