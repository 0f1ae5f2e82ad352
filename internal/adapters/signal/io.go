package signal

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(c *wsConn) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(c *wsConn) {
	defer ctl.disconnect(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				uid, _ := c.principal()
				log.Warn().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("readPump read error")
			}
			return
		}
		ctl.dispatch(c, data)
	}
}

// dispatch routes one envelope. Malformed payloads are dropped and
// logged; they never take the session down.
func (ctl *Controller) dispatch(c *wsConn, data []byte) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	if env.Type == "ping" {
		ctl.sendJSON(c, map[string]string{"type": "pong"})
		return
	}
	if env.Type == "user_connected" {
		ctl.handleUserConnected(c)
		return
	}

	uid, admitted := c.principal()
	if !admitted {
		ctl.sendError(c, "not_connected")
		return
	}
	if !ctl.Limiter.Allow(uid) {
		ctl.sendError(c, "rate_limited")
		return
	}

	switch env.Type {
	case "get_user_status":
		ctl.handleGetUserStatus(c, env.Data)
	case "send_message":
		ctl.handleSendMessage(c, uid, env.Data)
	case "message_read":
		ctl.handleMessageRead(c, uid, env.Data)
	case "add_reaction":
		ctl.handleAddReaction(c, uid, env.Data)
	case "delete_message":
		ctl.handleDeleteMessage(c, uid, env.Data)
	case "typing_start":
		ctl.handleTyping(c, uid, env.Data, true)
	case "typing_stop":
		ctl.handleTyping(c, uid, env.Data, false)
	case "initiate_call":
		ctl.handleInitiateCall(c, uid, env.Data)
	case "accept_call":
		ctl.handleAcceptCall(c, uid, env.Data)
	case "reject_call":
		ctl.handleRejectCall(c, uid, env.Data)
	case "end_call":
		ctl.handleEndCall(c, uid, env.Data)
	case "connection_failed":
		ctl.handleConnectionFailed(c, uid, env.Data)
	case "webrtc_offer":
		ctl.handleOffer(c, uid, env.Data)
	case "webrtc_answer":
		ctl.handleAnswer(c, uid, env.Data)
	case "webrtc_ice_candidate":
		ctl.handleCandidate(c, uid, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsConn, code string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": code,
	})
}
