package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

const storeTimeout = 10 * time.Second

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

// handleSendMessage persists and delivers a message submitted over the
// socket. The sender id always comes from the session principal.
func (ctl *Controller) handleSendMessage(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		ReceiverID  domain.UserID      `json:"receiverId"`
		Content     string             `json:"content"`
		MediaURL    string             `json:"mediaUrl"`
		ContentType domain.ContentType `json:"contentType"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ReceiverID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.ContentType == "" {
		p.ContentType = domain.ContentText
	}
	if p.Content == "" && p.MediaURL == "" {
		ctl.sendError(c, "empty_message")
		return
	}

	ctx, cancel := storeCtx()
	defer cancel()

	conv, err := ctl.Convos.GetOrCreateConversation(ctx, uid, p.ReceiverID)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("resolve conversation")
		ctl.sendJSON(c, map[string]any{"type": "message_error", "error": "failed to send message"})
		return
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       uid,
		ReceiverID:     p.ReceiverID,
		Content:        p.Content,
		MediaURL:       p.MediaURL,
		ContentType:    p.ContentType,
		Status:         domain.StatusSent,
		CreatedAt:      time.Now(),
	}
	if err := ctl.Delivery.Submit(ctx, msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(uid)).Msg("submit message")
		ctl.sendJSON(c, map[string]any{"type": "message_error", "error": "failed to send message"})
		return
	}
	// Echo the persisted message (id, status) back to the sender.
	ctl.sendJSON(c, map[string]any{"type": "message_sent", "data": msg})
}

func (ctl *Controller) handleMessageRead(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		MessageIDs []domain.MessageID `json:"messageIds"`
		SenderID   domain.UserID      `json:"senderId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || len(p.MessageIDs) == 0 {
		ctl.sendError(c, "bad_payload")
		return
	}

	ctx, cancel := storeCtx()
	defer cancel()
	if err := ctl.Delivery.MarkRead(ctx, p.MessageIDs, p.SenderID); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("reader", string(uid)).Msg("mark read")
		ctl.sendError(c, "store_failure")
	}
}

func (ctl *Controller) handleAddReaction(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		MessageID domain.MessageID `json:"messageId"`
		Emoji     string           `json:"emoji"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" || p.Emoji == "" {
		ctl.sendError(c, "bad_payload")
		return
	}

	ctx, cancel := storeCtx()
	defer cancel()
	if err := ctl.Delivery.React(ctx, p.MessageID, uid, p.Emoji); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("message", string(p.MessageID)).Msg("react")
		ctl.sendError(c, "store_failure")
	}
}

func (ctl *Controller) handleDeleteMessage(c *wsConn, uid domain.UserID, data []byte) {
	var p struct {
		MessageID domain.MessageID `json:"messageId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == "" {
		ctl.sendError(c, "bad_payload")
		return
	}

	ctx, cancel := storeCtx()
	defer cancel()
	err := ctl.Delivery.Delete(ctx, p.MessageID, uid)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotMessageOwner):
		ctl.sendError(c, "not_owner")
	case errors.Is(err, core.ErrNotFound):
		ctl.sendError(c, "not_found")
	default:
		log.Error().Err(err).Str("module", "signal").Str("message", string(p.MessageID)).Msg("delete")
		ctl.sendError(c, "store_failure")
	}
}
