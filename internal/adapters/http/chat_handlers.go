package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

// SendMessage is the REST submission path: multipart with an optional
// media file, or a plain form/JSON text body. Persistence and live
// delivery both go through the pipeline.
func (h *Handlers) SendMessage(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	receiver := domain.UserID(c.PostForm("receiverId"))
	content := c.PostForm("content")
	if receiver == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiverId required"})
		return
	}

	contentType := domain.ContentText
	mediaURL := ""
	if file, err := c.FormFile("file"); err == nil {
		up, err := h.Media.Save(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mediaURL = up.URL
		contentType = up.ContentType
	} else if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message content required"})
		return
	}

	conv, err := h.Convos.GetOrCreateConversation(c.Request.Context(), uid, receiver)
	if err != nil {
		log.Error().Err(err).Str("module", "http.chat").Msg("resolve conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       uid,
		ReceiverID:     receiver,
		Content:        content,
		MediaURL:       mediaURL,
		ContentType:    contentType,
		Status:         domain.StatusSent,
		CreatedAt:      time.Now(),
	}
	if err := h.Delivery.Submit(c.Request.Context(), msg); err != nil {
		log.Error().Err(err).Str("module", "http.chat").Msg("submit message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *Handlers) ListConversations(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	convos, err := h.Convos.ListConversations(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convos})
}

// ListMessages returns conversation history and resets the caller's
// unread counter. This fetch is also how an offline receiver catches
// up on messages stuck at "sent"; the server never redelivers them.
func (h *Handlers) ListMessages(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	id := c.Param("id")

	conv, err := h.Convos.GetConversation(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if conv.Other(uid) == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
		return
	}

	msgs, err := h.Messages.ListMessages(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	if err := h.Convos.ResetUnread(c.Request.Context(), id, uid); err != nil {
		log.Warn().Err(err).Str("module", "http.chat").Str("conversation", id).Msg("reset unread")
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handlers) MarkRead(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	var req struct {
		MessageIDs []domain.MessageID `json:"messageIds" binding:"required"`
		SenderID   domain.UserID      `json:"senderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messageIds and senderId required"})
		return
	}
	if err := h.Delivery.MarkRead(c.Request.Context(), req.MessageIDs, req.SenderID); err != nil {
		log.Error().Err(err).Str("module", "http.chat").Str("reader", string(uid)).Msg("mark read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}

func (h *Handlers) DeleteMessage(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	id := domain.MessageID(c.Param("id"))

	err := h.Delivery.Delete(c.Request.Context(), id, uid)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	case errors.Is(err, domain.ErrNotMessageOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the message owner"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	default:
		log.Error().Err(err).Str("module", "http.chat").Str("message", string(id)).Msg("delete message")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
	}
}
