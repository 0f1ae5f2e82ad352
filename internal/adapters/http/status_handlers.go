package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/app"
	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

func (h *Handlers) PostStatus(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	content := c.PostForm("content")

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
		c.JSON(http.StatusBadRequest, gin.H{"error": "status content required"})
		return
	}

	st := &domain.Status{
		UserID:      uid,
		Content:     content,
		MediaURL:    mediaURL,
		ContentType: contentType,
	}
	if err := h.Statuses.Post(c.Request.Context(), st); err != nil {
		log.Error().Err(err).Str("module", "http.status").Msg("post status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": st})
}

func (h *Handlers) ListStatuses(c *gin.Context) {
	statuses, err := h.Statuses.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

func (h *Handlers) ViewStatus(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	id := c.Param("id")

	err := h.Statuses.View(c.Request.Context(), id, uid)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "viewed"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "status not found"})
	default:
		log.Error().Err(err).Str("module", "http.status").Str("status", id).Msg("view status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
	}
}

func (h *Handlers) DeleteStatus(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	id := c.Param("id")

	err := h.Statuses.Delete(c.Request.Context(), id, uid)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	case errors.Is(err, app.ErrNotStatusOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the status owner"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "status not found"})
	default:
		log.Error().Err(err).Str("module", "http.status").Str("status", id).Msg("delete status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
	}
}
