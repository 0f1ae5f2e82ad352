package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/auth"
	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

const (
	sessionOTPEmail  = "otp_email"
	sessionOTPHash   = "otp_hash"
	sessionOTPIssued = "otp_issued"
)

// SendOTP mails a login code and keeps only its hash, in the signed
// session cookie.
func (h *Handlers) SendOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email required"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	code, err := auth.GenerateOTP()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate code"})
		return
	}
	hash, err := auth.HashOTP(code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate code"})
		return
	}

	sess := sessions.Default(c)
	sess.Set(sessionOTPEmail, req.Email)
	sess.Set(sessionOTPHash, hash)
	sess.Set(sessionOTPIssued, time.Now().Unix())
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session save failed"})
		return
	}

	if err := h.Mail.SendOTP(req.Email, code); err != nil {
		log.Error().Err(err).Str("module", "http.auth").Str("email", req.Email).Msg("send otp")
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not send code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "otp sent"})
}

// VerifyOTP redeems the code, creating the user on first login, and
// sets the auth cookie.
func (h *Handlers) VerifyOTP(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		OTP      string `json:"otp" binding:"required"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and otp required"})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	sess := sessions.Default(c)
	email, _ := sess.Get(sessionOTPEmail).(string)
	hash, _ := sess.Get(sessionOTPHash).(string)
	issued, _ := sess.Get(sessionOTPIssued).(int64)
	if email == "" || hash == "" || email != req.Email {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no pending code for this email"})
		return
	}
	if err := auth.CheckOTP(hash, req.OTP, time.Unix(issued, 0)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired code"})
		return
	}

	sess.Delete(sessionOTPEmail)
	sess.Delete(sessionOTPHash)
	sess.Delete(sessionOTPIssued)
	_ = sess.Save()

	user, err := h.Users.GetUserByEmail(c.Request.Context(), req.Email)
	switch {
	case errors.Is(err, core.ErrNotFound):
		username := req.Username
		if username == "" {
			username = strings.SplitN(req.Email, "@", 2)[0]
		}
		user = &domain.User{Username: username, Email: req.Email}
		if err := h.Users.CreateUser(c.Request.Context(), user); err != nil {
			log.Error().Err(err).Str("module", "http.auth").Msg("create user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
			return
		}
	case err != nil:
		log.Error().Err(err).Str("module", "http.auth").Msg("lookup user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}

	token, err := auth.GenerateToken(user.ID, h.Cfg.Secret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.SetCookie(authCookie, token, 3600*24*30, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}

func (h *Handlers) Logout(c *gin.Context) {
	c.SetCookie(authCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handlers) CheckAuth(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	user, err := h.Users.GetUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile edits username/about and optionally replaces the
// avatar from a multipart upload.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	user, err := h.Users.GetUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	if username := c.PostForm("username"); username != "" {
		if err := user.SetUsername(username); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if about := c.PostForm("about"); about != "" {
		if len(about) > domain.MaxAboutLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "about too long"})
			return
		}
		user.About = about
	}
	if file, err := c.FormFile("avatar"); err == nil {
		up, err := h.Media.Save(file)
		if err != nil || up.ContentType != domain.ContentImage {
			c.JSON(http.StatusBadRequest, gin.H{"error": "avatar must be an image"})
			return
		}
		user.Avatar = up.URL
	}

	if err := h.Users.UpdateUser(c.Request.Context(), user); err != nil {
		log.Error().Err(err).Str("module", "http.auth").Str("user", string(uid)).Msg("update profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListUsers returns everyone except the caller, for the contact list.
func (h *Handlers) ListUsers(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	users, err := h.Users.ListUsers(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failure"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
