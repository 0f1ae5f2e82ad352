// Package http wires the gin router: auth, chat and status REST plus
// the websocket signaling endpoint.
package http

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/vkondrav/pigeon/internal/adapters/signal"
	"github.com/vkondrav/pigeon/internal/app"
	"github.com/vkondrav/pigeon/internal/auth"
	"github.com/vkondrav/pigeon/internal/config"
	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/email"
	"github.com/vkondrav/pigeon/internal/media"
)

const authCookie = "auth_token"

type Handlers struct {
	Cfg      *config.Config
	Users    core.UserStore
	Convos   core.ConversationStore
	Messages core.MessageStore
	Delivery *app.Delivery
	Statuses *app.Statuses
	Media    *media.Store
	Mail     *email.Client
}

// AuthRequired resolves the principal from the auth cookie, a bearer
// header or (for websocket clients) a query parameter. Invalid tokens
// reject the request, nothing else.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(authCookie)
		if token == "" {
			if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if token == "" {
			token = c.Query("token")
		}
		uid, err := auth.VerifyToken(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set("userId", string(uid))
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, h *Handlers, ws *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PigeonSession", store))

	r.Static("/media", h.Media.BasePath())

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/send-otp", h.SendOTP)
	authGroup.POST("/verify-otp", h.VerifyOTP)
	authGroup.POST("/logout", h.Logout)

	authed := api.Group("")
	authed.Use(AuthRequired(cfg.Secret))

	authed.GET("/auth/check-auth", h.CheckAuth)
	authed.PUT("/auth/update-profile", h.UpdateProfile)
	authed.GET("/auth/users", h.ListUsers)

	chat := authed.Group("/chat")
	chat.POST("/send-message", h.SendMessage)
	chat.GET("/conversations", h.ListConversations)
	chat.GET("/conversations/:id/messages", h.ListMessages)
	chat.PUT("/messages/read", h.MarkRead)
	chat.DELETE("/messages/:id", h.DeleteMessage)

	status := authed.Group("/status")
	status.POST("", h.PostStatus)
	status.GET("", h.ListStatuses)
	status.PUT("/:id/view", h.ViewStatus)
	status.DELETE("/:id", h.DeleteStatus)

	authed.GET("/ws/signal", func(c *gin.Context) {
		ws.Handle(c)
	})

	return r
}
