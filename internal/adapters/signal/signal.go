// Package signal is the websocket adapter: it upgrades connections,
// runs one read pump and one write pump per session and translates
// wire envelopes into coordinator calls. Handlers for one session run
// sequentially on its read pump; sessions are concurrent with each
// other.
package signal

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/app"
	"github.com/vkondrav/pigeon/internal/config"
	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

type Controller struct {
	Cfg      *config.Config
	Registry *app.Registry
	Presence *app.Presence
	Typing   *app.Typing
	Delivery *app.Delivery
	Calls    *app.Calls
	Users    core.UserStore
	Convos   core.ConversationStore
	Limiter  *RateLimiter
}

func NewController(cfg *config.Config, registry *app.Registry, presence *app.Presence, typing *app.Typing, delivery *app.Delivery, calls *app.Calls, users core.UserStore, convos core.ConversationStore) *Controller {
	return &Controller{
		Cfg:      cfg,
		Registry: registry,
		Presence: presence,
		Typing:   typing,
		Delivery: delivery,
		Calls:    calls,
		Users:    users,
		Convos:   convos,
		Limiter:  NewRateLimiter(defaultEventLimit, defaultEventWindow),
	}
}

// wsConn is one user's transport. The buffered send channel plus the
// write pump keep per-recipient event order; a full buffer drops the
// frame for this consumer only.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu       sync.RWMutex
	closed   bool
	userID   domain.UserID
	admitted bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsConn) admit(uid domain.UserID) {
	c.mu.Lock()
	c.userID = uid
	c.admitted = true
	c.mu.Unlock()
}

func (c *wsConn) principal() (domain.UserID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.admitted
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the request. The auth middleware has already verified
// the principal; the registry mapping itself is created on the
// user_connected event so a client controls when it goes live.
func (ctl *Controller) Handle(c *gin.Context) {
	uid := domain.UserID(c.GetString("userId"))
	if uid == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("user", string(uid)).Msg("new WS connection")

	conn := &wsConn{
		conn:   ws,
		send:   make(chan core.Frame, 64),
		userID: uid,
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	go ctl.writePump(conn)
	go ctl.readPump(conn)
}

// disconnect runs once when the read pump exits.
func (ctl *Controller) disconnect(c *wsConn) {
	uid, admitted := c.principal()
	c.Close()
	if !admitted {
		return
	}
	ctl.retire(uid, c)
}

// retire releases everything an admitted session holds. The registry
// entry goes first (guarded against a newer connection); a stale
// disconnect releases nothing else, since the user's newer session
// still owns the rate window, typing timers and any live call.
func (ctl *Controller) retire(uid domain.UserID, t core.Transport) {
	current := ctl.Registry.Remove(uid, t)
	if current {
		ctl.Limiter.Forget(uid)
		ctl.Typing.CancelAll(uid)
		ctl.Presence.OnUserOffline(uid)
		ctl.Calls.OnDisconnect(uid)
	}
	log.Info().Str("module", "signal").Str("user", string(uid)).Bool("current", current).Msg("disconnected")
}

func (ctl *Controller) pingPeriod() time.Duration {
	if ctl.Cfg.PingPeriod > 0 {
		return ctl.Cfg.PingPeriod
	}
	return 54 * time.Second
}
