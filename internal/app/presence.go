package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

// Presence derives online/offline from registry mutations, persists
// lastSeen fire-and-forget and broadcasts every flip to all sessions.
type Presence struct {
	registry *Registry
	users    core.UserStore
}

func NewPresence(registry *Registry, users core.UserStore) *Presence {
	return &Presence{registry: registry, users: users}
}

func (p *Presence) OnUserOnline(uid domain.UserID) {
	p.persist(uid, true)
	p.registry.Broadcast(encode(EvUserStatus, domain.Presence{
		UserID:   uid,
		IsOnline: true,
		LastSeen: time.Now(),
	}))
}

func (p *Presence) OnUserOffline(uid domain.UserID) {
	p.persist(uid, false)
	p.registry.Broadcast(encode(EvUserStatus, domain.Presence{
		UserID:   uid,
		IsOnline: false,
		LastSeen: time.Now(),
	}))
}

// persist writes the flip to the durable store in the background.
// Failure is logged and not retried; live broadcasts do not wait on it.
func (p *Presence) persist(uid domain.UserID, online bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.users.SetPresence(ctx, uid, online); err != nil {
			log.Warn().Err(err).Str("module", "app.presence").Str("user", string(uid)).Msg("persist presence")
		}
	}()
}

// QueryStatus answers from the in-memory registry only; a freshly
// connected client uses it to bootstrap its contact list.
func (p *Presence) QueryStatus(uid domain.UserID) domain.Presence {
	if p.registry.Online(uid) {
		return domain.Presence{UserID: uid, IsOnline: true, LastSeen: time.Now()}
	}
	return domain.Presence{UserID: uid, IsOnline: false}
}
