package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

// Registry maps a user to exactly one live transport. A newer connection
// for the same user replaces the old mapping (last-writer-wins); the
// orphaned transport is returned to the caller, which owns closing it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]core.Transport
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]core.Transport),
	}
}

// Admit binds uid to t, replacing any prior mapping. Returns the
// replaced transport, if any.
func (r *Registry) Admit(uid domain.UserID, t core.Transport) core.Transport {
	r.mu.Lock()
	old := r.sessions[uid]
	r.sessions[uid] = t
	r.mu.Unlock()
	if old != nil {
		log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("replaced session")
	} else {
		log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("bound session")
	}
	return old
}

func (r *Registry) Resolve(uid domain.UserID) (core.Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.sessions[uid]
	return t, ok
}

func (r *Registry) Online(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[uid]
	return ok
}

// Remove deletes the mapping for uid only while it still points at t.
// A disconnect of a connection that was already replaced by a newer one
// must not tear down the newer mapping.
func (r *Registry) Remove(uid domain.UserID, t core.Transport) bool {
	r.mu.Lock()
	cur, ok := r.sessions[uid]
	if !ok || cur != t {
		r.mu.Unlock()
		log.Debug().Str("module", "app.registry").Str("user", string(uid)).Msg("stale disconnect ignored")
		return false
	}
	delete(r.sessions, uid)
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Msg("unbound session")
	return true
}

// Broadcast pushes f to every connected session. Slow consumers drop
// the frame; that is their problem, not the broadcaster's.
func (r *Registry) Broadcast(f core.Frame) {
	if f == nil {
		return
	}
	r.mu.RLock()
	targets := make([]core.Transport, 0, len(r.sessions))
	for _, t := range r.sessions {
		targets = append(targets, t)
	}
	r.mu.RUnlock()
	for _, t := range targets {
		_ = t.TrySend(f)
	}
}

// Send delivers f to uid's session if one exists. Absence is not an
// error, it is the steady state for offline users.
func (r *Registry) Send(uid domain.UserID, f core.Frame) bool {
	if f == nil {
		return false
	}
	t, ok := r.Resolve(uid)
	if !ok {
		return false
	}
	if err := t.TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "app.registry").Str("user", string(uid)).Msg("send dropped")
		return false
	}
	return true
}
