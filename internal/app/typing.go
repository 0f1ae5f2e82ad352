package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vkondrav/pigeon/internal/domain"
)

// DefaultTypingTimeout is how long a typing indicator survives without
// a fresh typing_start. Clients are not trusted to send typing_stop
// (tab close, crash); the receiver must never see a stale indicator
// longer than this.
const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	user         domain.UserID
	conversation string
}

type typingEntry struct {
	timer    *time.Timer
	receiver domain.UserID
}

// Typing is the per-(user, conversation) debounced typing indicator.
type Typing struct {
	registry *Registry
	timeout  time.Duration

	mu     sync.Mutex
	active map[typingKey]*typingEntry
}

func NewTyping(registry *Registry, timeout time.Duration) *Typing {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &Typing{
		registry: registry,
		timeout:  timeout,
		active:   make(map[typingKey]*typingEntry),
	}
}

type typingPayload struct {
	UserID         domain.UserID `json:"userId"`
	ConversationID string        `json:"conversationId"`
	IsTyping       bool          `json:"isTyping"`
}

// Start notifies the receiver once per burst and (re)arms the auto-stop
// timer. Repeated starts only push the deadline.
func (t *Typing) Start(uid domain.UserID, conversationID string, receiver domain.UserID) {
	key := typingKey{user: uid, conversation: conversationID}

	t.mu.Lock()
	old, running := t.active[key]
	if running {
		old.timer.Stop()
	}
	// A fresh entry per (re)arm: an already-fired timer waiting on the
	// lock sees a different entry in the map and backs off.
	entry := &typingEntry{receiver: receiver}
	entry.timer = time.AfterFunc(t.timeout, func() {
		t.expire(key, entry)
	})
	t.active[key] = entry
	t.mu.Unlock()

	if !running {
		t.notify(uid, conversationID, receiver, true)
	}
}

// Stop cancels the timer if one is armed and always notifies false;
// a stop for an already-idle pair is a harmless repeat.
func (t *Typing) Stop(uid domain.UserID, conversationID string, receiver domain.UserID) {
	key := typingKey{user: uid, conversation: conversationID}
	t.mu.Lock()
	if entry, ok := t.active[key]; ok {
		entry.timer.Stop()
		delete(t.active, key)
	}
	t.mu.Unlock()
	t.notify(uid, conversationID, receiver, false)
}

// CancelAll drops every timer a disconnecting user owns, notifying
// each receiver so no indicator is left hanging.
func (t *Typing) CancelAll(uid domain.UserID) {
	type pending struct {
		conversation string
		receiver     domain.UserID
	}
	t.mu.Lock()
	var stopped []pending
	for key, entry := range t.active {
		if key.user != uid {
			continue
		}
		entry.timer.Stop()
		stopped = append(stopped, pending{conversation: key.conversation, receiver: entry.receiver})
		delete(t.active, key)
	}
	t.mu.Unlock()
	for _, p := range stopped {
		t.notify(uid, p.conversation, p.receiver, false)
	}
}

func (t *Typing) expire(key typingKey, entry *typingEntry) {
	t.mu.Lock()
	cur, ok := t.active[key]
	if !ok || cur != entry {
		// A stop or a re-arm raced the expiry; nothing to do.
		t.mu.Unlock()
		return
	}
	delete(t.active, key)
	receiver := entry.receiver
	t.mu.Unlock()

	log.Debug().Str("module", "app.typing").Str("user", string(key.user)).Str("conversation", key.conversation).Msg("typing timeout")
	t.notify(key.user, key.conversation, receiver, false)
}

func (t *Typing) notify(uid domain.UserID, conversationID string, receiver domain.UserID, isTyping bool) {
	t.registry.Send(receiver, encode(EvUserTyping, typingPayload{
		UserID:         uid,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	}))
}
