package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

// fakeTransport records every frame pushed to it, decoded back into
// envelopes so tests can assert on event order and payloads.
type fakeTransport struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) TrySend(frame core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return core.ErrConnClosed
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

type recordedEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (f *fakeTransport) events(t *testing.T) []recordedEvent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedEvent, 0, len(f.frames))
	for _, frame := range f.frames {
		var ev recordedEvent
		if err := json.Unmarshal(frame, &ev); err != nil {
			t.Fatalf("bad frame %q: %v", frame, err)
		}
		out = append(out, ev)
	}
	return out
}

func (f *fakeTransport) eventsOfType(t *testing.T, typ string) []recordedEvent {
	t.Helper()
	var out []recordedEvent
	for _, ev := range f.events(t) {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// fakeMessageStore keeps messages in a map and can be told to fail.
type fakeMessageStore struct {
	mu        sync.Mutex
	messages  map[domain.MessageID]*domain.Message
	failNext  error
	nextIDSeq int
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[domain.MessageID]*domain.Message)}
}

func (s *fakeMessageStore) takeErr() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *fakeMessageStore) InsertMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	if m.ID == "" {
		s.nextIDSeq++
		m.ID = domain.MessageID(fmt.Sprintf("m%d", s.nextIDSeq))
	}
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *fakeMessageStore) GetMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return nil, err
	}
	m, ok := s.messages[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeMessageStore) ListMessages(context.Context, string) ([]domain.Message, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeMessageStore) UpdateMessageStatus(_ context.Context, id domain.MessageID, status domain.MessageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	if m, ok := s.messages[id]; ok {
		m.Status = status
	}
	return nil
}

func (s *fakeMessageStore) UpdateMessagesStatus(ctx context.Context, ids []domain.MessageID, status domain.MessageStatus) error {
	for _, id := range ids {
		if err := s.UpdateMessageStatus(ctx, id, status); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeMessageStore) UpdateReactions(_ context.Context, id domain.MessageID, reactions []domain.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	if m, ok := s.messages[id]; ok {
		m.Reactions = reactions
	}
	return nil
}

func (s *fakeMessageStore) DeleteMessage(_ context.Context, id domain.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeErr(); err != nil {
		return err
	}
	delete(s.messages, id)
	return nil
}

func (s *fakeMessageStore) status(t *testing.T, id domain.MessageID) domain.MessageStatus {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		t.Fatalf("message %s not in store", id)
	}
	return m.Status
}

type fakeConversationStore struct{}

func (fakeConversationStore) GetOrCreateConversation(_ context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	pa, pb := domain.ParticipantPair(a, b)
	return &domain.Conversation{ID: "conv-" + string(pa) + "-" + string(pb), Participants: [2]domain.UserID{pa, pb}}, nil
}

func (fakeConversationStore) GetConversation(context.Context, string) (*domain.Conversation, error) {
	return nil, core.ErrNotFound
}

func (fakeConversationStore) ListConversations(context.Context, domain.UserID) ([]domain.Conversation, error) {
	return nil, nil
}

func (fakeConversationStore) TouchConversation(context.Context, string, domain.MessageID, domain.UserID) error {
	return nil
}

func (fakeConversationStore) ResetUnread(context.Context, string, domain.UserID) error {
	return nil
}

// fakeUserStore tracks presence writes for the presence tests.
type fakeUserStore struct {
	mu       sync.Mutex
	presence map[domain.UserID]bool
	err      error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{presence: make(map[domain.UserID]bool)}
}

func (s *fakeUserStore) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	return &domain.User{ID: id, Username: "user-" + string(id)}, nil
}

func (s *fakeUserStore) GetUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, core.ErrNotFound
}

func (s *fakeUserStore) CreateUser(context.Context, *domain.User) error { return nil }
func (s *fakeUserStore) UpdateUser(context.Context, *domain.User) error { return nil }

func (s *fakeUserStore) SetPresence(_ context.Context, id domain.UserID, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.presence[id] = online
	return nil
}

func (s *fakeUserStore) ListUsers(context.Context, domain.UserID) ([]domain.User, error) {
	return nil, nil
}
