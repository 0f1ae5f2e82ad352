package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

var ErrNotStatusOwner = errors.New("not the status owner")

// Statuses owns the ephemeral story posts: persistence plus the
// realtime fan-out around them. Posts and deletions are broadcast to
// everyone; view receipts go to the owner only.
type Statuses struct {
	registry *Registry
	store    core.StatusStore
}

func NewStatuses(registry *Registry, store core.StatusStore) *Statuses {
	return &Statuses{registry: registry, store: store}
}

func (s *Statuses) Post(ctx context.Context, st *domain.Status) error {
	now := time.Now()
	st.CreatedAt = now
	st.ExpiresAt = now.Add(domain.StatusTTL)
	if st.ViewedBy == nil {
		st.ViewedBy = []domain.UserID{}
	}
	if err := s.store.InsertStatus(ctx, st); err != nil {
		return fmt.Errorf("persist status: %w", err)
	}
	s.registry.Broadcast(encode(EvNewStatus, st))
	return nil
}

func (s *Statuses) List(ctx context.Context) ([]domain.Status, error) {
	return s.store.ListActiveStatuses(ctx)
}

type statusViewedPayload struct {
	StatusID string        `json:"statusId"`
	ViewerID domain.UserID `json:"viewerId"`
}

// View records the viewer and tells the owner. Repeat views change
// nothing and notify nobody.
func (s *Statuses) View(ctx context.Context, id string, viewer domain.UserID) error {
	st, err := s.store.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if st.Expired(time.Now()) || viewer == st.UserID {
		return nil
	}
	if !st.MarkViewed(viewer) {
		return nil
	}
	if err := s.store.UpdateStatusViewers(ctx, id, st.ViewedBy); err != nil {
		return fmt.Errorf("persist viewers: %w", err)
	}
	s.registry.Send(st.UserID, encode(EvStatusViewed, statusViewedPayload{
		StatusID: id,
		ViewerID: viewer,
	}))
	return nil
}

type statusDeletedPayload struct {
	StatusID string `json:"statusId"`
}

func (s *Statuses) Delete(ctx context.Context, id string, requester domain.UserID) error {
	st, err := s.store.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if st.UserID != requester {
		return ErrNotStatusOwner
	}
	if err := s.store.DeleteStatus(ctx, id); err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	s.registry.Broadcast(encode(EvStatusDeleted, statusDeletedPayload{StatusID: id}))
	return nil
}
