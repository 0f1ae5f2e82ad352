package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vkondrav/pigeon/internal/core"
	"github.com/vkondrav/pigeon/internal/domain"
)

func (s *Store) GetOrCreateConversation(ctx context.Context, a, b domain.UserID) (*domain.Conversation, error) {
	pa, pb := domain.ParticipantPair(a, b)

	conv, err := s.findConversation(ctx, pa, pb)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	conv = &domain.Conversation{
		ID:           newID(),
		Participants: [2]domain.UserID{pa, pb},
		UnreadCount:  map[domain.UserID]int{},
		UpdatedAt:    time.Now(),
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO conversations (id, participant_a, participant_b, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, string(pa), string(pb), conv.UpdatedAt)
	if err != nil {
		// A concurrent insert for the same pair loses the race on the
		// unique index; re-read instead of failing the send.
		if existing, ferr := s.findConversation(ctx, pa, pb); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	return conv, nil
}

func (s *Store) findConversation(ctx context.Context, pa, pb domain.UserID) (*domain.Conversation, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_id, unread_a, unread_b, updated_at
		 FROM conversations WHERE participant_a = ? AND participant_b = ?`, string(pa), string(pb))
	return scanConversation(row)
}

func (s *Store) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_id, unread_a, unread_b, updated_at
		 FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

func (s *Store) ListConversations(ctx context.Context, uid domain.UserID) ([]domain.Conversation, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, participant_a, participant_b, last_message_id, unread_a, unread_b, updated_at
		 FROM conversations WHERE participant_a = ? OR participant_b = ? ORDER BY updated_at DESC`,
		string(uid), string(uid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, rows.Err()
}

// TouchConversation records the newest message and bumps the unread
// counter for the receiving side.
func (s *Store) TouchConversation(ctx context.Context, id string, lastMessage domain.MessageID, unreadFor domain.UserID) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE conversations SET
			last_message_id = ?,
			unread_a = unread_a + (CASE WHEN participant_a = ? THEN 1 ELSE 0 END),
			unread_b = unread_b + (CASE WHEN participant_b = ? THEN 1 ELSE 0 END),
			updated_at = ?
		 WHERE id = ?`,
		string(lastMessage), string(unreadFor), string(unreadFor), time.Now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ResetUnread(ctx context.Context, id string, uid domain.UserID) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE conversations SET
			unread_a = (CASE WHEN participant_a = ? THEN 0 ELSE unread_a END),
			unread_b = (CASE WHEN participant_b = ? THEN 0 ELSE unread_b END)
		 WHERE id = ?`,
		string(uid), string(uid), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanConversation(sc rowScanner) (*domain.Conversation, error) {
	var c domain.Conversation
	var pa, pb, lastMessage string
	var unreadA, unreadB int
	var updated sql.NullTime
	if err := sc.Scan(&c.ID, &pa, &pb, &lastMessage, &unreadA, &unreadB, &updated); err != nil {
		return nil, wrapNotFound(err)
	}
	c.Participants = [2]domain.UserID{domain.UserID(pa), domain.UserID(pb)}
	c.LastMessageID = domain.MessageID(lastMessage)
	c.UnreadCount = map[domain.UserID]int{
		domain.UserID(pa): unreadA,
		domain.UserID(pb): unreadB,
	}
	if updated.Valid {
		c.UpdatedAt = updated.Time
	}
	return &c, nil
}
