package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vkondrav/pigeon/internal/domain"
)

func (s *Store) InsertMessage(ctx context.Context, m *domain.Message) error {
	if m.ID == "" {
		m.ID = domain.MessageID(newID())
	}
	reactions, err := json.Marshal(m.Reactions)
	if err != nil {
		return fmt.Errorf("marshal reactions: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, receiver_id, content, media_url, content_type, reactions, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(m.ID), m.ConversationID, string(m.SenderID), string(m.ReceiverID),
		m.Content, m.MediaURL, string(m.ContentType), string(reactions), string(m.Status), m.CreatedAt)
	return err
}

func (s *Store) GetMessage(ctx context.Context, id domain.MessageID) (*domain.Message, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, conversation_id, sender_id, receiver_id, content, media_url, content_type, reactions, status, created_at
		 FROM messages WHERE id = ?`, string(id))
	return scanMessage(row)
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, receiver_id, content, media_url, content_type, reactions, status, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) UpdateMessageStatus(ctx context.Context, id domain.MessageID, status domain.MessageStatus) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) UpdateMessagesStatus(ctx context.Context, ids []domain.MessageID, status domain.MessageStatus) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(status))
	for _, id := range ids {
		args = append(args, string(id))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	_, err := s.conn.ExecContext(ctx,
		`UPDATE messages SET status = ? WHERE id IN (`+placeholders+`)`, args...)
	return err
}

func (s *Store) UpdateReactions(ctx context.Context, id domain.MessageID, reactions []domain.Reaction) error {
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	b, err := json.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("marshal reactions: %w", err)
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE messages SET reactions = ? WHERE id = ?`, string(b), string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteMessage(ctx context.Context, id domain.MessageID) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanMessage(sc rowScanner) (*domain.Message, error) {
	var m domain.Message
	var reactionsJSON string
	if err := sc.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID,
		&m.Content, &m.MediaURL, &m.ContentType, &reactionsJSON, &m.Status, &m.CreatedAt); err != nil {
		return nil, wrapNotFound(err)
	}
	if err := json.Unmarshal([]byte(reactionsJSON), &m.Reactions); err != nil {
		return nil, fmt.Errorf("unmarshal reactions: %w", err)
	}
	return &m, nil
}
