package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vkondrav/pigeon/internal/domain"
)

func (s *Store) InsertStatus(ctx context.Context, st *domain.Status) error {
	if st.ID == "" {
		st.ID = newID()
	}
	viewers, err := json.Marshal(st.ViewedBy)
	if err != nil {
		return fmt.Errorf("marshal viewers: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO statuses (id, user_id, content, media_url, content_type, viewed_by, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, string(st.UserID), st.Content, st.MediaURL, string(st.ContentType),
		string(viewers), st.CreatedAt, st.ExpiresAt)
	return err
}

func (s *Store) GetStatus(ctx context.Context, id string) (*domain.Status, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, content, media_url, content_type, viewed_by, created_at, expires_at
		 FROM statuses WHERE id = ?`, id)
	return scanStatus(row)
}

func (s *Store) ListActiveStatuses(ctx context.Context) ([]domain.Status, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, content, media_url, content_type, viewed_by, created_at, expires_at
		 FROM statuses WHERE expires_at > ? ORDER BY created_at DESC`, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Status
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStatusViewers(ctx context.Context, id string, viewers []domain.UserID) error {
	if viewers == nil {
		viewers = []domain.UserID{}
	}
	b, err := json.Marshal(viewers)
	if err != nil {
		return fmt.Errorf("marshal viewers: %w", err)
	}
	res, err := s.conn.ExecContext(ctx,
		`UPDATE statuses SET viewed_by = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) DeleteStatus(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM statuses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// PurgeExpiredStatuses removes rows past their expiry; run periodically.
func (s *Store) PurgeExpiredStatuses(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM statuses WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanStatus(sc rowScanner) (*domain.Status, error) {
	var st domain.Status
	var viewersJSON string
	if err := sc.Scan(&st.ID, &st.UserID, &st.Content, &st.MediaURL, &st.ContentType,
		&viewersJSON, &st.CreatedAt, &st.ExpiresAt); err != nil {
		return nil, wrapNotFound(err)
	}
	if err := json.Unmarshal([]byte(viewersJSON), &st.ViewedBy); err != nil {
		return nil, fmt.Errorf("unmarshal viewers: %w", err)
	}
	return &st, nil
}
