// Package sqlite is the durable store behind the coordinator: users,
// conversations, messages and statuses. The coordinator treats it as an
// external collaborator; nothing here is retried on its behalf.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/vkondrav/pigeon/internal/core"
)

type Store struct {
	conn *sql.DB
}

func New(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &Store{conn: conn}
	if err := s.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			about TEXT NOT NULL DEFAULT '',
			is_online INTEGER NOT NULL DEFAULT 0,
			last_seen TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			participant_a TEXT NOT NULL REFERENCES users(id),
			participant_b TEXT NOT NULL REFERENCES users(id),
			last_message_id TEXT NOT NULL DEFAULT '',
			unread_a INTEGER NOT NULL DEFAULT 0,
			unread_b INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE(participant_a, participant_b)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			media_url TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL,
			reactions TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'sent',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS statuses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			content TEXT NOT NULL DEFAULT '',
			media_url TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL,
			viewed_by TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_a ON conversations(participant_a, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_b ON conversations(participant_b, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_statuses_expiry ON statuses(expires_at)`,
	}

	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func newID() string {
	return ulid.Make().String()
}

// wrapNotFound maps the driver's empty-result error onto the store
// sentinel every caller checks for.
func wrapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}
