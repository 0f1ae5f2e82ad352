package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/vkondrav/pigeon/internal/domain"
)

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, username, email, avatar, about, is_online, last_seen FROM users WHERE id = ?`, string(id))
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, username, email, avatar, about, is_online, last_seen FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = domain.UserID(newID())
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, avatar, about, is_online, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(u.ID), u.Username, u.Email, u.Avatar, u.About, boolToInt(u.IsOnline), u.LastSeen)
	return err
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET username = ?, avatar = ?, about = ? WHERE id = ?`,
		u.Username, u.Avatar, u.About, string(u.ID))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) SetPresence(ctx context.Context, id domain.UserID, online bool) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE users SET is_online = ?, last_seen = ? WHERE id = ?`,
		boolToInt(online), time.Now(), string(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) ListUsers(ctx context.Context, except domain.UserID) ([]domain.User, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, username, email, avatar, about, is_online, last_seen FROM users WHERE id != ? ORDER BY username`,
		string(except))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserFrom(sc rowScanner) (*domain.User, error) {
	var u domain.User
	var online int
	var lastSeen sql.NullTime
	if err := sc.Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.About, &online, &lastSeen); err != nil {
		return nil, wrapNotFound(err)
	}
	u.IsOnline = online != 0
	if lastSeen.Valid {
		u.LastSeen = lastSeen.Time
	}
	return &u, nil
}

func scanUser(row *sql.Row) (*domain.User, error) { return scanUserFrom(row) }

func scanUserRows(rows *sql.Rows) (*domain.User, error) { return scanUserFrom(rows) }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return wrapNotFound(sql.ErrNoRows)
	}
	return nil
}
