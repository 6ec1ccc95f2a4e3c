// Package store persists the raw conversation audit trail in SQLite.
// It feeds prompt context; the response decision never depends on it,
// so all failures here are non-fatal for the reply path.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// RecentTurn is one row from the per-author history query.
type RecentTurn struct {
	UserID    string
	Username  string
	Content   string
	CreatedAt time.Time
}

// Store wraps the SQLite conversation database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the conversation database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateOrUpdateUser upserts a user record, refreshing the username.
func (s *Store) CreateOrUpdateUser(ctx context.Context, userID, username string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			updated_at = CURRENT_TIMESTAMP
	`, userID, username)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// RecordTurn stores an inbound turn and returns its row ID.
func (s *Store) RecordTurn(ctx context.Context, userID, content, systemPrompt string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (user_id, content, system_prompt) VALUES (?, ?, ?)
	`, userID, content, systemPrompt)
	if err != nil {
		return 0, fmt.Errorf("record turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("turn id: %w", err)
	}
	return id, nil
}

// RecordAttachment stores an image attachment reference for a turn.
func (s *Store) RecordAttachment(ctx context.Context, turnID int64, url, contentType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turn_attachments (turn_id, url, content_type) VALUES (?, ?, ?)
	`, turnID, url, contentType)
	if err != nil {
		return fmt.Errorf("record attachment: %w", err)
	}
	return nil
}

// RecordReply stores the generated reply for a turn.
func (s *Store) RecordReply(ctx context.Context, turnID int64, content, replyToID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replies (turn_id, content, reply_to_id) VALUES (?, ?, ?)
	`, turnID, content, replyToID)
	if err != nil {
		return fmt.Errorf("record reply: %w", err)
	}
	return nil
}

// RecentTurns returns an author's most recent turns, newest first.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]RecentTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.user_id, u.username, t.content, t.created_at
		FROM turns t
		JOIN users u ON t.user_id = u.id
		WHERE t.user_id = ?
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	var out []RecentTurn
	for rows.Next() {
		var t RecentTurn
		if err := rows.Scan(&t.UserID, &t.Username, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return out, nil
}
