// Package session persists chat sessions and their message history in
// PostgreSQL.
//
// Rows carry a schema version. When the stored layout changes the
// version constant is bumped and PurgeStale wipes sessions written
// under older versions, trading history for a clean slate instead of
// migrating per-row.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pitlane/f1gpt/internal/chat"
)

// SchemaVersion is stamped on every session row. Bump it when the
// stored message layout changes incompatibly.
const SchemaVersion = 1

// TitleMaxLength bounds session titles.
const TitleMaxLength = 100

// Sentinel errors for session operations.
var (
	ErrNotFound     = errors.New("session not found")
	ErrTitleTooLong = fmt.Errorf("session title exceeds %d characters", TitleMaxLength)
)

// Session is one stored conversation.
type Session struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Querier is the subset of pgxpool.Pool the store depends on.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages session persistence. Safe for concurrent use.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a Store. logger may be nil (defaults to slog.Default()).
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Create starts a new session with the given title.
func (s *Store) Create(ctx context.Context, title string) (*Session, error) {
	if len([]rune(title)) > TitleMaxLength {
		return nil, ErrTitleTooLong
	}

	sess := &Session{ID: uuid.New(), Title: title}
	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, title, schema_version)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		sess.ID, title, SchemaVersion,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID, "title", title)
	return sess, nil
}

// Get returns the session with the given id. Sessions written under an
// older schema version are reported as missing.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess := &Session{ID: id}
	err := s.db.QueryRow(ctx, `
		SELECT title, created_at, updated_at
		FROM sessions
		WHERE id = $1 AND schema_version = $2`,
		id, SchemaVersion,
	).Scan(&sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// List returns all current-version sessions, most recently updated
// first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM sessions
		WHERE schema_version = $1
		ORDER BY updated_at DESC`,
		SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// Rename updates a session's title.
func (s *Store) Rename(ctx context.Context, id uuid.UUID, title string) error {
	if len([]rune(title)) > TitleMaxLength {
		return ErrTitleTooLong
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET title = $2, updated_at = now()
		WHERE id = $1 AND schema_version = $3`,
		id, title, SchemaVersion)
	if err != nil {
		return fmt.Errorf("renaming session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every session.
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}
	return nil
}

// PurgeStale removes sessions written under a different schema
// version. Called once at startup.
func (s *Store) PurgeStale(ctx context.Context) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE schema_version <> $1`, SchemaVersion)
	if err != nil {
		return fmt.Errorf("purging stale sessions: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("purged stale sessions", "count", n, "schema_version", SchemaVersion)
	}
	return nil
}

// AppendMessages adds messages to the end of a session's history and
// bumps its updated_at.
func (s *Store) AppendMessages(ctx context.Context, id uuid.UUID, messages []chat.Message) error {
	if len(messages) == 0 {
		return nil
	}

	var next int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1
		FROM session_messages
		WHERE session_id = $1`, id).Scan(&next)
	if err != nil {
		return fmt.Errorf("finding message position: %w", err)
	}

	for i, msg := range messages {
		_, err := s.db.Exec(ctx, `
			INSERT INTO session_messages (id, session_id, position, role, content)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), id, next+i, string(msg.Role), msg.Content)
		if err != nil {
			return fmt.Errorf("appending message: %w", err)
		}
	}

	if _, err := s.db.Exec(ctx, `UPDATE sessions SET updated_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return nil
}

// Messages returns a session's history in chronological order.
func (s *Store) Messages(ctx context.Context, id uuid.UUID) ([]chat.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, role, content, created_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var (
			msgID   uuid.UUID
			role    string
			text    string
			created time.Time
		)
		if err := rows.Scan(&msgID, &role, &text, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, chat.Message{
			ID:        msgID.String(),
			Role:      chat.Role(role),
			Content:   text,
			CreatedAt: created,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	return messages, nil
}
