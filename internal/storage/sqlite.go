package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"health-assistant/internal/profile"
)

// SQLiteStore implements Store over a local SQLite file. The conditional
// insert maps to INSERT ... ON CONFLICT DO NOTHING.
type SQLiteStore struct {
	db           *sql.DB
	usersTable   string
	welcomeTable string
}

func NewSQLite(dbPath, usersTable, welcomeTable string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLiteStore{db: db, usersTable: usersTable, welcomeTable: welcomeTable}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		birthday TEXT NOT NULL DEFAULT '',
		health_diary TEXT NOT NULL DEFAULT '',
		conversation_history TEXT NOT NULL DEFAULT '[]',
		scenario_history TEXT NOT NULL DEFAULT '[]'
	);
	CREATE TABLE IF NOT EXISTS %s (
		user_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		failed_attempts INTEGER NOT NULL DEFAULT 0
	);`, s.usersTable, s.welcomeTable)
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (*profile.UserProfile, error) {
	query := fmt.Sprintf(`SELECT user_id, name, birthday, health_diary, conversation_history, scenario_history
		FROM %s WHERE user_id = ?`, s.usersTable)
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s: %w", userID, err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*profile.UserProfile, error) {
	var p profile.UserProfile
	var conv, trail string
	if err := row.Scan(&p.ID, &p.Name, &p.Birthday, &p.HealthDiary, &conv, &trail); err != nil {
		return nil, err
	}
	p.ConversationHistory = profile.DecodeConversation(conv)
	p.ScenarioHistory = profile.DecodeTrail(trail)
	return &p, nil
}

func (s *SQLiteStore) Put(ctx context.Context, p *profile.UserProfile) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (user_id, name, birthday, health_diary, conversation_history, scenario_history)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		name = excluded.name,
		birthday = excluded.birthday,
		health_diary = excluded.health_diary,
		conversation_history = excluded.conversation_history,
		scenario_history = excluded.scenario_history`, s.usersTable)
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Birthday, p.HealthDiary,
		profile.EncodeConversation(p.ConversationHistory),
		profile.EncodeTrail(p.ScenarioHistory),
	)
	if err != nil {
		return fmt.Errorf("failed to write user %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]profile.UserProfile, error) {
	query := fmt.Sprintf(`SELECT user_id, name, birthday, health_diary, conversation_history, scenario_history
		FROM %s ORDER BY user_id`, s.usersTable)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []profile.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, entry WelcomeEntry) (bool, error) {
	query := fmt.Sprintf(`
	INSERT INTO %s (user_id, created_at, processed, failed_attempts)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO NOTHING`, s.welcomeTable)
	res, err := s.db.ExecContext(ctx, query,
		entry.UserID, entry.CreatedAt, boolToInt(entry.Processed), entry.FailedAttempts)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s: %w", entry.UserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s: %w", entry.UserID, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) MarkDone(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`UPDATE %s SET processed = 1 WHERE user_id = ?`, s.welcomeTable)
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark %s done: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) RecordFailure(ctx context.Context, userID string) error {
	query := fmt.Sprintf(`UPDATE %s SET failed_attempts = failed_attempts + 1 WHERE user_id = ?`, s.welcomeTable)
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to record failure for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) ScanAll(ctx context.Context) ([]WelcomeEntry, error) {
	query := fmt.Sprintf(`SELECT user_id, created_at, processed, failed_attempts FROM %s ORDER BY created_at`, s.welcomeTable)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to scan welcome queue: %w", err)
	}
	defer rows.Close()

	var out []WelcomeEntry
	for rows.Next() {
		var e WelcomeEntry
		var processed int
		if err := rows.Scan(&e.UserID, &e.CreatedAt, &processed, &e.FailedAttempts); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		e.Processed = processed != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan welcome queue: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
