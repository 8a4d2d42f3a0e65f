package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"health-assistant/internal/profile"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), "users", "welcome_queue")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestProfilePutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, got, "unknown user must read as absent, not error")

	p := &profile.UserProfile{
		ID:          "u1",
		Name:        "Анна",
		Birthday:    "1990-04-12",
		HealthDiary: "migraines",
		ConversationHistory: []profile.ConversationMessage{
			{Role: profile.RoleUser, Message: "hi", Timestamp: 10},
		},
		ScenarioHistory: []profile.TrailEntry{
			{Role: profile.RoleSystem, StepID: "s1", Messages: []string{"Hi"}},
		},
	}
	require.NoError(t, s.Put(ctx, p))

	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Анна", got.Name)
	require.Len(t, got.ConversationHistory, 1)
	require.Len(t, got.ScenarioHistory, 1)
	require.Equal(t, "s1", got.ScenarioHistory[0].StepID)

	// Put is a full overwrite of the known fields.
	p.HealthDiary = ""
	p.ConversationHistory = nil
	require.NoError(t, s.Put(ctx, p))
	got, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, got.HealthDiary)
	require.Empty(t, got.ConversationHistory)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestMalformedHistoryCoercedToEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`INSERT INTO users (user_id, conversation_history, scenario_history) VALUES ('u2', '{bad', 'also bad')`)
	require.NoError(t, err)

	got, err := s.Get(ctx, "u2")
	require.NoError(t, err)
	require.Empty(t, got.ConversationHistory)
	require.Empty(t, got.ScenarioHistory)
}

func TestInsertIfAbsentIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertIfAbsent(ctx, WelcomeEntry{UserID: "u1", CreatedAt: 1000})
	require.NoError(t, err)
	require.True(t, inserted)

	// Second insert is a benign no-op and must not touch createdAt.
	inserted, err = s.InsertIfAbsent(ctx, WelcomeEntry{UserID: "u1", CreatedAt: 2000})
	require.NoError(t, err)
	require.False(t, inserted)

	entries, err := s.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(1000), entries[0].CreatedAt)
	require.False(t, entries[0].Processed)
}

func TestMarkDoneAndRecordFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, WelcomeEntry{UserID: "u1", CreatedAt: 1000})
	require.NoError(t, err)

	require.NoError(t, s.RecordFailure(ctx, "u1"))
	require.NoError(t, s.RecordFailure(ctx, "u1"))
	require.NoError(t, s.MarkDone(ctx, "u1"))

	entries, err := s.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Processed)
	require.Equal(t, 2, entries[0].FailedAttempts)
}
