package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"health-assistant/internal/profile"
)

const (
	fieldUserID              = "user_id"
	fieldName                = "name"
	fieldBirthday            = "birthday"
	fieldHealthDiary         = "health_diary"
	fieldConversationHistory = "conversation_history"
	fieldScenarioHistory     = "scenario_history"
)

// RedisStore keeps profiles as hashes and queue entries as JSON strings.
// The conditional insert maps to SETNX.
type RedisStore struct {
	client        *redis.Client
	usersPrefix   string
	welcomePrefix string
}

func NewRedis(ctx context.Context, url, usersTable, welcomeTable string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{
		client:        client,
		usersPrefix:   usersTable + ":",
		welcomePrefix: welcomeTable + ":",
	}, nil
}

func (s *RedisStore) userKey(userID string) string    { return s.usersPrefix + userID }
func (s *RedisStore) welcomeKey(userID string) string { return s.welcomePrefix + userID }

func (s *RedisStore) Get(ctx context.Context, userID string) (*profile.UserProfile, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user %s: %w", userID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return profileFromFields(userID, fields), nil
}

func profileFromFields(userID string, fields map[string]string) *profile.UserProfile {
	id := fields[fieldUserID]
	if id == "" {
		id = userID
	}
	return &profile.UserProfile{
		ID:                  id,
		Name:                fields[fieldName],
		Birthday:            fields[fieldBirthday],
		HealthDiary:         fields[fieldHealthDiary],
		ConversationHistory: profile.DecodeConversation(fields[fieldConversationHistory]),
		ScenarioHistory:     profile.DecodeTrail(fields[fieldScenarioHistory]),
	}
}

func (s *RedisStore) Put(ctx context.Context, p *profile.UserProfile) error {
	err := s.client.HSet(ctx, s.userKey(p.ID),
		fieldUserID, p.ID,
		fieldName, p.Name,
		fieldBirthday, p.Birthday,
		fieldHealthDiary, p.HealthDiary,
		fieldConversationHistory, profile.EncodeConversation(p.ConversationHistory),
		fieldScenarioHistory, profile.EncodeTrail(p.ScenarioHistory),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write user %s: %w", p.ID, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]profile.UserProfile, error) {
	var out []profile.UserProfile
	iter := s.client.Scan(ctx, 0, s.usersPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, *profileFromFields(strings.TrimPrefix(key, s.usersPrefix), fields))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return out, nil
}

func (s *RedisStore) InsertIfAbsent(ctx context.Context, entry WelcomeEntry) (bool, error) {
	b, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("failed to marshal queue entry: %w", err)
	}
	inserted, err := s.client.SetNX(ctx, s.welcomeKey(entry.UserID), b, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue %s: %w", entry.UserID, err)
	}
	return inserted, nil
}

func (s *RedisStore) MarkDone(ctx context.Context, userID string) error {
	return s.updateEntry(ctx, userID, func(e *WelcomeEntry) { e.Processed = true })
}

func (s *RedisStore) RecordFailure(ctx context.Context, userID string) error {
	return s.updateEntry(ctx, userID, func(e *WelcomeEntry) { e.FailedAttempts++ })
}

// updateEntry is a read-modify-write; the worker is the queue's only writer
// after insert, so no CAS is needed here.
func (s *RedisStore) updateEntry(ctx context.Context, userID string, mutate func(*WelcomeEntry)) error {
	key := s.welcomeKey(userID)
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("welcome entry %s not found", userID)
	}
	if err != nil {
		return fmt.Errorf("failed to read welcome entry %s: %w", userID, err)
	}
	var entry WelcomeEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return fmt.Errorf("failed to decode welcome entry %s: %w", userID, err)
	}
	mutate(&entry)
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal welcome entry %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, key, b, 0).Err(); err != nil {
		return fmt.Errorf("failed to update welcome entry %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) ScanAll(ctx context.Context) ([]WelcomeEntry, error) {
	var out []WelcomeEntry
	iter := s.client.Scan(ctx, 0, s.welcomePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", iter.Val(), err)
		}
		var entry WelcomeEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Skip undecodable rows rather than fail the pass.
			continue
		}
		out = append(out, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan welcome queue: %w", err)
	}
	return out, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
