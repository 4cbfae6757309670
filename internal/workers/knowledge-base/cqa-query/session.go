package cqaquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cqa-workers/internal/cqa"
)

const sessionKeyPrefix = "cqa:session:"

// SessionStore keeps the follow-up context of a conversation between jobs.
type SessionStore interface {
	Load(ctx context.Context, id string) (*cqa.Session, error)
	Save(ctx context.Context, id string, session *cqa.Session) error
}

type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// Load returns an empty session for an unknown id.
func (s *RedisSessionStore) Load(ctx context.Context, id string) (*cqa.Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return &cqa.Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var session cqa.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

// Save stores session and restarts its TTL.
func (s *RedisSessionStore) Save(ctx context.Context, id string, session *cqa.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}
