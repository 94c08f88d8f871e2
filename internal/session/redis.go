package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisSession struct {
	Step   Step   `json:"step"`
	Fields Fields `json:"fields"`
}

// RedisStore persists sessions as JSON blobs with a TTL, so flows survive
// process restarts when multiple bot replicas share one Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(user string) string {
	return "session:" + user
}

func (s *RedisStore) load(ctx context.Context, user string) (*redisSession, error) {
	data, err := s.client.Get(ctx, sessionKey(user)).Bytes()
	if err == redis.Nil {
		return &redisSession{Fields: make(Fields)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess redisSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Fields == nil {
		sess.Fields = make(Fields)
	}
	return &sess, nil
}

func (s *RedisStore) save(ctx context.Context, user string, sess *redisSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(user), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SetStep records the user's current flow step.
func (s *RedisStore) SetStep(ctx context.Context, user string, step Step) error {
	sess, err := s.load(ctx, user)
	if err != nil {
		return err
	}
	sess.Step = step
	return s.save(ctx, user, sess)
}

// Step returns the user's current step, or StepNone.
func (s *RedisStore) Step(ctx context.Context, user string) (Step, error) {
	sess, err := s.load(ctx, user)
	if err != nil {
		return StepNone, err
	}
	return sess.Step, nil
}

// Merge folds the given fields into the user's accumulated bag.
func (s *RedisStore) Merge(ctx context.Context, user string, fields Fields) error {
	sess, err := s.load(ctx, user)
	if err != nil {
		return err
	}
	for k, v := range fields {
		sess.Fields[k] = v
	}
	return s.save(ctx, user, sess)
}

// GetFields returns a copy of the user's accumulated fields.
func (s *RedisStore) GetFields(ctx context.Context, user string) (Fields, error) {
	sess, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}
	return sess.Fields, nil
}

// Clear removes the user's step and all accumulated fields.
func (s *RedisStore) Clear(ctx context.Context, user string) error {
	if err := s.client.Del(ctx, sessionKey(user)).Err(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
