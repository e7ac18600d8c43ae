package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uiowa-coph/roomres/internal/domain"
)

// RedisStore persists sessions in Redis with a sliding TTL. The record keeps
// the tokens, which domain.Session deliberately hides from JSON responses, so
// it marshals through its own payload type.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type sessionPayload struct {
	ID               string    `json:"id"`
	UserAccessToken  string    `json:"user_access_token"`
	UserRefreshToken string    `json:"user_refresh_token"`
	TokenExpiry      time.Time `json:"token_expiry"`
	HawkID           string    `json:"hawk_id"`
	UniversityID     string    `json:"university_id"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var p sessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &domain.Session{
		ID:               p.ID,
		UserAccessToken:  p.UserAccessToken,
		UserRefreshToken: p.UserRefreshToken,
		TokenExpiry:      p.TokenExpiry,
		HawkID:           p.HawkID,
		UniversityID:     p.UniversityID,
		CreatedAt:        p.CreatedAt,
	}, nil
}

func (s *RedisStore) Set(ctx context.Context, sess *domain.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(sessionPayload{
		ID:               sess.ID,
		UserAccessToken:  sess.UserAccessToken,
		UserRefreshToken: sess.UserRefreshToken,
		TokenExpiry:      sess.TokenExpiry,
		HawkID:           sess.HawkID,
		UniversityID:     sess.UniversityID,
		CreatedAt:        sess.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sess.ID), payload, s.ttl).Err()
}

func (s *RedisStore) Invalidate(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":" + id
}
