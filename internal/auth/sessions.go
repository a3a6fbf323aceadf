package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound means the refresh token is unknown, expired, or
// revoked.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps refresh-token sessions in Redis. It is an explicit
// injectable object rather than process-global state: entries expire
// individually via Redis TTLs and nothing survives a flush, which is the
// documented lifecycle for refresh sessions.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore creates a store. An empty prefix defaults to
// "classpin:session:".
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "classpin:session:"
	}
	return &SessionStore{client: client, prefix: prefix}
}

// Save records a refresh token for userID with a per-entry TTL. Only a
// digest of the token is stored.
func (s *SessionStore) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+digest(token), userID, ttl).Err()
}

// Validate returns the user a refresh token belongs to.
func (s *SessionStore) Validate(ctx context.Context, token string) (string, error) {
	userID, err := s.client.Get(ctx, s.prefix+digest(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return userID, nil
}

// Revoke drops a refresh token, e.g. after rotation.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.prefix+digest(token)).Err()
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
