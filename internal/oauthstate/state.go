// Package oauthstate issues and checks the anti-forgery state value that travels
// through the Google consent redirect.
package oauthstate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrInvalidState means the callback's state was never issued, was already used, or expired.
var ErrInvalidState = errors.New("invalid or expired oauth state")

// Store issues a state before the consent redirect and consumes it on the callback.
type Store interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) error
}

// RedisStore keeps issued states in Redis; each one can be consumed exactly once.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed state store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "oauthstate:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) Issue(ctx context.Context) (string, error) {
	state := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.prefix+state, "1", r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("store oauth state: duplicate state %s", state)
	}
	return state, nil
}

func (r *RedisStore) Consume(ctx context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}
	_, err := r.client.GetDel(ctx, r.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidState
	}
	if err != nil {
		return fmt.Errorf("consume oauth state: %w", err)
	}
	return nil
}

// SignedStore needs no shared storage: the state is an HS256 token carrying its own
// expiry. A signed state can be replayed until it expires.
type SignedStore struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

const stateSubject = "oauth-state"

// NewSignedStore signs states with secret. An empty secret gets a random per-process
// key, so states do not survive a restart.
func NewSignedStore(secret string, ttl time.Duration) (*SignedStore, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate state key: %w", err)
		}
	}
	return &SignedStore{secret: key, ttl: ttl, now: time.Now}, nil
}

func (s *SignedStore) Issue(_ context.Context) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   stateSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *SignedStore) Consume(_ context.Context, state string) error {
	if state == "" {
		return ErrInvalidState
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithSubject(stateSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}
