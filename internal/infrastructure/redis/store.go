package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/travel-otp-api/internal/domain"
)

const keyPrefix = "otp:"

// Store keeps one hash per email under otp:<email>. The key's native expiry is set
// to the record's retention horizon so Redis reclaims it without a sweeper.
type Store struct {
	client   goredis.UniversalClient
	cooldown time.Duration
}

func NewStore(client goredis.UniversalClient, cooldown time.Duration) *Store {
	return &Store{client: client, cooldown: cooldown}
}

func (s *Store) Get(ctx context.Context, email string) (*domain.OTPRecord, error) {
	fields, err := s.client.HGetAll(ctx, key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", email, err)
	}
	// HGETALL on a missing key yields an empty map, not redis.Nil.
	if len(fields) == 0 {
		return nil, fmt.Errorf("otp record %q: %w", email, domain.ErrNotFound)
	}
	rec, err := fromHash(fields)
	if err != nil {
		return nil, fmt.Errorf("decode otp record %q: %w", email, err)
	}
	return rec, nil
}

func (s *Store) Put(ctx context.Context, rec *domain.OTPRecord) error {
	k := key(rec.Email)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, toHash(rec))
		pipe.PExpireAt(ctx, k, rec.RetainUntil(s.cooldown))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", rec.Email, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", email, err)
	}
	return nil
}

func key(email string) string { return keyPrefix + email }

func toHash(rec *domain.OTPRecord) map[string]any {
	return map[string]any{
		"id":           rec.ID,
		"email":        rec.Email,
		"code":         rec.Code,
		"attempts":     strconv.Itoa(rec.Attempts),
		"expires_at":   rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"last_sent_at": rec.LastSentAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromHash(m map[string]string) (*domain.OTPRecord, error) {
	attempts, err := strconv.Atoi(m["attempts"])
	if err != nil {
		return nil, fmt.Errorf("attempts: %w", err)
	}
	expires, err := time.Parse(time.RFC3339Nano, m["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("expires_at: %w", err)
	}
	sent, err := time.Parse(time.RFC3339Nano, m["last_sent_at"])
	if err != nil {
		return nil, fmt.Errorf("last_sent_at: %w", err)
	}
	return &domain.OTPRecord{
		ID:         m["id"],
		Email:      m["email"],
		Code:       m["code"],
		Attempts:   attempts,
		ExpiresAt:  expires,
		LastSentAt: sent,
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
