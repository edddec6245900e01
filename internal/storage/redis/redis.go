// Package redisstore keeps verification sessions and revoked admin sessions in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/antonminaichev/linkcard/internal/types/verification"

	"github.com/redis/go-redis/v9"
)

const (
	verificationKeyPrefix = "verification:"
	revokedKeyPrefix      = "session:revoked:"

	// DefaultRetention keeps a verified number usable for checkout.
	DefaultRetention = 30 * 24 * time.Hour
)

// casScript replaces the stored session only when its version matches
// ARGV[1]; a missing key has version 0.
var casScript = redis.NewScript(`
local key = KEYS[1]
local expected = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'v')
if current then
	current = tonumber(current)
else
	current = 0
end

if current ~= expected then
	return 0
end

redis.call('HSET', key, 'v', expected + 1, 'data', ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', key, ttl)
end
return 1
`)

// record is the stored form of a verification session. Unlike the API
// model it carries the outstanding code.
type record struct {
	State      verification.State `json:"state"`
	Code       string             `json:"code,omitempty"`
	IssuedAt   time.Time          `json:"issuedAt"`
	ExpiresAt  time.Time          `json:"expiresAt"`
	Attempts   int                `json:"attempts"`
	VerifiedAt *time.Time         `json:"verifiedAt,omitempty"`
	Bypassed   bool               `json:"bypassed"`
}

type Store struct {
	client    *redis.Client
	retention time.Duration
}

func NewStore(client *redis.Client, retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{client: client, retention: retention}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Get(ctx context.Context, number string) (verification.Session, bool, error) {
	vals, err := s.client.HMGet(ctx, verificationKeyPrefix+number, "v", "data").Result()
	if err != nil {
		return verification.Session{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return verification.Session{}, false, nil
	}

	vs, _ := vals[0].(string)
	data, _ := vals[1].(string)
	version, err := strconv.ParseInt(vs, 10, 64)
	if err != nil {
		return verification.Session{}, false, fmt.Errorf("corrupt version for %s: %w", number, err)
	}
	var rec record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return verification.Session{}, false, fmt.Errorf("corrupt session for %s: %w", number, err)
	}
	return verification.Session{
		Number:     number,
		State:      rec.State,
		Code:       rec.Code,
		IssuedAt:   rec.IssuedAt,
		ExpiresAt:  rec.ExpiresAt,
		Attempts:   rec.Attempts,
		VerifiedAt: rec.VerifiedAt,
		Bypassed:   rec.Bypassed,
		Version:    version,
	}, true, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, next verification.Session, expected int64) (bool, error) {
	data, err := json.Marshal(record{
		State:      next.State,
		Code:       next.Code,
		IssuedAt:   next.IssuedAt,
		ExpiresAt:  next.ExpiresAt,
		Attempts:   next.Attempts,
		VerifiedAt: next.VerifiedAt,
		Bypassed:   next.Bypassed,
	})
	if err != nil {
		return false, fmt.Errorf("encode session: %w", err)
	}
	res, err := casScript.Run(ctx, s.client, []string{verificationKeyPrefix + next.Number},
		expected, string(data), s.retention.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Revoke remembers sessionID for ttl.
func (s *Store) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKeyPrefix+sessionID, 1, ttl).Err()
}

func (s *Store) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	err := s.client.Get(ctx, revokedKeyPrefix+sessionID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
