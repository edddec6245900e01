package session

import (
	"context"
	"time"
)

// RevocationStore keeps logged-out session ids for ttl, the time the token
// has left before it expires on its own.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}
