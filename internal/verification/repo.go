package verification

import (
	"context"

	"github.com/antonminaichev/linkcard/internal/types/verification"
)

// Repository stores one session per normalized number.
type Repository interface {
	// Get returns found=false when the number has no session yet.
	Get(ctx context.Context, number string) (s verification.Session, found bool, err error)
	// CompareAndSwap stores next only while the stored version still equals
	// expected (0 for a missing session) and bumps the version on success.
	CompareAndSwap(ctx context.Context, next verification.Session, expected int64) (bool, error)
}

// CodeSender delivers an OTP to a phone number.
type CodeSender interface {
	SendOTP(ctx context.Context, number, code string) error
}
