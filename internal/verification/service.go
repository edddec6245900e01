package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/logger"
	"github.com/antonminaichev/linkcard/internal/types/verification"

	"go.uber.org/zap"
)

const (
	DefaultTTL        = 10 * time.Minute
	DefaultCodeLength = 6

	minDigits     = 10
	maxDigits     = 15
)

var (
	ErrMobileRequired  = apperr.Validation("mobile number is required")
	ErrInvalidMobile   = apperr.Validation("invalid mobile number")
	ErrCodeRequired    = apperr.Validation("otp is required")
	ErrNoPendingCode   = apperr.Validation("no verification code requested")
	ErrInvalidCode     = apperr.Validation("invalid code")
	ErrCodeExpired     = apperr.Validation("code expired")
	ErrTooManyAttempts = apperr.Validation("too many attempts, request a new code")
)

var mobilePattern = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)

type Config struct {
	TTL time.Duration
	// MaxAttempts of 0 allows unlimited wrong codes.
	MaxAttempts   int
	CodeLength    int
	BypassEnabled bool
	// ExposeCode echoes the code in the dispatch result. Development only.
	ExposeCode bool
}

type Service struct {
	repo   Repository
	sender CodeSender
	cfg    Config
	now    func() time.Time
	random io.Reader
}

func NewService(repo Repository, sender CodeSender, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = DefaultCodeLength
	}
	return &Service{
		repo:   repo,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
		random: rand.Reader,
	}
}

// Normalize validates a full phone number and reduces it to its digits, so
// "+91 99999-99999" and "919999999999" name the same session.
func Normalize(fullNumber string) (string, error) {
	n := strings.TrimSpace(fullNumber)
	if n == "" {
		return "", ErrMobileRequired
	}
	if !mobilePattern.MatchString(n) {
		return "", ErrInvalidMobile
	}
	var b strings.Builder
	digits := 0
	for _, r := range n {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			digits++
		}
	}
	if digits < minDigits || digits > maxDigits {
		return "", ErrInvalidMobile
	}
	return b.String(), nil
}

func (s *Service) generateCode() (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < s.cfg.CodeLength; i++ {
		d, err := rand.Int(s.random, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// mutation computes the next session from the stored one. A nil next means
// nothing is written; result is returned to the caller either way.
type mutation func(cur verification.Session, found bool) (next *verification.Session, result error)

// mutate runs fn under compare-and-swap, re-reading on conflict until it
// wins or ctx is done.
func (s *Service) mutate(ctx context.Context, number string, fn mutation) (verification.Session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return verification.Session{}, apperr.External("verification store busy", err)
		}
		cur, found, err := s.repo.Get(ctx, number)
		if err != nil {
			return verification.Session{}, apperr.External("verification store unavailable", err)
		}
		next, result := fn(cur, found)
		if next == nil {
			return cur, result
		}
		next.Number = number
		ok, err := s.repo.CompareAndSwap(ctx, *next, cur.Version)
		if err != nil {
			return verification.Session{}, apperr.External("verification store unavailable", err)
		}
		if ok {
			next.Version = cur.Version + 1
			return *next, result
		}
	}
}

// RequestCode issues a fresh code, replacing any outstanding one, and hands
// it to the sender. On delivery failure the session is returned to
// unverified. A verified number is left as is and nothing is sent.
func (s *Service) RequestCode(ctx context.Context, fullNumber string) (verification.DispatchResult, error) {
	number, err := Normalize(fullNumber)
	if err != nil {
		return verification.DispatchResult{}, err
	}
	code, err := s.generateCode()
	if err != nil {
		return verification.DispatchResult{}, fmt.Errorf("generate code: %w", err)
	}

	now := s.now().UTC()
	verified := false
	stored, err := s.mutate(ctx, number, func(cur verification.Session, found bool) (*verification.Session, error) {
		if found && cur.State == verification.StateVerified {
			verified = true
			return nil, nil
		}
		verified = false
		return &verification.Session{
			State:     verification.StateCodeRequested,
			Code:      code,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.cfg.TTL),
		}, nil
	})
	if err != nil {
		return verification.DispatchResult{}, err
	}
	if verified {
		return verification.DispatchResult{Number: number, AlreadyVerified: true}, nil
	}

	if err := s.sender.SendOTP(ctx, number, code); err != nil {
		logger.Log.Warn("otp dispatch failed", zap.String("mobile", number), zap.Error(err))
		s.abandon(context.WithoutCancel(ctx), number, code)
		return verification.DispatchResult{}, apperr.External("failed to send verification code", err)
	}

	logger.Log.Info("otp issued", zap.String("mobile", number))
	res := verification.DispatchResult{
		Number:    number,
		Sent:      true,
		ExpiresAt: stored.ExpiresAt,
	}
	if s.cfg.ExposeCode {
		res.DevCode = code
	}
	return res, nil
}

// abandon withdraws an undelivered code unless a newer request replaced it.
func (s *Service) abandon(ctx context.Context, number, code string) {
	_, err := s.mutate(ctx, number, func(cur verification.Session, found bool) (*verification.Session, error) {
		if !found || cur.State != verification.StateCodeRequested || cur.Code != code {
			return nil, nil
		}
		next := cur
		next.State = verification.StateUnverified
		next.Code = ""
		return &next, nil
	})
	if err != nil {
		logger.Log.Error("failed to withdraw undelivered otp", zap.String("mobile", number), zap.Error(err))
	}
}

// VerifyCode checks code against the outstanding one. A number that is
// already verified reports true without consuming anything.
func (s *Service) VerifyCode(ctx context.Context, fullNumber, code string) (bool, error) {
	number, err := Normalize(fullNumber)
	if err != nil {
		return false, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return false, ErrCodeRequired
	}

	now := s.now().UTC()
	stored, err := s.mutate(ctx, number, func(cur verification.Session, found bool) (*verification.Session, error) {
		if !found {
			return nil, ErrNoPendingCode
		}
		switch cur.State {
		case verification.StateVerified:
			return nil, nil
		case verification.StateUnverified:
			return nil, ErrNoPendingCode
		}

		next := cur
		if !now.Before(cur.ExpiresAt) {
			next.State = verification.StateUnverified
			next.Code = ""
			return &next, ErrCodeExpired
		}
		if subtle.ConstantTimeCompare([]byte(cur.Code), []byte(code)) == 1 {
			next.State = verification.StateVerified
			next.Code = ""
			next.VerifiedAt = &now
			return &next, nil
		}
		next.Attempts++
		if s.cfg.MaxAttempts > 0 && next.Attempts >= s.cfg.MaxAttempts {
			next.State = verification.StateUnverified
			next.Code = ""
			return &next, ErrTooManyAttempts
		}
		return &next, ErrInvalidCode
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			logger.Log.Info("otp rejected", zap.String("mobile", number), zap.String("reason", err.Error()))
		}
		return false, err
	}
	return stored.State == verification.StateVerified, nil
}

// Bypass marks the number verified without a code exchange.
func (s *Service) Bypass(ctx context.Context, fullNumber string) error {
	if !s.cfg.BypassEnabled {
		return apperr.Forbidden()
	}
	number, err := Normalize(fullNumber)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	_, err = s.mutate(ctx, number, func(cur verification.Session, found bool) (*verification.Session, error) {
		next := cur
		next.State = verification.StateVerified
		next.Code = ""
		next.Bypassed = true
		next.VerifiedAt = &now
		return &next, nil
	})
	if err != nil {
		return err
	}
	logger.Log.Warn("mobile verification bypassed", zap.String("mobile", number))
	return nil
}

func (s *Service) IsVerified(ctx context.Context, fullNumber string) (bool, error) {
	st, err := s.Status(ctx, fullNumber)
	if err != nil {
		return false, err
	}
	return st.Verified, nil
}

func (s *Service) Status(ctx context.Context, fullNumber string) (verification.StatusDTO, error) {
	number, err := Normalize(fullNumber)
	if err != nil {
		return verification.StatusDTO{}, err
	}
	cur, found, err := s.repo.Get(ctx, number)
	if err != nil {
		return verification.StatusDTO{}, apperr.External("verification store unavailable", err)
	}
	st := verification.StatusDTO{Number: number, State: verification.StateUnverified}
	if found {
		st.State = cur.State
		st.Verified = cur.State == verification.StateVerified
	}
	return st, nil
}
