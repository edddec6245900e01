package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/logger"
	"github.com/antonminaichev/linkcard/internal/rbac"
	"github.com/antonminaichev/linkcard/internal/types/user"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const DefaultTTL = 24 * time.Hour

var (
	ErrPINRequired = apperr.Validation("PIN is required")
	ErrInvalidPIN  = apperr.New(apperr.KindAuthentication, "invalid PIN")
)

type Config struct {
	AdminPIN     string
	ModeratorPIN string
	Secret       []byte
	TTL          time.Duration
}

type pinEntry struct {
	hash []byte
	role rbac.Role
}

type Claims struct {
	Role rbac.Role `json:"role"`
	jwt.RegisteredClaims
}

// Info describes a validated session.
type Info struct {
	Valid     bool
	Principal user.Principal
	ExpiresAt time.Time
}

type Service struct {
	pins        []pinEntry
	secret      []byte
	ttl         time.Duration
	revocations RevocationStore
	now         func() time.Time
}

// NewService hashes the configured PINs once so plaintext never outlives
// startup. revocations may be nil, in which case logout only clears the cookie.
func NewService(cfg Config, revocations RevocationStore) (*Service, error) {
	if cfg.AdminPIN == "" {
		return nil, errors.New("admin PIN must be set")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret must be set")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s := &Service{
		secret:      cfg.Secret,
		ttl:         ttl,
		revocations: revocations,
		now:         time.Now,
	}
	// admin first so a shared PIN resolves to the wider role
	for _, e := range []struct {
		role rbac.Role
		pin  string
	}{{rbac.RoleAdmin, cfg.AdminPIN}, {rbac.RoleModerator, cfg.ModeratorPIN}} {
		if e.pin == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(e.pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash %s pin: %w", e.role, err)
		}
		s.pins = append(s.pins, pinEntry{hash: hash, role: e.role})
	}
	return s, nil
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Login checks pin against every configured PIN and opens a session for the
// matching role. Attempts are neither throttled nor counted.
func (s *Service) Login(ctx context.Context, pin string) (string, time.Time, error) {
	if pin == "" {
		return "", time.Time{}, ErrPINRequired
	}
	for _, p := range s.pins {
		if bcrypt.CompareHashAndPassword(p.hash, []byte(pin)) == nil {
			return s.CreateSession(ctx, p.role)
		}
	}
	logger.Log.Warn("invalid admin PIN attempt")
	return "", time.Time{}, ErrInvalidPIN
}

func (s *Service) CreateSession(ctx context.Context, role rbac.Role) (string, time.Time, error) {
	if !role.Valid() {
		return "", time.Time{}, apperr.Validation("unknown role")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(role),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	logger.Log.Info("admin session created", zap.String("role", string(role)), zap.String("session_id", claims.ID))
	return signed, claims.ExpiresAt.Time, nil
}

// parse verifies the signature only; expiry is checked against s.now by callers.
func (s *Service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	tok, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, apperr.Unauthenticated()
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil, apperr.Unauthenticated()
	}
	return claims, nil
}

// ValidateSession fails closed: every rejected token yields the same
// authentication error.
func (s *Service) ValidateSession(ctx context.Context, token string) (Info, error) {
	if token == "" {
		return Info{}, apperr.Unauthenticated()
	}
	claims, err := s.parse(token)
	if err != nil {
		return Info{}, err
	}
	if !claims.VerifyExpiresAt(s.now(), true) {
		return Info{}, apperr.Unauthenticated()
	}
	if !claims.Role.Valid() {
		return Info{}, apperr.Unauthenticated()
	}
	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Info{}, apperr.External("session store unavailable", err)
		}
		if revoked {
			return Info{}, apperr.Unauthenticated()
		}
	}
	expiresAt := claims.ExpiresAt.Time.UTC()
	return Info{
		Valid: true,
		Principal: user.Principal{
			SessionID: claims.ID,
			Subject:   claims.Subject,
			Role:      claims.Role,
			ExpiresAt: expiresAt,
		},
		ExpiresAt: expiresAt,
	}, nil
}

// DestroySession revokes token before returning. Tokens that are malformed or
// already expired need no server-side state and are ignored.
func (s *Service) DestroySession(ctx context.Context, token string) error {
	if token == "" || s.revocations == nil {
		return nil
	}
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return apperr.External("failed to revoke session", err)
	}
	logger.Log.Info("admin session destroyed", zap.String("session_id", claims.ID))
	return nil
}

// Authenticate adapts ValidateSession for the session middleware.
func (s *Service) Authenticate(ctx context.Context, token string) (user.Principal, error) {
	info, err := s.ValidateSession(ctx, token)
	if err != nil {
		return user.Principal{}, err
	}
	return info.Principal, nil
}
