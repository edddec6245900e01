package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/middleware"
	"github.com/antonminaichev/linkcard/internal/rbac"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newStubRevocations() *stubRevocations {
	return &stubRevocations{revoked: make(map[string]time.Duration)}
}

func (s *stubRevocations) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[id] = ttl
	return nil
}

func (s *stubRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[id]
	return ok, nil
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, revocations RevocationStore) *Service {
	t.Helper()
	svc, err := NewService(Config{
		AdminPIN:     "4242",
		ModeratorPIN: "1717",
		Secret:       []byte("secret"),
		TTL:          24 * time.Hour,
	}, revocations)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestNewServiceRequiresConfig(t *testing.T) {
	_, err := NewService(Config{Secret: []byte("s")}, nil)
	assert.Error(t, err)

	_, err = NewService(Config{AdminPIN: "1"}, nil)
	assert.Error(t, err)

	svc, err := NewService(Config{AdminPIN: "1", Secret: []byte("s")}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, svc.TTL())
}

func TestServiceLogin(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	t.Run("admin pin", func(t *testing.T) {
		token, exp, err := svc.Login(ctx, "4242")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.True(t, testNow.Add(24*time.Hour).Equal(exp))

		info, err := svc.ValidateSession(ctx, token)
		require.NoError(t, err)
		assert.True(t, info.Valid)
		assert.Equal(t, rbac.RoleAdmin, info.Principal.Role)
	})

	t.Run("moderator pin", func(t *testing.T) {
		token, _, err := svc.Login(ctx, "1717")
		require.NoError(t, err)
		info, err := svc.ValidateSession(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, rbac.RoleModerator, info.Principal.Role)
	})

	t.Run("wrong pin", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "0000")
		assert.ErrorIs(t, err, apperr.ErrAuthentication)
	})

	t.Run("empty pin", func(t *testing.T) {
		_, _, err := svc.Login(ctx, "")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestDistinctPINsPerService(t *testing.T) {
	a, err := NewService(Config{AdminPIN: "1111", Secret: []byte("s")}, nil)
	require.NoError(t, err)
	b, err := NewService(Config{AdminPIN: "2222", Secret: []byte("s")}, nil)
	require.NoError(t, err)

	_, _, err = a.Login(context.Background(), "2222")
	assert.Error(t, err)
	_, _, err = b.Login(context.Background(), "2222")
	assert.NoError(t, err)
}

func TestValidateSessionExpiry(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	token, _, err := svc.CreateSession(ctx, rbac.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.ValidateSession(ctx, token)
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(24*time.Hour - time.Second) }
	_, err = svc.ValidateSession(ctx, token)
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	info, err := svc.ValidateSession(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
	assert.False(t, info.Valid)
}

func TestValidateSessionFailsClosed(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	other, err := NewService(Config{AdminPIN: "1", Secret: []byte("other")}, nil)
	require.NoError(t, err)
	foreign, _, err := other.CreateSession(ctx, rbac.RoleAdmin)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: rbac.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not-a-token",
		"bad sig":     foreign,
		"alg none":    none,
		"truncated":   foreign[:len(foreign)-4],
		"extra parts": foreign + ".x",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateSession(ctx, token)
			assert.ErrorIs(t, err, apperr.ErrAuthentication)
		})
	}
}

func TestCreateSessionUnknownRole(t *testing.T) {
	svc := newTestService(t, nil)
	_, _, err := svc.CreateSession(context.Background(), rbac.Role("root"))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDestroySession(t *testing.T) {
	revs := newStubRevocations()
	svc := newTestService(t, revs)
	ctx := context.Background()

	token, _, err := svc.CreateSession(ctx, rbac.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, svc.DestroySession(ctx, token))
	assert.Len(t, revs.revoked, 1)

	_, err = svc.ValidateSession(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	assert.NoError(t, svc.DestroySession(ctx, "garbage"))
	assert.NoError(t, svc.DestroySession(ctx, ""))
	assert.Len(t, revs.revoked, 1)
}

func TestDestroySessionUsesServiceClock(t *testing.T) {
	revs := newStubRevocations()
	svc := newTestService(t, revs)
	ctx := context.Background()

	token, _, err := svc.CreateSession(ctx, rbac.RoleAdmin)
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(20 * time.Hour) }
	require.NoError(t, svc.DestroySession(ctx, token))
	require.Len(t, revs.revoked, 1)
	for _, ttl := range revs.revoked {
		assert.Equal(t, 4*time.Hour, ttl)
	}

	expired, _, err := svc.CreateSession(ctx, rbac.RoleAdmin)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	require.NoError(t, svc.DestroySession(ctx, expired))
	assert.Len(t, revs.revoked, 1)
}

func TestRevocationStoreFailure(t *testing.T) {
	revs := newStubRevocations()
	svc := newTestService(t, revs)
	ctx := context.Background()

	token, _, err := svc.CreateSession(ctx, rbac.RoleAdmin)
	require.NoError(t, err)

	revs.err = errors.New("redis down")
	_, err = svc.ValidateSession(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrExternalService)

	err = svc.DestroySession(ctx, token)
	assert.ErrorIs(t, err, apperr.ErrExternalService)
}

func TestHandlerLoginSetsCookie(t *testing.T) {
	svc := newTestService(t, nil)
	h := NewHandler(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/admin-login", strings.NewReader(`{"pin":"4242"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, middleware.SessionCookie, c.Name)
	assert.NotEmpty(t, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, 86400, c.MaxAge)
	assert.Equal(t, "/", c.Path)
}

func TestHandlerLoginErrors(t *testing.T) {
	svc := newTestService(t, nil)
	h := NewHandler(svc, false)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"wrong pin", `{"pin":"9999"}`, http.StatusUnauthorized},
		{"empty pin", `{"pin":""}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin-login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Login(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestHandlerLogoutClearsCookie(t *testing.T) {
	revs := newStubRevocations()
	svc := newTestService(t, revs)
	h := NewHandler(svc, false)

	token, _, err := svc.CreateSession(context.Background(), rbac.RoleAdmin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/admin-login", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	h.Logout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Len(t, revs.revoked, 1)
}

func TestHandlerMe(t *testing.T) {
	svc := newTestService(t, nil)
	h := NewHandler(svc, false)

	token, _, err := svc.CreateSession(context.Background(), rbac.RoleModerator)
	require.NoError(t, err)

	handler := middleware.Session(svc)(http.HandlerFunc(h.Me))
	req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"role":"moderator","permissions":["VIEW_ORDERS","UPDATE_ORDERS","VIEW_STATS","ADMIN_ACCESS"],"canAccessAdmin":true,"expiresAt":"2026-03-02T12:00:00Z"}`,
		rec.Body.String())
}
