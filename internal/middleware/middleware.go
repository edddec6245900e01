package middleware

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/rbac"
	"github.com/antonminaichev/linkcard/internal/types/user"
)

// SessionCookie carries the signed admin session token.
const SessionCookie = "admin_session"

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func GzipHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gzr, err := gzip.NewReader(r.Body)
			if err != nil {
				WriteError(rw, apperr.Validation("malformed gzip body"))
				return
			}
			defer gzr.Close()
			r.Body = io.NopCloser(gzr)
		}

		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			rw.Header().Set("Content-Encoding", "gzip")
			gzw := gzip.NewWriter(rw)
			defer gzw.Close()

			gzrw := gzipResponseWriter{Writer: gzw, ResponseWriter: rw}
			next.ServeHTTP(gzrw, r)
		} else {
			next.ServeHTTP(rw, r)
		}
	})
}

// SessionValidator resolves a session token into its principal.
type SessionValidator interface {
	Authenticate(ctx context.Context, token string) (user.Principal, error)
}

type ctxKeyPrincipal struct{}

// Session rejects requests without a valid admin_session cookie and stores the
// resolved principal in the request context.
func Session(v SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil || c.Value == "" {
				WriteError(w, apperr.Unauthenticated())
				return
			}
			p, err := v.Authenticate(r.Context(), c.Value)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// RequirePermission must run after Session. Missing principals are treated
// as unauthenticated.
func RequirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, apperr.Unauthenticated())
				return
			}
			if !rbac.HasPermission(p.Role, perm) {
				WriteError(w, apperr.Forbidden())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdminAccess(next http.Handler) http.Handler {
	return RequirePermission(rbac.AdminAccess)(next)
}

func PrincipalFromContext(ctx context.Context) (user.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal{}).(user.Principal)
	return p, ok
}

func ContextWithPrincipal(ctx context.Context, p user.Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal{}, p)
}
