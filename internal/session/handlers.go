package session

import (
	"net/http"
	"time"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/middleware"
	"github.com/antonminaichev/linkcard/internal/rbac"
	"github.com/antonminaichev/linkcard/internal/types/user"
)

type Handler struct {
	svc          *Service
	secureCookie bool
}

func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

type loginReq struct {
	PIN string `json:"pin"`
}

type loginResp struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := middleware.DecodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	token, expiresAt, err := h.svc.Login(r.Context(), req.PIN)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	http.SetCookie(w, h.cookie(token, int(h.svc.TTL()/time.Second)))
	middleware.WriteJSON(w, http.StatusOK, loginResp{Success: true, ExpiresAt: expiresAt})
}

// Logout always clears the cookie, even when the token was already invalid.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.SessionCookie); err == nil {
		if err := h.svc.DestroySession(r.Context(), c.Value); err != nil {
			middleware.WriteError(w, err)
			return
		}
	}
	http.SetCookie(w, h.cookie("", -1))
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apperr.Unauthenticated())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, user.MeDTO{
		Role:           p.Role,
		Permissions:    rbac.Permissions(p.Role),
		CanAccessAdmin: rbac.HasAdminAccess(p.Role),
		ExpiresAt:      p.ExpiresAt,
	})
}
