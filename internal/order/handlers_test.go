package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antonminaichev/linkcard/internal/middleware"
	"github.com/antonminaichev/linkcard/internal/types/order"
	"github.com/antonminaichev/linkcard/internal/types/user"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPrincipal(p *user.Principal, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			r = r.WithContext(middleware.ContextWithPrincipal(r.Context(), *p))
		}
		next.ServeHTTP(w, r)
	})
}

func testRouter(h *Handler, p *user.Principal) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/orders", h.ListOrders)
	r.Post("/admin/orders", h.CreateOrder)
	r.Patch("/admin/orders/{id}/status", h.UpdateStatus)
	r.Post("/admin/orders/{id}/resend-email", h.ResendEmail)
	return withPrincipal(p, r)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerUpdateStatus(t *testing.T) {
	svc, _, _ := newTestService()
	seed(t, svc)
	h := testRouter(NewHandler(svc), &admin)

	tests := []struct {
		name string
		ref  string
		body string
		code int
	}{
		{"by number", "LNK-1001", `{"status":"shipped"}`, http.StatusOK},
		{"back to pending", "LNK-1001", `{"status":"pending"}`, http.StatusOK},
		{"unknown status", "LNK-1001", `{"status":"lost"}`, http.StatusBadRequest},
		{"wrong case", "LNK-1001", `{"status":"Pending"}`, http.StatusBadRequest},
		{"missing order", "LNK-2000", `{"status":"shipped"}`, http.StatusNotFound},
		{"bad json", "LNK-1001", `status=shipped`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPatch, "/admin/orders/"+tt.ref+"/status", tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestHandlerUpdateStatusResponse(t *testing.T) {
	svc, _, _ := newTestService()
	seed(t, svc)
	h := testRouter(NewHandler(svc), &moderator)

	rec := do(t, h, http.MethodPatch, "/admin/orders/LNK-1001/status", `{"status":"production"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "LNK-1001", got.Number)
	assert.Equal(t, order.StatusProduction, got.Status)
	assert.NotContains(t, rec.Body.String(), "version")
}

func TestHandlerCreateAndList(t *testing.T) {
	svc, _, _ := newTestService()
	h := testRouter(NewHandler(svc), &admin)

	rec := do(t, h, http.MethodPost, "/admin/orders",
		`{"customerName":"Asha Rao","email":"asha@example.com","cardConfig":{"firstName":"Asha","lastName":"Rao"},"pricing":{"total":10}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"orderNumber":"LNK-1001"`)
	assert.Contains(t, rec.Body.String(), `"status":"pending"`)

	rec = do(t, h, http.MethodGet, "/admin/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	assert.Len(t, orders, 1)
}

func TestHandlerForbiddenAndUnauthenticated(t *testing.T) {
	svc, _, _ := newTestService()
	seed(t, svc)

	rec := do(t, testRouter(NewHandler(svc), &customer), http.MethodGet, "/admin/orders", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden"}`, rec.Body.String())

	rec = do(t, testRouter(NewHandler(svc), nil), http.MethodGet, "/admin/orders", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerResendEmail(t *testing.T) {
	svc, repo, n := newTestService()
	seed(t, svc)
	h := testRouter(NewHandler(svc), &admin)

	rec := do(t, h, http.MethodPost, "/admin/orders/LNK-1001/resend-email", `{"emailType":"confirmation"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	rec = do(t, h, http.MethodPost, "/admin/orders/LNK-1001/resend-email", `{"emailType":"spam"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	n.sendFn = func(ctx context.Context, o order.Order, kind order.NotificationKind) error {
		return errors.New("provider down")
	}
	rec = do(t, h, http.MethodPost, "/admin/orders/LNK-1001/resend-email", `{"emailType":"confirmation"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"notification dispatch failed"`)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.NotContains(t, rec.Body.String(), "provider down")

	assert.Len(t, repo.get(t, "LNK-1001").EmailsSent, 2)
}

func TestHandlerResendEmailModeratorForbidden(t *testing.T) {
	svc, repo, _ := newTestService()
	seed(t, svc)
	h := testRouter(NewHandler(svc), &moderator)

	rec := do(t, h, http.MethodPost, "/admin/orders/LNK-1001/resend-email", `{"emailType":"shipped"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, repo.get(t, "LNK-1001").EmailsSent)
}
