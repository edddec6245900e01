package order

import (
	"net/http"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/middleware"
	"github.com/antonminaichev/linkcard/internal/types/order"
	"github.com/antonminaichev/linkcard/internal/types/user"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type statusReq struct {
	Status string `json:"status"`
}

type resendReq struct {
	EmailType string `json:"emailType"`
}

type resendFailure struct {
	Error  string           `json:"error"`
	Result order.SendResult `json:"result"`
}

func principal(w http.ResponseWriter, r *http.Request) (user.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, apperr.Unauthenticated())
	}
	return p, ok
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orders, err := h.svc.ListOrders(r.Context(), p)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var d order.Draft
	if err := middleware.DecodeJSON(r, &d); err != nil {
		middleware.WriteError(w, err)
		return
	}
	o, err := h.svc.CreateOrder(r.Context(), p, d)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req statusReq
	if err := middleware.DecodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	o, err := h.svc.UpdateStatus(r.Context(), p, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) ResendEmail(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req resendReq
	if err := middleware.DecodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	res, err := h.svc.ResendNotification(r.Context(), p, chi.URLParam(r, "id"), req.EmailType)
	if err != nil {
		// the attempt was made and recorded; report it alongside the failure
		if apperr.KindOf(err) == apperr.KindExternalService && res.OrderID != "" {
			middleware.WriteJSON(w, apperr.HTTPStatus(err), resendFailure{Error: apperr.PublicMessage(err), Result: res})
			return
		}
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
