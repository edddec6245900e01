package verification

import (
	"net/http"

	"github.com/antonminaichev/linkcard/internal/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type mobileReq struct {
	Mobile string `json:"mobile"`
}

type verifyReq struct {
	Mobile string `json:"mobile"`
	OTP    string `json:"otp"`
}

type verifyResp struct {
	Success  bool `json:"success"`
	Verified bool `json:"verified"`
}

func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req mobileReq
	if err := middleware.DecodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	res, err := h.svc.RequestCode(r.Context(), req.Mobile)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyReq
	if err := middleware.DecodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	ok, err := h.svc.VerifyCode(r.Context(), req.Mobile, req.OTP)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, verifyResp{Success: true, Verified: ok})
}

func (h *Handler) Bypass(w http.ResponseWriter, r *http.Request) {
	var req mobileReq
	if err := middleware.DecodeJSON(r, &req); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := h.svc.Bypass(r.Context(), req.Mobile); err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, verifyResp{Success: true, Verified: true})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), r.URL.Query().Get("mobile"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}
