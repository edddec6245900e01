package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/antonminaichev/linkcard/internal/apperr"
	"github.com/antonminaichev/linkcard/internal/logger"

	"go.uber.org/zap"
)

type errorBody struct {
	Error string `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("encode response", zap.Error(err))
	}
}

// WriteError renders err as {"error": msg} with the status of its kind.
// Internal and external failures are logged with their cause.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Log.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	WriteJSON(w, status, errorBody{Error: apperr.PublicMessage(err)})
}

// DecodeJSON reads the request body into v, mapping decode failures to a
// validation error.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed JSON body", err)
	}
	return nil
}
