package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnw("encode response failed", "error", err)
	}
}

// writeError maps err to a status through its apperr code. Uncategorized
// errors are reported as 500 without their details.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		zap.S().Errorw("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	status := apperr.HTTPStatus(ae.Code)
	if status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed", "code", ae.Code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: ae.Message, Code: string(ae.Code), Retryable: ae.Retryable})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidRequest, err, "invalid body")
	}
	return nil
}
