// Package handlers implements the JSON API endpoints
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/nuggs-ai/nuggs/pkg/errors"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps an application error to its HTTP response. Limit-reached
// errors carry the shape the web client keys its paywall prompt on.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	appErr := apperrors.Wrap(err, "request failed")

	if appErr.StatusCode() >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("code", string(appErr.Code)),
			zap.String("message", appErr.Message),
			zap.Error(appErr.Cause),
		)
	}

	if appErr.Code == apperrors.CodeLimitReached {
		writeJSON(w, appErr.StatusCode(), map[string]interface{}{
			"error":        "Daily generation limit reached",
			"limitReached": true,
			"message":      appErr.Message,
		})
		return
	}

	body := map[string]interface{}{"error": appErr.Message}
	if appErr.Details != "" {
		body["details"] = appErr.Details
	}
	writeJSON(w, appErr.StatusCode(), body)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewBadRequestError("Invalid JSON body")
	}
	return nil
}
