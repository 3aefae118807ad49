// Package httptransport is the thin HTTP layer. Handlers decode requests,
// delegate to the session, cascade, and submission services, and translate
// coded errors into JSON envelopes.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/sentinel"
)

// errorResponse is the JSON error envelope every failed request returns.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates a coded error into an HTTP response. Sentinel errors
// from the session layer map directly; everything else goes through the
// domain error code.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "session not found"})
		return
	case errors.Is(err, sentinel.ErrExpired):
		writeJSON(w, http.StatusGone, errorResponse{Error: "expired", Message: "session expired"})
		return
	}
	code := dErrors.CodeOf(err)
	writeJSON(w, statusOf(code), errorResponse{Error: string(code), Message: dErrors.MessageOf(err)})
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeRemote, dErrors.CodeDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
