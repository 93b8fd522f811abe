package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/vaultgate/internal/ctxkeys"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/service"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error     string `json:"error"`
	Remaining *int64 `json:"remaining_bytes,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses. Denial reasons
// stay in the logs. A file, folder or project the caller cannot see answers
// exactly like a missing one.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var quota *service.QuotaExceededError
	var denied *service.AccessDeniedError

	switch {
	case errors.As(err, &quota):
		remaining := quota.Remaining
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error:     "storage quota exceeded",
			Remaining: &remaining,
		})
	case errors.As(err, &denied):
		slog.Info("access denied", "reason", denied.Reason.String(), "path", r.URL.Path, "user_id", userID(r))
		if revealsExistence(denied.Reason) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrAccessDenied):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrResourceExpired):
		writeError(w, http.StatusConflict, "project has expired, contact an administrator to extend the project")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, strings.TrimPrefix(err.Error(), service.ErrConflict.Error()+": "))
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": "))
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrAccountLocked):
		writeError(w, http.StatusForbidden, "account is locked, contact an administrator")
	default:
		slog.Error("request failed", "error", err, "path", r.URL.Path, "user_id", userID(r), "request_id", ctxkeys.RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// revealsExistence reports whether a 403 for this reason would tell the
// caller that a resource they cannot see exists. Account management denials
// only reach admins, who can list accounts anyway, and a non-owner delete
// is refused on something the caller can already read.
func revealsExistence(reason policy.Reason) bool {
	switch reason {
	case policy.ReasonProtectedAdmin, policy.ReasonAdminRequired, policy.ReasonNotOwner:
		return false
	}
	return true
}

func userID(r *http.Request) string {
	if u := ctxkeys.User(r.Context()); u != nil {
		return u.ID
	}
	return ""
}
