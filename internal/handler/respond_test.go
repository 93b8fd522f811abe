package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/service"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "quota exceeded",
			err:        &service.QuotaExceededError{Requested: 600, Remaining: 400},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  "storage quota exceeded",
		},
		{
			name:       "private resource looks missing",
			err:        fmt.Errorf("upload: %w", &service.AccessDeniedError{Reason: policy.ReasonPrivate}),
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
		{
			name:       "unassigned project looks missing",
			err:        &service.AccessDeniedError{Reason: policy.ReasonNotAssigned},
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
		{
			name:       "protected admin stays forbidden",
			err:        &service.AccessDeniedError{Reason: policy.ReasonProtectedAdmin},
			wantStatus: http.StatusForbidden,
			wantError:  "access denied",
		},
		{
			name:       "non-owner delete of a visible file",
			err:        &service.AccessDeniedError{Reason: policy.ReasonNotOwner},
			wantStatus: http.StatusForbidden,
			wantError:  "access denied",
		},
		{
			name:       "expired project",
			err:        service.ErrResourceExpired,
			wantStatus: http.StatusConflict,
			wantError:  "project has expired, contact an administrator to extend the project",
		},
		{
			name:       "not found",
			err:        service.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantError:  "not found",
		},
		{
			name:       "conflict keeps detail",
			err:        fmt.Errorf("%w: folder already exists", service.ErrConflict),
			wantStatus: http.StatusConflict,
			wantError:  "folder already exists",
		},
		{
			name:       "invalid input keeps detail",
			err:        fmt.Errorf("%w: name is required", service.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantError:  "name is required",
		},
		{
			name:       "bad credentials",
			err:        service.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid email or password",
		},
		{
			name:       "locked account",
			err:        service.ErrAccountLocked,
			wantStatus: http.StatusForbidden,
			wantError:  "account is locked, contact an administrator",
		},
		{
			name:       "internal details are not leaked",
			err:        errors.New("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/files", nil)

			handleServiceError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body errorResponse
			err := json.NewDecoder(rec.Body).Decode(&body)
			if err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Error != tt.wantError {
				t.Errorf("error = %q, want %q", body.Error, tt.wantError)
			}
		})
	}
}

func TestHandleServiceErrorRemainingBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/files", nil)

	handleServiceError(rec, req, &service.QuotaExceededError{Requested: 600, Remaining: 400})

	var body errorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Remaining == nil || *body.Remaining != 400 {
		t.Errorf("remaining_bytes = %v, want 400", body.Remaining)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"valid", `{"email":"a@example.com","password":"x"}`, true},
		{"unknown field", `{"email":"a@example.com","admin":true}`, false},
		{"malformed", `{"email":`, false},
		{"empty", ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))

			var v loginRequest
			got := decodeJSON(rec, req, &v)
			if got != tt.want {
				t.Errorf("decodeJSON = %v, want %v", got, tt.want)
			}
			if !got && rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}
