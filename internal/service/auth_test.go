package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/service"
)

func TestChangePassword(t *testing.T) {
	const next = "staple-lantern-orbit"

	tests := []struct {
		name    string
		current string
		next    string
		wantErr error
	}{
		{"wrong current password", "not-my-password", next, service.ErrInvalidInput},
		{"too short", testPassword, "short", service.ErrInvalidInput},
		{"weak pattern", testPassword, "password12345", service.ErrInvalidInput},
		{"unchanged", testPassword, testPassword, service.ErrInvalidInput},
		{"changed", testPassword, next, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			u := h.user(t, model.RoleMember, 1<<20)

			err := h.auth.ChangePassword(ctx, u, tt.current, tt.next)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			changes := len(h.events.ByAction(model.ActionPasswordChange))
			if tt.wantErr != nil {
				if changes != 0 {
					t.Errorf("password_change events = %d, want 0", changes)
				}
				_, err = h.auth.Login(ctx, u.Email, testPassword)
				if err != nil {
					t.Errorf("old password stopped working: %v", err)
				}
				return
			}

			if changes != 1 {
				t.Errorf("password_change events = %d, want 1", changes)
			}
			_, err = h.auth.Login(ctx, u.Email, testPassword)
			if !errors.Is(err, service.ErrInvalidCredentials) {
				t.Errorf("login with old password err = %v, want ErrInvalidCredentials", err)
			}
			_, err = h.auth.Login(ctx, u.Email, tt.next)
			if err != nil {
				t.Errorf("login with new password: %v", err)
			}
		})
	}
}

func TestChangePasswordIgnoresStaleHash(t *testing.T) {
	h := newHarness(t)
	u := h.user(t, model.RoleMember, 1<<20)

	// Authenticated principals carry no hash.
	principal := *u
	principal.PasswordHash = ""

	err := h.auth.ChangePassword(context.Background(), &principal, testPassword, "staple-lantern-orbit")
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
}
