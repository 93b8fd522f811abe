package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/lifecycle"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/repository"
	"github.com/templui/vaultgate/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	store     *repository.Store
	notifier  activity.Notifier
	mailer    Mailer
	clock     Clock
	jwtSecret string
	jwtExpiry time.Duration
}

func NewAuthService(
	store *repository.Store,
	notifier activity.Notifier,
	mailer Mailer,
	clock Clock,
	jwtSecret string,
	jwtExpiry time.Duration,
) *AuthService {
	return &AuthService{
		store:     store,
		notifier:  notifier,
		mailer:    mailer,
		clock:     clock,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

// Login authenticates by email and password. An account past the
// inactivity window is locked here, before the password is even checked.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.store.Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	now := s.clock.Now()
	if user.IsActive && lifecycle.Inactive(user.Role, user.LastLogin, now) {
		_, err := s.lock(ctx, user, model.ActionLoginLocked, model.SeverityWarning)
		if err != nil {
			return nil, fmt.Errorf("failed to lock inactive account: %w", err)
		}
		return nil, fmt.Errorf("inactive for more than 30 days: %w", ErrAccountLocked)
	}
	if !user.IsActive {
		return nil, ErrAccountLocked
	}

	err = s.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", ErrInvalidCredentials)
	}

	err = s.store.Users.TouchLogin(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now

	s.notifier.Record(ctx, activity.Event{
		UserID:     user.ID,
		Action:     model.ActionLogin,
		TargetType: model.TargetUser,
		TargetID:   user.ID,
		TargetName: user.Email,
		Severity:   model.SeverityInfo,
		At:         now,
	})
	return user, nil
}

// ChangePassword replaces the principal's password after checking the
// current one. The new password must pass the strength rules and differ
// from the old.
func (s *AuthService) ChangePassword(ctx context.Context, principal *model.User, current, next string) error {
	user, err := s.store.Users.ByID(ctx, principal.ID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	err = s.ComparePassword(current, user.PasswordHash)
	if err != nil {
		return invalid("current password is incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return invalid("%s", err)
	}
	if next == current {
		return invalid("new password must differ from the current one")
	}

	hash, err := s.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	now := s.clock.Now()
	err = s.store.Users.SetPassword(ctx, user.ID, hash, now)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.notifier.Record(ctx, activity.Event{
		UserID:     user.ID,
		Action:     model.ActionPasswordChange,
		TargetType: model.TargetUser,
		TargetID:   user.ID,
		TargetName: user.Email,
		Severity:   model.SeverityInfo,
		At:         now,
	})
	return nil
}

// lock deactivates the account, records the event and mails the owner.
// Reports false when another writer locked it first.
func (s *AuthService) lock(ctx context.Context, user *model.User, action, severity string) (bool, error) {
	now := s.clock.Now()
	ok, err := s.store.Users.Lock(ctx, user.ID, now)
	if err != nil || !ok {
		return false, err
	}
	user.IsActive = false

	s.notifier.Record(ctx, activity.Event{
		UserID:     user.ID,
		Action:     action,
		TargetType: model.TargetUser,
		TargetID:   user.ID,
		TargetName: user.Email,
		Severity:   severity,
		Details:    map[string]any{"last_login": user.LastLogin},
		At:         now,
	})

	if s.mailer != nil {
		err = s.mailer.SendAccountLockedEmail(ctx, user.Email, user.Name)
		if err != nil {
			slog.Warn("failed to send account locked email", "error", err, "user_id", user.ID)
		}
	}
	return true, nil
}

// HashPassword hashes with bcrypt at the default cost
func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateJWT issues an HS256 token carrying user_id, email and role.
// It expires after the configured JWT lifetime
func (s *AuthService) GenerateJWT(user *model.User) (string, error) {
	now := s.clock.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     now.Add(s.jwtExpiry).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyJWT checks signature and expiry against the service clock
func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.clock.Now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Authenticate resolves a bearer token to an active user.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*model.User, error) {
	claims, err := s.VerifyJWT(tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("%w: token without subject", ErrInvalidCredentials)
	}

	user, err := s.store.Users.ByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountLocked
	}
	return user, nil
}
