package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/revoshop/internal/events"
	"github.com/Skotchmaster/revoshop/internal/logging"
	"github.com/Skotchmaster/revoshop/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionRevoked     = errors.New("session revoked")
)

const DefaultSessionTTL = 30 * 24 * time.Hour

type Service struct {
	Repo      *GormRepo
	Secret    []byte
	TTL       time.Duration
	Publisher events.Publisher
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultSessionTTL
	}
	return s.TTL
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	l := logging.FromContext(ctx).With("svc", "auth.login", "email", email)

	user, err := s.Repo.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	exp := now.Add(s.ttl())
	jti := uuid.NewString()

	token, err := SignSession(SessionClaims{
		Role:  user.Role,
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}, s.Secret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "sign token", "error", err)
		return nil, fmt.Errorf("sign session: %w", err)
	}

	if err := s.Repo.SaveSession(ctx, &models.Session{JTI: jti, UserID: user.ID, ExpiresAt: exp}); err != nil {
		l.Error("login_failed", "status", 500, "reason", "save session", "error", err)
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID.String(), user.Email, user.Role)
	l.Info("login_ok", "user_id", user.ID.String(), "role", user.Role)
	return &LoginResult{Token: token, ExpiresAt: exp, User: user}, nil
}

func (s *Service) Logout(ctx context.Context, claims *SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	if err := s.Repo.RevokeSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.publish(ctx, events.EventUserLoggedOut, claims.Subject, claims.Email, claims.Role)
	return nil
}

// ParseSession verifies a session token and checks it has not been revoked.
func (s *Service) ParseSession(ctx context.Context, token string) (*SessionClaims, error) {
	claims, err := ClaimsFromToken(token, s.Secret)
	if err != nil {
		return nil, err
	}
	active, err := s.Repo.SessionActive(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !active {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

func (s *Service) publish(ctx context.Context, name, userID, email, role string) {
	if s.Publisher == nil {
		return
	}
	env := events.NewEnvelope(name, userID, events.UserSession{UserID: userID, Email: email, Role: role})
	if err := s.Publisher.Publish(ctx, events.UserTopic, userID, env); err != nil {
		logging.FromContext(ctx).Warn("event_publish_error", "event", name, "error", err)
	}
}
