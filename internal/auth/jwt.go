// Package auth issues and verifies the JWT bearer tokens that protect the
// control plane.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/logger"
)

// DefaultTokenExpiry is used when the config does not set one.
const DefaultTokenExpiry = 24 * time.Hour

// Claims is the token payload. Authorization decisions read is_admin and
// category_id on every request, so both travel in the token.
type Claims struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	IsAdmin      bool   `json:"is_admin"`
	CategoryID   int64  `json:"category_id"`
	IsPermission bool   `json:"is_permission"`
	jwt.RegisteredClaims
}

// UserStore is the slice of the user repository the manager needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	VerifyPassword(ctx context.Context, username, password string) (*domain.User, error)
}

// Manager signs, verifies and revalidates tokens against the user store.
type Manager struct {
	secret []byte
	expiry time.Duration
	users  UserStore
	logger logger.Interface
}

// NewManager creates a token manager from the auth config.
func NewManager(cfg *config.AuthConfig, users UserStore, log logger.Interface) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	expiry := cfg.TokenExpiry
	if expiry <= 0 {
		expiry = DefaultTokenExpiry
	}
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		expiry: expiry,
		users:  users,
		logger: log,
	}, nil
}

// TokenExpiry returns how long issued tokens stay valid.
func (m *Manager) TokenExpiry() time.Duration {
	return m.expiry
}

// Login checks credentials and returns a signed token with the user it
// authenticates. Wrong username and wrong password are indistinguishable to
// the caller.
func (m *Manager) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := m.users.VerifyPassword(ctx, username, password)
	if err != nil {
		return "", nil, fmt.Errorf("failed to verify credentials: %w", err)
	}
	if user == nil {
		m.logger.Warn("login rejected", "username", username)
		return "", nil, ErrInvalidCredentials
	}

	token, err := m.GenerateToken(user)
	if err != nil {
		return "", nil, err
	}

	m.logger.Info("user logged in", "username", username)
	return token, user, nil
}

// GenerateToken signs a token for the given user.
func (m *Manager) GenerateToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:       user.ID,
		Username:     user.Username,
		IsAdmin:      user.IsAdmin,
		CategoryID:   user.CategoryID,
		IsPermission: user.IsPermission,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and confirms the user behind it still exists. A
// transient store failure does not invalidate an otherwise good token; the
// claims are trusted and a warning is logged.
func (m *Manager) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	user, err := m.users.GetByUsername(ctx, claims.Username)
	if err != nil {
		m.logger.Warn("user lookup failed during token verification, trusting claims",
			"username", claims.Username,
			"error", err,
		)
		return claims, nil
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return claims, nil
}
