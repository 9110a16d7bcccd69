package auth

import (
	"errors"
	"fmt"
	"time"
)

// ErrWrongPassword is returned on a failed operator login.
var ErrWrongPassword = errors.New("auth: wrong password") //nolint:gochecknoglobals // sentinel error

// Service authenticates the single operator and issues session tokens.
type Service struct {
	secret       string
	passwordHash string
	tokenTTL     time.Duration
}

// NewService creates an auth Service. passwordHash is an argon2id hash as
// produced by HashPassword.
func NewService(secret, passwordHash string, tokenTTL time.Duration) *Service {
	return &Service{
		secret:       secret,
		passwordHash: passwordHash,
		tokenTTL:     tokenTTL,
	}
}

// Login verifies the operator password and returns a session token.
func (s *Service) Login(password string) (string, error) {
	if !VerifyPassword(password, s.passwordHash) {
		return "", fmt.Errorf("auth.Service.Login: %w", ErrWrongPassword)
	}

	token, err := IssueToken(s.secret, s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("auth.Service.Login: %w", err)
	}

	return token, nil
}

// Validate checks a session token and returns its claims.
func (s *Service) Validate(token string) (*Claims, error) {
	claims, err := ValidateToken(s.secret, token)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Validate: %w", err)
	}

	return claims, nil
}
