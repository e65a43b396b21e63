package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"room-relay-backend/internal/repository"
	"room-relay-backend/pkg/utils"

	"github.com/sirupsen/logrus"
)

type MasterStore interface {
	GetMasterHash(ctx context.Context) (string, error)
	SetMasterHash(ctx context.Context, hash string) error
}

type AuthService struct {
	store  MasterStore
	tokens *utils.TokenManager
	audit  AuditLogger
}

func NewAuthService(store MasterStore, tokens *utils.TokenManager, audit AuditLogger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		audit:  audit,
	}
}

// LoginResponse represents the response structure for login
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login checks the master password and issues a master token
func (s *AuthService) Login(ctx context.Context, password string) (*LoginResponse, error) {
	hash, err := s.store.GetMasterHash(ctx)
	if errors.Is(err, repository.ErrCredentialNotSet) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load master credential: %w", err)
	}

	if !utils.ComparePassword(hash, password) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue()
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	logAudit(ctx, s.audit, "", "master_login", "Master logged in")

	return &LoginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Bootstrap seeds the master credential from password unless one is
// already stored. An empty password leaves the store untouched.
func (s *AuthService) Bootstrap(ctx context.Context, password string) error {
	_, err := s.store.GetMasterHash(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrCredentialNotSet) {
		return fmt.Errorf("failed to load master credential: %w", err)
	}
	if password == "" {
		logrus.Warn("No master credential stored and MASTER_PASSWORD is empty; login is disabled")
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.store.SetMasterHash(ctx, hash); err != nil {
		return fmt.Errorf("failed to store master credential: %w", err)
	}

	logrus.Info("Master credential initialized")
	return nil
}

// VerifyToken reports whether token is a valid master token
func (s *AuthService) VerifyToken(token string) bool {
	return s.tokens.VerifyToken(token)
}
