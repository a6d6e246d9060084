// Package services contains the server-side business logic behind the
// transports: accounts and sessions, the admin console and the student
// catalog. The note viewer lives in its own package.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/config"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// IdentityService registers accounts, signs them in with a password and
// rotates their tokens. Other sign-in methods reuse its token issuing.
type IdentityService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	signupStatus                 string
	logger                       logging.Logger
}

func NewIdentityService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *IdentityService {
	status := cfg.SignupStatus
	if status != common.StatusActive {
		status = common.StatusPending
	}
	return &IdentityService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		signupStatus:                 status,
		logger:                       logger,
	}
}

// Register creates a student account. The display name falls back to the
// email address.
func (s *IdentityService) Register(ctx context.Context, email, password, name string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrorValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}

	p, err := s.repomanager.Profiles(s.db).Create(ctx, &models.Profile{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         common.RoleStudent,
		Status:       s.signupStatus,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating profile: %w", err)
	}

	s.logger.Info(ctx, "account registered", "user_id", p.ID, "status", p.Status)
	return p, nil
}

// EnsureAdmin makes the account with this email an active admin, creating
// it with the given password when it does not exist yet. An existing
// account keeps its password.
func (s *IdentityService) EnsureAdmin(ctx context.Context, email, password, name string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrorValidation)
	}

	profiles := s.repomanager.Profiles(s.db)
	p, err := profiles.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := profiles.Promote(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("error promoting profile: %w", err)
		}
		p.Role, p.Status = common.RoleAdmin, common.StatusActive
		s.logger.Info(ctx, "account promoted to admin", "user_id", p.ID)
		return p, nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error loading profile: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name == "" {
		name = email
	}

	p, err = profiles.Create(ctx, &models.Profile{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         common.RoleAdmin,
		Status:       common.StatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating profile: %w", err)
	}
	s.logger.Info(ctx, "admin account created", "user_id", p.ID)
	return p, nil
}

func (s *IdentityService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	p, err := s.repomanager.Profiles(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if err := auth.CheckPassword(p.PasswordHash, password); err != nil {
		return nil, common.ErrorUnauthorized
	}

	return s.issue(ctx, s.db, p)
}

// RefreshToken exchanges a refresh token for a new pair. The presented
// token is consumed in the same transaction that stores its successor. An
// expired token is consumed as well.
func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	var expired bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		token, err := s.repomanager.RefreshTokens(tx).Consume(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("error consuming refresh token: %w", err)
		}
		if token.IsExpired(time.Now()) {
			expired = true
			return nil
		}

		p, err := s.repomanager.Profiles(tx).GetByID(ctx, token.UserID)
		if err != nil {
			return fmt.Errorf("error loading profile: %w", err)
		}

		pair, err = s.issue(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, common.ErrRefreshTokenExpired
	}
	return pair, nil
}

// Logout revokes the presented refresh token.
func (s *IdentityService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

// Me returns the caller's profile.
func (s *IdentityService) Me(ctx context.Context, sess *auth.Session) (*models.Profile, error) {
	if sess == nil {
		return nil, common.ErrorUnauthorized
	}
	p, err := s.repomanager.Profiles(s.db).GetByID(ctx, sess.ID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	return p, nil
}

// RequireAdmin returns nil only for an active admin session.
func (s *IdentityService) RequireAdmin(ctx context.Context, sess *auth.Session) error {
	return requireAdmin(ctx, s.db, s.repomanager, sess)
}

func requireAdmin(ctx context.Context, db dbx.DBTX, m repomanager.RepositoryManager, sess *auth.Session) error {
	if sess == nil {
		return common.ErrorUnauthorized
	}
	ok, err := m.Profiles(db).IsAdmin(ctx, sess.ID())
	if err != nil {
		return fmt.Errorf("error checking admin role: %w", err)
	}
	if !ok {
		return common.ErrorForbidden
	}
	return nil
}

func (s *IdentityService) issue(ctx context.Context, db dbx.DBTX, p *models.Profile) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(p.ID, p.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}

	if err := s.repomanager.RefreshTokens(db).Create(ctx, p.ID, refreshToken, s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
