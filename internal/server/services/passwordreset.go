package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/dbx"
	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/auth"
	"github.com/dmitrijs2005/securenotes/internal/server/kvstore"
	"github.com/dmitrijs2005/securenotes/internal/server/mailer"
	"github.com/dmitrijs2005/securenotes/internal/server/repositories/repomanager"
)

const resetTokenTTL = 30 * time.Minute

type PasswordResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	kv          kvstore.Store
	mailer      mailer.Mailer
	appBaseURL  string
	logger      logging.Logger
}

func NewPasswordResetService(db *sql.DB, m repomanager.RepositoryManager, kv kvstore.Store, ml mailer.Mailer, appBaseURL string, logger logging.Logger) *PasswordResetService {
	return &PasswordResetService{
		db:          db,
		repomanager: m,
		kv:          kv,
		mailer:      ml,
		appBaseURL:  strings.TrimRight(appBaseURL, "/"),
		logger:      logger,
	}
}

func resetKey(token string) string { return "reset:" + token }

// RequestReset mails a reset link to email. Unknown addresses succeed
// without sending anything, so the endpoint does not reveal accounts.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	p, err := s.repomanager.Profiles(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset for unknown email")
			return nil
		}
		return fmt.Errorf("error loading profile: %w", err)
	}

	token, err := common.MakeRandHexString(32)
	if err != nil {
		return common.ErrorInternal
	}
	if err := s.kv.Set(ctx, resetKey(token), p.ID, resetTokenTTL); err != nil {
		return fmt.Errorf("error storing reset token: %w", err)
	}

	link := s.appBaseURL + "/reset-password?token=" + url.QueryEscape(token)
	return s.mailer.SendPasswordReset(ctx, p.Email, link)
}

// ConfirmReset sets a new password for the account the token was issued
// to and signs that account out everywhere.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, password string) error {
	userID, err := s.kv.Get(ctx, resetKey(token))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return common.ErrInvalidResetToken
		}
		return fmt.Errorf("error reading reset token: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Profiles(tx).UpdatePassword(ctx, userID, hash); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		if err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("error revoking refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.kv.Del(ctx, resetKey(token)); err != nil {
		s.logger.Warn(ctx, "reset token not deleted", "error", err)
	}
	s.logger.Info(ctx, "password reset", "user_id", userID)
	return nil
}
