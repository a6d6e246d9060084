package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/securenotes/internal/common"
	"github.com/dmitrijs2005/securenotes/internal/logging"
	"github.com/dmitrijs2005/securenotes/internal/server/kvstore"
	"github.com/dmitrijs2005/securenotes/internal/server/models"
)

const (
	otpDigits      = 6
	otpTTL         = 5 * time.Minute
	otpMaxAttempts = 5
	otpMaxSends    = 3
	otpSendWindow  = time.Hour
)

// OTPSender delivers a one-time code to a phone number.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogOTPSender writes codes to the log instead of sending an SMS.
type LogOTPSender struct {
	logger logging.Logger
}

func NewLogOTPSender(logger logging.Logger) *LogOTPSender {
	return &LogOTPSender{logger: logger}
}

func (s *LogOTPSender) SendOTP(ctx context.Context, phone, code string) error {
	s.logger.Info(ctx, "otp issued", "phone", phone, "code", code)
	return nil
}

// OTPService signs users in with a code sent to their phone.
type OTPService struct {
	identity *IdentityService
	kv       kvstore.Store
	sender   OTPSender
}

func NewOTPService(identity *IdentityService, kv kvstore.Store, sender OTPSender) *OTPService {
	return &OTPService{identity: identity, kv: kv, sender: sender}
}

func otpKey(phone string) string         { return "otp:code:" + phone }
func otpAttemptsKey(phone string) string { return "otp:attempts:" + phone }
func otpSendsKey(phone string) string    { return "otp:sends:" + phone }

// SendOTP issues a fresh code for phone. Any earlier code and its attempt
// counter are discarded. At most otpMaxSends codes are issued per phone
// within otpSendWindow.
func (s *OTPService) SendOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone is required", common.ErrorValidation)
	}

	sends, err := s.kv.Incr(ctx, otpSendsKey(phone), otpSendWindow)
	if err != nil {
		return fmt.Errorf("error counting otp sends: %w", err)
	}
	if sends > otpMaxSends {
		return common.ErrTooManyAttempts
	}

	code, err := common.MakeNumericCode(otpDigits)
	if err != nil {
		return common.ErrorInternal
	}

	if err := s.kv.Del(ctx, otpAttemptsKey(phone)); err != nil {
		return fmt.Errorf("error resetting otp attempts: %w", err)
	}
	if err := s.kv.Set(ctx, otpKey(phone), code, otpTTL); err != nil {
		return fmt.Errorf("error storing otp: %w", err)
	}

	return s.sender.SendOTP(ctx, phone, code)
}

// VerifyOTP checks code for phone and, on success, signs the phone's
// account in, creating it on first use.
func (s *OTPService) VerifyOTP(ctx context.Context, phone, code string) (*TokenPair, error) {
	phone = strings.TrimSpace(phone)

	n, err := s.kv.Incr(ctx, otpAttemptsKey(phone), otpTTL)
	if err != nil {
		return nil, fmt.Errorf("error counting otp attempts: %w", err)
	}
	if n > otpMaxAttempts {
		_ = s.kv.Del(ctx, otpKey(phone), otpAttemptsKey(phone))
		return nil, common.ErrTooManyAttempts
	}

	stored, err := s.kv.Get(ctx, otpKey(phone))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, common.ErrInvalidOTP
		}
		return nil, fmt.Errorf("error reading otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		return nil, common.ErrInvalidOTP
	}

	if err := s.kv.Del(ctx, otpKey(phone), otpAttemptsKey(phone)); err != nil {
		return nil, fmt.Errorf("error consuming otp: %w", err)
	}

	p, err := s.profileForPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	return s.identity.issue(ctx, s.identity.db, p)
}

func (s *OTPService) profileForPhone(ctx context.Context, phone string) (*models.Profile, error) {
	repo := s.identity.repomanager.Profiles(s.identity.db)

	p, err := repo.GetByPhone(ctx, phone)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error loading profile: %w", err)
	}

	p, err = repo.Create(ctx, &models.Profile{
		Phone:  phone,
		Name:   phone,
		Role:   common.RoleStudent,
		Status: s.identity.signupStatus,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		// Lost a race with a concurrent first sign-in.
		return repo.GetByPhone(ctx, phone)
	}
	if err != nil {
		return nil, fmt.Errorf("error creating profile: %w", err)
	}
	return p, nil
}
