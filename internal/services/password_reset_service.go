package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/voluntrack/voluntrack/internal/metrics"
	"github.com/voluntrack/voluntrack/internal/models"
	"github.com/voluntrack/voluntrack/pkg/utils"
)

const (
	DefaultOTPTTL         = 10 * time.Minute
	DefaultOTPMaxAttempts = 5
)

type passwordResetStore interface {
	Upsert(ctx context.Context, reset *models.PasswordReset) error
	Get(ctx context.Context, email string) (*models.PasswordReset, error)
	RecordFailedAttempt(ctx context.Context, email, codeHash string) (int, error)
	MarkVerified(ctx context.Context, email, codeHash string, maxAttempts int) (bool, error)
	Delete(ctx context.Context, email string) error
}

type passwordUserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

type PasswordResetService struct {
	resets      passwordResetStore
	users       passwordUserStore
	mailer      Mailer
	clock       clockwork.Clock
	ttl         time.Duration
	maxAttempts int
	generate    func() (string, error)
	log         zerolog.Logger
}

type PasswordResetOption func(*PasswordResetService)

func WithOTPClock(clock clockwork.Clock) PasswordResetOption {
	return func(s *PasswordResetService) { s.clock = clock }
}

func WithOTPPolicy(ttl time.Duration, maxAttempts int) PasswordResetOption {
	return func(s *PasswordResetService) {
		if ttl > 0 {
			s.ttl = ttl
		}
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
	}
}

// WithOTPGenerator replaces the random code source.
func WithOTPGenerator(generate func() (string, error)) PasswordResetOption {
	return func(s *PasswordResetService) { s.generate = generate }
}

func NewPasswordResetService(
	resets passwordResetStore,
	users passwordUserStore,
	mailer Mailer,
	log zerolog.Logger,
	opts ...PasswordResetOption,
) *PasswordResetService {
	s := &PasswordResetService{
		resets:      resets,
		users:       users,
		mailer:      mailer,
		clock:       clockwork.NewRealClock(),
		ttl:         DefaultOTPTTL,
		maxAttempts: DefaultOTPMaxAttempts,
		generate:    utils.GenerateOTP,
		log:         log.With().Str("component", "password-reset").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendOTP issues a new reset code for the account. Unknown emails succeed
// silently so callers cannot probe for accounts.
func (s *PasswordResetService) SendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Debug().Str("email", email).Msg("reset requested for unknown email")
			return nil
		}
		return err
	}

	code, err := s.generate()
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(code)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	reset := &models.PasswordReset{
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.resets.Upsert(ctx, reset); err != nil {
		return err
	}
	return s.mailer.SendPasswordResetCode(ctx, email, code, reset.ExpiresAt)
}

// VerifyOTP checks a code. A wrong code uses up one attempt; the last
// allowed failure invalidates the code. The counter is incremented by the
// store so concurrent guesses cannot share an attempt.
func (s *PasswordResetService) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	reset, err := s.activeReset(ctx, email)
	if err != nil {
		return err
	}

	if !utils.CheckPassword(code, reset.CodeHash) {
		attempts, err := s.resets.RecordFailedAttempt(ctx, email, reset.CodeHash)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOTPInvalid
			}
			return err
		}
		remaining := s.maxAttempts - attempts
		if remaining <= 0 {
			metrics.OTPVerifications.WithLabelValues("locked").Inc()
			if err := s.resets.Delete(ctx, email); err != nil {
				return err
			}
			return ErrOTPAttemptsExceeded
		}
		metrics.OTPVerifications.WithLabelValues("mismatch").Inc()
		return &OTPMismatchError{Remaining: remaining}
	}

	verified, err := s.resets.MarkVerified(ctx, email, reset.CodeHash, s.maxAttempts)
	if err != nil {
		return err
	}
	if !verified {
		return ErrOTPInvalid
	}
	metrics.OTPVerifications.WithLabelValues("success").Inc()
	return nil
}

// ResetPassword sets a new password using a previously verified code.
func (s *PasswordResetService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrInvalidInput
	}
	email = normalizeEmail(email)
	reset, err := s.activeReset(ctx, email)
	if err != nil {
		return err
	}
	if !reset.Verified || !utils.CheckPassword(code, reset.CodeHash) {
		return ErrOTPInvalid
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOTPInvalid
		}
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.resets.Delete(ctx, email); err != nil {
		return err
	}

	s.log.Info().Int64("user_id", user.ID).Msg("password reset")
	return nil
}

// activeReset loads the reset for email, discarding it when it has expired
// or has no attempts left.
func (s *PasswordResetService) activeReset(ctx context.Context, email string) (*models.PasswordReset, error) {
	if email == "" {
		return nil, ErrInvalidInput
	}
	reset, err := s.resets.Get(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOTPInvalid
		}
		return nil, err
	}

	if s.clock.Now().After(reset.ExpiresAt) {
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
		if err := s.resets.Delete(ctx, email); err != nil {
			return nil, err
		}
		return nil, ErrOTPExpired
	}
	if reset.Attempts >= s.maxAttempts {
		if err := s.resets.Delete(ctx, email); err != nil {
			return nil, err
		}
		return nil, ErrOTPAttemptsExceeded
	}
	return reset, nil
}
