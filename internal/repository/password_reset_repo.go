package repository

import (
	"context"

	"github.com/voluntrack/voluntrack/internal/models"
)

type PasswordResetRepository struct {
	db DBTX
}

func NewPasswordResetRepository(db DBTX) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Upsert replaces any earlier reset for the same email.
func (r *PasswordResetRepository) Upsert(ctx context.Context, reset *models.PasswordReset) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO password_resets (email, code_hash, expires_at, attempts, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email)
		DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			attempts = EXCLUDED.attempts,
			verified = EXCLUDED.verified,
			created_at = EXCLUDED.created_at
	`, reset.Email, reset.CodeHash, reset.ExpiresAt.UTC(), reset.Attempts, reset.Verified, reset.CreatedAt.UTC())
	return err
}

func (r *PasswordResetRepository) Get(ctx context.Context, email string) (*models.PasswordReset, error) {
	var reset models.PasswordReset
	err := r.db.QueryRow(ctx, `
		SELECT email, code_hash, expires_at, attempts, verified, created_at
		FROM password_resets
		WHERE email = $1
	`, email).Scan(
		&reset.Email,
		&reset.CodeHash,
		&reset.ExpiresAt,
		&reset.Attempts,
		&reset.Verified,
		&reset.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

// RecordFailedAttempt increments the attempt counter of the reset issued
// with codeHash and returns the new count. A reissued or deleted reset
// yields pgx.ErrNoRows.
func (r *PasswordResetRepository) RecordFailedAttempt(ctx context.Context, email, codeHash string) (int, error) {
	var attempts int
	err := r.db.QueryRow(ctx, `
		UPDATE password_resets
		SET attempts = attempts + 1
		WHERE email = $1 AND code_hash = $2
		RETURNING attempts
	`, email, codeHash).Scan(&attempts)
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

// MarkVerified flags the reset as verified while it still has attempts
// left. It reports false when no such reset exists.
func (r *PasswordResetRepository) MarkVerified(ctx context.Context, email, codeHash string, maxAttempts int) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE password_resets
		SET verified = TRUE
		WHERE email = $1 AND code_hash = $2 AND attempts < $3
	`, email, codeHash, maxAttempts)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PasswordResetRepository) Delete(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_resets WHERE email = $1`, email)
	return err
}
