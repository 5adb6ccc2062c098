// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/loginflow/internal/models"
)

// UpsertVerificationParams holds the values written on every OTP generation.
// Attempts are always reset to zero; a fresh code grants a fresh attempt cycle.
type UpsertVerificationParams struct {
	UserID      string
	OTPCode     string
	ExpiresAt   time.Time
	LastSentAt  time.Time
	ResendCount int
}

// FindVerificationByUserID retrieves the pending verification for a user.
// At most one row exists per user.
func (r *Repository) FindVerificationByUserID(ctx context.Context, userID string) (*models.EmailVerification, error) {
	var v models.EmailVerification
	err := r.db.GetContext(ctx, &v, `SELECT * FROM user_email_verifications WHERE user_id = ?`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &v, nil
}

// UpsertVerification writes a freshly generated OTP for a user, updating the
// existing row or inserting one if none exists. The write runs inside an
// immediate transaction so that concurrent calls for the same user serialize:
// the UNIQUE constraint on user_id guarantees a single row, and an insert that
// loses the race falls back to updating the winner's row.
func (r *Repository) UpsertVerification(ctx context.Context, p UpsertVerificationParams) (*models.EmailVerification, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`UPDATE user_email_verifications
		 SET otp_code = ?, expires_at = ?, last_sent_at = ?, resend_count = ?, attempts = 0, updated_at = ?
		 WHERE user_id = ?`,
		p.OTPCode, p.ExpiresAt, p.LastSentAt, p.ResendCount, now, p.UserID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if affected == 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO user_email_verifications
			 (id, user_id, otp_code, expires_at, attempts, max_attempts, last_sent_at, resend_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
			uuid.NewString(), p.UserID, p.OTPCode, p.ExpiresAt, models.DefaultMaxAttempts,
			p.LastSentAt, p.ResendCount, now, now)
		if err != nil {
			if !isUniqueViolation(err) {
				return nil, err
			}
			// Lost the insert race; the row exists now, update it instead.
			_, err = tx.ExecContext(ctx,
				`UPDATE user_email_verifications
				 SET otp_code = ?, expires_at = ?, last_sent_at = ?, resend_count = ?, attempts = 0, updated_at = ?
				 WHERE user_id = ?`,
				p.OTPCode, p.ExpiresAt, p.LastSentAt, p.ResendCount, now, p.UserID)
			if err != nil {
				return nil, err
			}
		}
	}

	var v models.EmailVerification
	if err := tx.GetContext(ctx, &v, `SELECT * FROM user_email_verifications WHERE user_id = ?`, p.UserID); err != nil {
		return nil, wrapError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit verification upsert: %w", err)
	}
	return &v, nil
}

// IncrementVerificationAttempts atomically charges one verification attempt.
func (r *Repository) IncrementVerificationAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_email_verifications SET attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	return err
}

// DeleteVerification removes a verification row by ID.
func (r *Repository) DeleteVerification(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_email_verifications WHERE id = ?`, id)
	return err
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
