// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// DefaultMaxAttempts is the number of code submissions allowed per OTP.
const DefaultMaxAttempts = 3

// EmailVerification holds the pending OTP challenge for a user.
// At most one row exists per user (UNIQUE constraint on user_id);
// the row is replaced on resend and deleted on successful verification.
type EmailVerification struct { //nolint:govet // fieldalignment: readability over optimization
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	OTPCode     string    `db:"otp_code" json:"-"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
	Attempts    int       `db:"attempts" json:"attempts"`
	MaxAttempts int       `db:"max_attempts" json:"max_attempts"`
	LastSentAt  time.Time `db:"last_sent_at" json:"last_sent_at"`
	ResendCount int       `db:"resend_count" json:"resend_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the code is past its expiry at the given instant.
func (v *EmailVerification) IsExpired(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}

// AttemptsExhausted reports whether no further submissions are accepted.
func (v *EmailVerification) AttemptsExhausted() bool {
	return v.Attempts >= v.MaxAttempts
}
