// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package verification implements the email-OTP lifecycle: generating
// codes, throttling resends with exponential backoff, and validating
// submitted codes against attempt and expiry limits.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/loginflow/internal/models"
	"codeberg.org/oliverandrich/loginflow/internal/repository"
	"codeberg.org/oliverandrich/loginflow/internal/timeutil"
)

var (
	// ErrNotFound is returned when no pending verification exists for the user.
	ErrNotFound = errors.New("no pending verification found")
	// ErrExpired is returned when the stored code is past its expiry.
	// Distinct from ErrNotFound so callers can offer a fresh code instead
	// of a code-entry form.
	ErrExpired = errors.New("verification code expired")
	// ErrAttemptsExhausted is returned once all submissions are used up.
	ErrAttemptsExhausted = errors.New("maximum verification attempts exceeded")
)

// ThrottledError is returned when a resend is requested before the
// backoff window has elapsed.
type ThrottledError struct {
	WaitSeconds int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting a new code", e.WaitSeconds)
}

// InvalidCodeError is returned for a wrong code submission. The attempt
// has already been charged; AttemptsRemaining reflects the count after it.
type InvalidCodeError struct {
	AttemptsRemaining int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempts remaining", e.AttemptsRemaining)
}

// Mailer delivers OTP emails. Delivery failure never aborts the
// surrounding operation; the generated code stays valid either way.
type Mailer interface {
	SendOTPEmail(ctx context.Context, to, code string, expiresInMinutes int) error
}

// Result is returned by FindOrCreate and Resend.
type Result struct {
	Verification *models.EmailVerification
	WasCreated   bool
	EmailSent    bool
	EmailError   string
}

// Service orchestrates the verification lifecycle against the repository.
type Service struct {
	repo   *repository.Repository
	mailer Mailer
	now    func() time.Time
}

// NewService creates a new verification service.
func NewService(repo *repository.Repository, mailer Mailer) *Service {
	return &Service{
		repo:   repo,
		mailer: mailer,
		now:    time.Now,
	}
}

// WithClock overrides the wall-clock source. Used by tests to pin time.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FindOrCreate returns the pending verification for a user, generating
// and emailing a fresh code when none exists. Calling it again for the
// same user is a no-op that returns the existing record.
func (s *Service) FindOrCreate(ctx context.Context, userID string) (*Result, error) {
	v, err := s.repo.FindVerificationByUserID(ctx, userID)
	if err == nil {
		return &Result{Verification: v, WasCreated: false}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load verification: %w", err)
	}

	result, err := s.generate(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	result.WasCreated = true
	return result, nil
}

// Resend regenerates the OTP for an existing verification.
//
// An expired code resets the cycle unconditionally: resend count and
// attempts both return to zero and no backoff check applies. A live code
// is throttled by the exponential backoff; within the window the call
// fails with a ThrottledError carrying the remaining wait. Otherwise the
// code is regenerated with the resend count incremented and attempts
// reset, so a user who exhausted their attempts can recover.
func (s *Service) Resend(ctx context.Context, userID string) (*Result, error) {
	v, err := s.repo.FindVerificationByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load verification: %w", err)
	}

	if v.IsExpired(s.now()) {
		return s.generate(ctx, userID, false)
	}

	timing := CalculateResendTiming(v, s.now())
	if !timing.CanResend {
		return nil, &ThrottledError{WaitSeconds: timing.WaitSeconds}
	}

	return s.generate(ctx, userID, true)
}

// Verify validates a submitted code. The attempt is charged before the
// comparison so an aborted request cannot be retried for free; on a
// match the user is marked verified and the row is deleted.
func (s *Service) Verify(ctx context.Context, userID, code string) error {
	v, err := s.repo.FindVerificationByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load verification: %w", err)
	}

	now := s.now()
	if v.IsExpired(now) {
		return ErrExpired
	}
	if v.AttemptsExhausted() {
		return ErrAttemptsExhausted
	}

	if err := s.repo.IncrementVerificationAttempts(ctx, v.ID); err != nil {
		return fmt.Errorf("failed to charge attempt: %w", err)
	}

	if v.OTPCode != code {
		remaining := v.MaxAttempts - v.Attempts - 1
		slog.Warn("otp_invalid", "user_id", userID, "attempts_remaining", remaining)
		return &InvalidCodeError{AttemptsRemaining: remaining}
	}

	if err := s.repo.MarkUserVerified(ctx, userID, now); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	if err := s.repo.DeleteVerification(ctx, v.ID); err != nil {
		return fmt.Errorf("failed to delete verification: %w", err)
	}

	slog.Info("email_verified", "user_id", userID)
	return nil
}

// Timing returns the resend timing for a record at the current wall clock.
func (s *Service) Timing(v *models.EmailVerification) ResendTiming {
	return CalculateResendTiming(v, s.now())
}

// generate produces a fresh OTP, upserts the row and dispatches the
// email. When preserveResendCount is set the existing resend count is
// carried forward and incremented; otherwise it starts over at zero.
func (s *Service) generate(ctx context.Context, userID string, preserveResendCount bool) (*Result, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	code, err := GenerateOTP()
	if err != nil {
		return nil, err
	}

	now := s.now()
	resendCount := 0
	if preserveResendCount {
		if existing, findErr := s.repo.FindVerificationByUserID(ctx, userID); findErr == nil {
			resendCount = existing.ResendCount + 1
		}
	}

	v, err := s.repo.UpsertVerification(ctx, repository.UpsertVerificationParams{
		UserID:      userID,
		OTPCode:     code,
		ExpiresAt:   now.Add(OTPExpiry),
		LastSentAt:  now,
		ResendCount: resendCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store verification: %w", err)
	}

	result := &Result{Verification: v, EmailSent: true}

	expiresInMinutes := (timeutil.SecondsUntil(v.ExpiresAt, now) + 59) / 60
	if sendErr := s.mailer.SendOTPEmail(ctx, user.Email, code, expiresInMinutes); sendErr != nil {
		// The code stays valid; the user can request a resend.
		slog.Error("otp_email_failed", "user_id", userID, "error", sendErr)
		result.EmailSent = false
		result.EmailError = sendErr.Error()
	}

	return result, nil
}
