// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"time"

	"codeberg.org/oliverandrich/loginflow/internal/models"
)

const (
	// baseBackoffSeconds is the wait after the first send.
	baseBackoffSeconds = 30
	// maxBackoffSeconds caps the exponential backoff at ten minutes.
	maxBackoffSeconds = 600
)

// ResendTiming describes whether a new code may be sent right now,
// and if not, how long the caller has to wait. It is derived from the
// verification row and the wall clock, never stored.
type ResendTiming struct {
	BackoffSeconds int
	CanResendAt    time.Time
	WaitSeconds    int
	CanResend      bool
}

// CalculateResendTiming computes the exponential resend backoff for a
// verification record: 30s, 1m, 2m, 4m, 8m, capped at 10m.
//
// An expired code always permits an immediate resend regardless of the
// resend count; expiry trumps throttling so a user with a dead code is
// never locked out.
func CalculateResendTiming(v *models.EmailVerification, now time.Time) ResendTiming {
	if v.IsExpired(now) {
		return ResendTiming{
			BackoffSeconds: 0,
			CanResendAt:    now,
			WaitSeconds:    0,
			CanResend:      true,
		}
	}

	backoff := baseBackoffSeconds << v.ResendCount
	if backoff > maxBackoffSeconds || backoff <= 0 {
		backoff = maxBackoffSeconds
	}

	canResendAt := v.LastSentAt.Add(time.Duration(backoff) * time.Second)
	wait := 0
	if now.Before(canResendAt) {
		wait = int((canResendAt.Sub(now) + time.Second - 1) / time.Second)
	}

	return ResendTiming{
		BackoffSeconds: backoff,
		CanResendAt:    canResendAt,
		WaitSeconds:    wait,
		CanResend:      wait == 0,
	}
}
