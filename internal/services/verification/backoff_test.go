// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification_test

import (
	"testing"
	"time"

	"codeberg.org/oliverandrich/loginflow/internal/models"
	"codeberg.org/oliverandrich/loginflow/internal/services/verification"
	"github.com/stretchr/testify/assert"
)

func record(resendCount int, lastSentAt, expiresAt time.Time) *models.EmailVerification {
	return &models.EmailVerification{
		ResendCount: resendCount,
		LastSentAt:  lastSentAt,
		ExpiresAt:   expiresAt,
	}
}

func TestCalculateResendTiming_WithinBackoff(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := record(0, sent, sent.Add(15*time.Minute))

	timing := verification.CalculateResendTiming(v, sent.Add(10*time.Second))

	assert.Equal(t, 30, timing.BackoffSeconds)
	assert.False(t, timing.CanResend)
	assert.Equal(t, 20, timing.WaitSeconds)
	assert.Equal(t, sent.Add(30*time.Second), timing.CanResendAt)
}

func TestCalculateResendTiming_BackoffElapsed(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := record(3, sent, sent.Add(15*time.Minute))

	timing := verification.CalculateResendTiming(v, sent.Add(500*time.Second))

	assert.Equal(t, 240, timing.BackoffSeconds)
	assert.True(t, timing.CanResend)
	assert.Equal(t, 0, timing.WaitSeconds)
}

func TestCalculateResendTiming_Progression(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := sent.Add(15 * time.Minute)

	tests := []struct {
		resendCount int
		backoff     int
	}{
		{0, 30},
		{1, 60},
		{2, 120},
		{3, 240},
		{4, 480},
		{5, 600},
		{6, 600},
		{20, 600},
	}

	for _, tt := range tests {
		timing := verification.CalculateResendTiming(record(tt.resendCount, sent, expires), sent)
		assert.Equal(t, tt.backoff, timing.BackoffSeconds, "resendCount=%d", tt.resendCount)
	}
}

func TestCalculateResendTiming_ExpiredOverridesBackoff(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := sent.Add(16 * time.Minute)

	for _, resendCount := range []int{0, 3, 10} {
		timing := verification.CalculateResendTiming(record(resendCount, sent, sent.Add(15*time.Minute)), now)

		assert.True(t, timing.CanResend)
		assert.Equal(t, 0, timing.WaitSeconds)
		assert.Equal(t, 0, timing.BackoffSeconds)
		assert.Equal(t, now, timing.CanResendAt)
	}
}

func TestCalculateResendTiming_ExpiryBoundary(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expires := sent.Add(15 * time.Minute)

	// expiresAt == now counts as expired
	timing := verification.CalculateResendTiming(record(0, sent, expires), expires)
	assert.True(t, timing.CanResend)
	assert.Equal(t, 0, timing.BackoffSeconds)
}

func TestCalculateResendTiming_WaitRoundsUp(t *testing.T) {
	sent := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := record(0, sent, sent.Add(15*time.Minute))

	// 29.5s into a 30s window leaves half a second, reported as one
	timing := verification.CalculateResendTiming(v, sent.Add(29*time.Second+500*time.Millisecond))

	assert.False(t, timing.CanResend)
	assert.Equal(t, 1, timing.WaitSeconds)
}
