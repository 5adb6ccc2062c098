// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package timeutil provides small helpers for expiry countdowns.
package timeutil

import (
	"fmt"
	"time"
)

// SecondsUntil returns the whole seconds remaining until expiry,
// clamped at zero once the instant has passed.
func SecondsUntil(expiry, now time.Time) int {
	d := expiry.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// FormatDuration renders a second count for countdown displays,
// e.g. "2:30" for 150 seconds or "15s" below one minute.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := seconds / 60
	remaining := seconds % 60
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d", minutes, remaining)
	}
	return fmt.Sprintf("%ds", remaining)
}
