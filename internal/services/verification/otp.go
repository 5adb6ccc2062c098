// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	// OTPLength is the number of digits in a verification code.
	OTPLength = 6
	// OTPExpiry is how long a generated code stays valid.
	OTPExpiry = 15 * time.Minute
)

// otpRange covers [100000, 999999]; codes never carry a leading zero.
var otpRange = big.NewInt(900000)

// GenerateOTP produces a uniformly distributed 6-digit verification code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
