// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification_test

import (
	"strconv"
	"testing"

	"codeberg.org/oliverandrich/loginflow/internal/services/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateOTP(t *testing.T) {
	for range 100 {
		code, err := verification.GenerateOTP()
		require.NoError(t, err)

		assert.Len(t, code, verification.OTPLength)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}
