// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/loginflow/internal/database"
	"codeberg.org/oliverandrich/loginflow/internal/repository"
	"codeberg.org/oliverandrich/loginflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upsertParams(userID, code string, resendCount int) repository.UpsertVerificationParams {
	now := time.Now().UTC()
	return repository.UpsertVerificationParams{
		UserID:      userID,
		OTPCode:     code,
		ExpiresAt:   now.Add(15 * time.Minute),
		LastSentAt:  now,
		ResendCount: resendCount,
	}
}

func TestUpsertVerification_Insert(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com")

	v, err := repo.UpsertVerification(ctx, upsertParams(user.ID, "123456", 0))

	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, user.ID, v.UserID)
	assert.Equal(t, "123456", v.OTPCode)
	assert.Equal(t, 0, v.Attempts)
	assert.Equal(t, 3, v.MaxAttempts)
	assert.Equal(t, 0, v.ResendCount)
}

func TestUpsertVerification_UpdateKeepsSingleRow(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com")

	first, err := repo.UpsertVerification(ctx, upsertParams(user.ID, "111111", 0))
	require.NoError(t, err)

	second, err := repo.UpsertVerification(ctx, upsertParams(user.ID, "222222", 1))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "222222", second.OTPCode)
	assert.Equal(t, 1, second.ResendCount)

	var count int64
	err = repo.DB().GetContext(ctx, &count,
		`SELECT COUNT(*) FROM user_email_verifications WHERE user_id = ?`, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertVerification_ResetsAttempts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com")

	v, err := repo.UpsertVerification(ctx, upsertParams(user.ID, "111111", 0))
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, repo.IncrementVerificationAttempts(ctx, v.ID))
	}

	v, err = repo.FindVerificationByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Attempts)

	v, err = repo.UpsertVerification(ctx, upsertParams(user.ID, "222222", 1))
	require.NoError(t, err)
	assert.Equal(t, 0, v.Attempts)
}

func TestUpsertVerification_Concurrent(t *testing.T) {
	// File-backed database: concurrent writers need real locking, and an
	// in-memory database is per-connection.
	db, err := database.Open(filepath.Join(t.TempDir(), "concurrent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := repository.New(db)

	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = repo.UpsertVerification(ctx, upsertParams(user.ID, "123456", 0))
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Exactly one row survives; the loser updated the winner's row.
	var count int64
	err = db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM user_email_verifications WHERE user_id = ?`, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFindVerificationByUserID_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "test@example.com")

	_, err := repo.FindVerificationByUserID(context.Background(), user.ID)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIncrementVerificationAttempts(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com")

	v, err := repo.UpsertVerification(ctx, upsertParams(user.ID, "123456", 0))
	require.NoError(t, err)

	require.NoError(t, repo.IncrementVerificationAttempts(ctx, v.ID))
	require.NoError(t, repo.IncrementVerificationAttempts(ctx, v.ID))

	v, err = repo.FindVerificationByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Attempts)
}

func TestDeleteVerification(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com")

	v, err := repo.UpsertVerification(ctx, upsertParams(user.ID, "123456", 0))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteVerification(ctx, v.ID))

	_, err = repo.FindVerificationByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUser_CascadesVerification(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "test@example.com")

	_, err := repo.UpsertVerification(ctx, upsertParams(user.ID, "123456", 0))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteUser(ctx, user.ID))

	_, err = repo.FindVerificationByUserID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
