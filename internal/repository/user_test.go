// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/loginflow/internal/models"
	"codeberg.org/oliverandrich/loginflow/internal/repository"
	"codeberg.org/oliverandrich/loginflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	user := &models.User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	}
	err := repo.CreateUser(ctx, user)

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, &models.User{FirstName: "A", Email: "dup@example.com"}))
	err := repo.CreateUser(ctx, &models.User{FirstName: "B", Email: "dup@example.com"})

	assert.Error(t, err)
}

func TestGetUserByEmail(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	created := testutil.NewTestUser(t, repo, "ada@example.com")

	user, err := repo.GetUserByEmail(ctx, "ada@example.com")

	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.False(t, user.HasPassword())
	assert.False(t, user.IsVerified())
}

func TestGetUserByEmail_CaseSensitive(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "Ada@example.com")

	_, err := repo.GetUserByEmail(ctx, "ada@example.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := repo.GetUserByEmail(context.Background(), "nobody@example.com")

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkUserVerified(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	when := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err := repo.MarkUserVerified(ctx, user.ID, when)
	require.NoError(t, err)

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.EmailVerifiedAt)
	assert.WithinDuration(t, when, *updated.EmailVerifiedAt, time.Second)
}

func TestSetUserRole(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	user := testutil.NewTestUser(t, repo, "ada@example.com")

	err := repo.SetUserRole(ctx, user.ID, models.RoleAdmin)
	require.NoError(t, err)

	updated, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin())
}

func TestSetUserRole_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.SetUserRole(context.Background(), "no-such-user", models.RoleAdmin)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteUser_UnknownUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	err := repo.DeleteUser(context.Background(), "no-such-user")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListUsers(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "one@example.com")
	testutil.NewTestUser(t, repo, "two@example.com")

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	count, err := repo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestEmailExists(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestUser(t, repo, "ada@example.com")

	exists, err := repo.EmailExists(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.EmailExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
