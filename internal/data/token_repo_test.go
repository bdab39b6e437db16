package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudpivot/ssogate/internal/domain/model"
	apperrors "github.com/cloudpivot/ssogate/internal/errors"
	"github.com/cloudpivot/ssogate/internal/ports"
	"github.com/cloudpivot/ssogate/internal/testutil"
)

func createTestUser(t *testing.T, db *sql.DB) *model.User {
	t.Helper()
	u, err := NewUserRepo(db).Upsert(context.Background(), ports.UpsertUserInput{
		Email:    testEmail("token-owner"),
		Name:     "Token Owner",
		Provider: "google",
	})
	require.NoError(t, err)
	return u
}

func TestTokenRepo_CreateGetDelete(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewTokenRepo(db)
		user := createTestUser(t, db)

		expiresAt := time.Now().Add(30 * time.Minute).UTC()
		created, err := repo.Create(ctx, ports.CreateTokenInput{
			UserID:      user.ID,
			AccessToken: "credential-value-1",
			ExpiresAt:   expiresAt,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, user.ID, created.UserID)
		assert.WithinDuration(t, expiresAt, created.ExpiresAt, time.Second)

		got, err := repo.GetByValue(ctx, "credential-value-1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		require.NoError(t, repo.DeleteByValue(ctx, "credential-value-1"))

		_, err = repo.GetByValue(ctx, "credential-value-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))

		// Deleting again is a no-op.
		assert.NoError(t, repo.DeleteByValue(ctx, "credential-value-1"))
	})
}

func TestTokenRepo_Create_DuplicateValue(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewTokenRepo(db)
		user := createTestUser(t, db)

		in := ports.CreateTokenInput{
			UserID:      user.ID,
			AccessToken: "credential-dup",
			ExpiresAt:   time.Now().Add(time.Hour),
		}
		_, err := repo.Create(ctx, in)
		require.NoError(t, err)

		_, err = repo.Create(ctx, in)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})
}

func TestTokenRepo_Create_UnknownUser(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewTokenRepo(db)

		_, err := repo.Create(context.Background(), ports.CreateTokenInput{
			UserID:      "3f2d31f2-33aa-4be4-a6fd-000000000000",
			AccessToken: "orphan-credential",
			ExpiresAt:   time.Now().Add(time.Hour),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestTokenRepo_TwoRecordsSameUser(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewTokenRepo(db)
		user := createTestUser(t, db)

		first, err := repo.Create(ctx, ports.CreateTokenInput{
			UserID: user.ID, AccessToken: "cred-a", ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		second, err := repo.Create(ctx, ports.CreateTokenInput{
			UserID: user.ID, AccessToken: "cred-b", ExpiresAt: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, first.UserID, second.UserID)
	})
}
