package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogd/internal/domain"
	"blogd/internal/repository"
)

func newTestUserRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	repo := NewUserRepository(openTestDB(t))
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func newStoredUser(t *testing.T, repo repository.UserRepository, username, email string) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: "hash-" + username,
		IsActive:     true,
	}
	_, err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestUserUniqueUsername(t *testing.T) {
	repo := newTestUserRepo(t)
	newStoredUser(t, repo, "alice", "alice@example.com")

	_, err := repo.Create(context.Background(), &domain.User{
		Username:     "alice",
		Email:        "other@example.com",
		PasswordHash: "hash",
		IsActive:     true,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserUniqueEmailCaseInsensitive(t *testing.T) {
	repo := newTestUserRepo(t)
	newStoredUser(t, repo, "alice", "alice@example.com")

	_, err := repo.Create(context.Background(), &domain.User{
		Username:     "bob",
		Email:        "ALICE@example.com",
		PasswordHash: "hash",
		IsActive:     true,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestUserBlankEmailsDoNotCollide(t *testing.T) {
	repo := newTestUserRepo(t)
	newStoredUser(t, repo, "alice", "")
	newStoredUser(t, repo, "bob", "")
}

func TestUserGetByEmailCaseInsensitive(t *testing.T) {
	repo := newTestUserRepo(t)
	created := newStoredUser(t, repo, "alice", "Alice@Example.com")

	got, err := repo.GetByEmail(context.Background(), "alice@example.COM")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserGetByEmailIgnoresBlank(t *testing.T) {
	repo := newTestUserRepo(t)
	newStoredUser(t, repo, "alice", "")

	_, err := repo.GetByEmail(context.Background(), "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserUpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := newTestUserRepo(t)
	user := newStoredUser(t, repo, "alice", "alice@example.com")

	require.NoError(t, repo.UpdatePassword(ctx, user.ID, "new-hash"))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Equal(t, user.Email, got.Email)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	assert.ErrorIs(t, repo.UpdatePassword(ctx, 999, "x"), repository.ErrNotFound)
}
