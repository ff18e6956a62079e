package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blogd/internal/auth"
	"blogd/internal/domain"
	"blogd/internal/repository"
	"blogd/internal/repository/sqlite"
)

func newTestUserService(t *testing.T) (UserService, repository.UserRepository, *auth.TokenManager) {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	require.NoError(t, users.Init(context.Background()))

	tokens := auth.NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)
	reset := auth.NewResetTokenGenerator("test-secret", time.Hour)
	return NewUserService(users, tokens, reset), users, tokens
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "correct horse",
		PasswordConfirm: "correct horse",
	}
}

func TestRegisterReturnsDecodableTokens(t *testing.T) {
	svc, _, tokens := newTestUserService(t)

	user, access, refresh, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.PasswordHash, "password hash must not leave the service")

	claims, err := tokens.Parse(access, auth.TokenTypeAccess)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	refreshClaims, err := tokens.Parse(refresh, auth.TokenTypeRefresh)
	require.NoError(t, err)
	refreshID, err := refreshClaims.UserID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, refreshID)
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*RegisterInput)
		field string
	}{
		{"password mismatch", func(in *RegisterInput) { in.PasswordConfirm = "something else" }, "password_confirm"},
		{"short password", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "short", "short" }, "password"},
		{"numeric password", func(in *RegisterInput) { in.Password, in.PasswordConfirm = "12345678901", "12345678901" }, "password"},
		{"blank username", func(in *RegisterInput) { in.Username = "   " }, "username"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, users, _ := newTestUserService(t)

			in := validRegistration()
			tc.mut(&in)
			_, _, _, err := svc.Register(context.Background(), in)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)

			_, err = users.GetByUsername(context.Background(), "alice")
			assert.ErrorIs(t, err, repository.ErrNotFound, "no user row on failed registration")
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	in := validRegistration()
	in.Email = "second@example.com"
	_, _, _, err = svc.Register(ctx, in)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "username")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	in := validRegistration()
	in.Username = "bob"
	in.Email = "ALICE@example.com"
	_, _, _, err = svc.Register(ctx, in)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email", "conflict must be reported on the email field, not username")
	assert.NotContains(t, ve.Fields, "username")
}

func TestLoginFailsUniformly(t *testing.T) {
	svc, users, _ := newTestUserService(t)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	_, err = users.Create(ctx, &domain.User{
		Username:     "inactive",
		Email:        "inactive@example.com",
		PasswordHash: string(hash),
		IsActive:     false,
	})
	require.NoError(t, err)

	cases := []struct {
		name            string
		email, password string
	}{
		{"unknown email", "nobody@example.com", "correct horse"},
		{"wrong password", "alice@example.com", "wrong password"},
		{"inactive user", "inactive@example.com", "correct horse"},
		{"empty password", "alice@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := svc.Login(ctx, tc.email, tc.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestLoginCaseInsensitiveEmail(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	registered, _, _, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	user, access, refresh, err := svc.Login(ctx, "ALICE@EXAMPLE.COM", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	svc, _, _ := newTestUserService(t)

	uid, token, err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, uid)
	assert.Empty(t, token)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	uid, token, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, uid)
	require.NotEmpty(t, token)

	err = svc.ConfirmPasswordReset(ctx, ResetConfirmInput{
		UID:                uid,
		Token:              token,
		NewPassword:        "brand new pass",
		NewPasswordConfirm: "brand new pass",
	})
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "alice@example.com", "brand new pass")
	require.NoError(t, err)
	_, _, _, err = svc.Login(ctx, "alice@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetTokenSingleUse(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	uid, token, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)

	confirm := ResetConfirmInput{
		UID:                uid,
		Token:              token,
		NewPassword:        "brand new pass",
		NewPasswordConfirm: "brand new pass",
	}
	require.NoError(t, svc.ConfirmPasswordReset(ctx, confirm))

	// password hash changed, the same token must now fail
	confirm.NewPassword = "yet another pass"
	confirm.NewPasswordConfirm = "yet another pass"
	assert.ErrorIs(t, svc.ConfirmPasswordReset(ctx, confirm), ErrInvalidResetToken)
}

func TestConfirmPasswordResetPayloadErrors(t *testing.T) {
	svc, _, _ := newTestUserService(t)
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	uid, token, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)

	t.Run("malformed uid", func(t *testing.T) {
		err := svc.ConfirmPasswordReset(ctx, ResetConfirmInput{
			UID: "!!!", Token: token,
			NewPassword: "brand new pass", NewPasswordConfirm: "brand new pass",
		})
		assert.ErrorIs(t, err, ErrInvalidResetPayload)
	})

	t.Run("unknown user uid", func(t *testing.T) {
		err := svc.ConfirmPasswordReset(ctx, ResetConfirmInput{
			UID: auth.EncodeUID(9999), Token: token,
			NewPassword: "brand new pass", NewPasswordConfirm: "brand new pass",
		})
		assert.ErrorIs(t, err, ErrInvalidResetPayload)
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		err := svc.ConfirmPasswordReset(ctx, ResetConfirmInput{
			UID: uid, Token: token,
			NewPassword: "brand new pass", NewPasswordConfirm: "different",
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "new_password_confirm")
	})

	t.Run("weak new password", func(t *testing.T) {
		err := svc.ConfirmPasswordReset(ctx, ResetConfirmInput{
			UID: uid, Token: token,
			NewPassword: "short", NewPasswordConfirm: "short",
		})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "new_password")
	})
}
