package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authgate"
)

func createUser(t *testing.T, users *auth.UsersRepository, email string) *auth.User {
	t.Helper()
	user, err := users.Create(context.Background(), auth.UserFields{
		Name:     "Ana",
		Email:    email,
		Password: "pass1234",
	})
	require.NoError(t, err)
	return user
}

func TestUsersRepository_Create(t *testing.T) {
	opts := testOptions()
	users := newTestRepo(t, opts).Users()

	user := createUser(t, users, " Ana@Example.com ")
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, auth.RoleStandard, user.Role)
	assert.Nil(t, user.PasswordChangedAt)

	ok, err := auth.NewCredentialVerifier(opts).VerifyCredential(context.Background(), "pass1234", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok, "password is stored hashed")

	byEmail, err := users.FindByEmail(context.Background(), "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := users.FindByID(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)
}

func TestUsersRepository_CreateDuplicate(t *testing.T) {
	users := newTestRepo(t, testOptions()).Users()
	createUser(t, users, "ana@example.com")

	_, err := users.Create(context.Background(), auth.UserFields{
		Name:     "Other Ana",
		Email:    "ANA@EXAMPLE.COM",
		Password: "pass1234",
	})
	require.Error(t, err)
	assert.True(t, auth.IsErrorKind(err, auth.ErrEmailTaken))
}

func TestUsersRepository_CreateValidates(t *testing.T) {
	users := newTestRepo(t, testOptions()).Users()

	tests := map[string]auth.UserFields{
		"bad email":      {Name: "Ana", Email: "nope", Password: "pass1234"},
		"short password": {Name: "Ana", Email: "ana@example.com", Password: "pass"},
		"unknown role":   {Name: "Ana", Email: "ana@example.com", Password: "pass1234", Role: "root"},
	}

	for name, fields := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := users.Create(context.Background(), fields)
			require.Error(t, err)
			assert.True(t, auth.IsErrorKind(err, auth.ErrValidation))
		})
	}
}

func TestUsersRepository_NotFound(t *testing.T) {
	users := newTestRepo(t, testOptions()).Users()

	_, err := users.FindByID(context.Background(), uuid.NewString())
	assert.True(t, auth.IsErrorKind(err, auth.ErrUserNotFound))

	_, err = users.FindByID(context.Background(), "not-a-uuid")
	assert.True(t, auth.IsErrorKind(err, auth.ErrUserNotFound))

	_, err = users.FindByEmail(context.Background(), "ghost@example.com")
	assert.True(t, auth.IsErrorKind(err, auth.ErrUserNotFound))

	_, err = users.FindByResetDigest(context.Background(), "", baseTime)
	assert.True(t, auth.IsErrorKind(err, auth.ErrUserNotFound))
}

func TestUsersRepository_FindByResetDigest(t *testing.T) {
	users := newTestRepo(t, testOptions()).Users()
	user := createUser(t, users, "ana@example.com")

	digest := auth.HashResetToken("plaintext")
	user.SetResetToken(digest, baseTime.Add(10*time.Minute))
	require.NoError(t, users.Save(context.Background(), user, auth.SaveOptions{}))

	found, err := users.FindByResetDigest(context.Background(), digest, baseTime.Add(9*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = users.FindByResetDigest(context.Background(), digest, baseTime.Add(10*time.Minute))
	assert.True(t, auth.IsErrorKind(err, auth.ErrUserNotFound), "expired at the deadline")

	_, err = users.FindByResetDigest(context.Background(), auth.HashResetToken("other"), baseTime)
	assert.True(t, auth.IsErrorKind(err, auth.ErrUserNotFound))
}

func TestUsersRepository_SaveMatchResetDigest(t *testing.T) {
	users := newTestRepo(t, testOptions()).Users()
	user := createUser(t, users, "ana@example.com")

	digest := auth.HashResetToken("plaintext")
	user.SetResetToken(digest, baseTime.Add(10*time.Minute))
	require.NoError(t, users.Save(context.Background(), user, auth.SaveOptions{}))

	// another request replaced the digest
	user.SetResetToken(auth.HashResetToken("newer"), baseTime.Add(10*time.Minute))
	require.NoError(t, users.Save(context.Background(), user, auth.SaveOptions{}))

	user.ClearResetToken()
	err := users.Save(context.Background(), user, auth.SaveOptions{Validate: true, MatchResetDigest: digest})
	require.Error(t, err)
	assert.True(t, auth.IsErrorKind(err, auth.ErrInvalidResetToken))

	stored, err := users.FindByID(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, auth.HashResetToken("newer"), stored.PasswordResetToken)
}

func TestUsersRepository_SaveErrors(t *testing.T) {
	users := newTestRepo(t, testOptions()).Users()
	user := createUser(t, users, "ana@example.com")

	err := users.Save(context.Background(), &auth.User{ID: uuid.New(), Name: "x", Email: "x@example.com", Role: auth.RoleStandard, PasswordHash: "h"}, auth.SaveOptions{})
	assert.True(t, auth.IsErrorKind(err, auth.ErrUserNotFound))

	assert.Error(t, users.Save(context.Background(), nil, auth.SaveOptions{}))

	user.Role = "root"
	err = users.Save(context.Background(), user, auth.SaveOptions{Validate: true})
	require.Error(t, err)
	assert.True(t, auth.IsErrorKind(err, auth.ErrValidation))
}

func TestUsersRepository_PasswordChangedAtRoundTrip(t *testing.T) {
	opts := testOptions()
	users := newTestRepo(t, opts).Users()
	user := createUser(t, users, "ana@example.com")

	user.SetPassword(user.PasswordHash, baseTime)
	require.NoError(t, users.Save(context.Background(), user, auth.SaveOptions{Validate: true}))

	stored, err := users.FindByID(context.Background(), user.ID.String())
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordChangedAt)
	assert.True(t, baseTime.Add(-time.Second).Equal(*stored.PasswordChangedAt))

	assert.True(t, auth.ChangedAfter(stored, baseTime.Add(-2*time.Second)))
	assert.False(t, auth.ChangedAfter(stored, baseTime))
}
