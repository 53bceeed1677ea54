package auth_test

import (
	"context"
	"testing"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authgate"
)

func TestRegisterUserHandler_Execute(t *testing.T) {
	opts := testOptions()
	opts.SignupRoles = []string{"standard", "editor"}
	repo := newTestRepo(t, opts)
	handler := auth.NewRegisterUserHandler(opts, repo.Users())

	var user *auth.User
	err := handler.Execute(context.Background(), auth.RegisterUserMessage{
		Name:            "  Ana  ",
		Email:           "ana@example.com",
		Role:            "editor",
		Password:        "pass1234",
		PasswordConfirm: "pass1234",
		OnResponse:      func(u *auth.User) { user = u },
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, auth.RoleEditor, user.Role)

	stored, err := repo.Users().FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestRegisterUserHandler_RoleNotAllowed(t *testing.T) {
	opts := testOptions()
	store := &MockUserStore{}
	handler := auth.NewRegisterUserHandler(opts, store)

	for _, role := range []string{"admin", "owner", "superuser"} {
		t.Run(role, func(t *testing.T) {
			err := handler.Execute(context.Background(), auth.RegisterUserMessage{
				Name:            "Ana",
				Email:           "ana@example.com",
				Role:            role,
				Password:        "pass1234",
				PasswordConfirm: "pass1234",
			})
			require.Error(t, err)
			assert.True(t, auth.IsErrorKind(err, auth.ErrValidation))
			assert.Contains(t, fieldsOf(t, err), "role")
		})
	}

	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegisterUserHandler_EmailTaken(t *testing.T) {
	opts := testOptions()
	repo := newTestRepo(t, opts)
	handler := auth.NewRegisterUserHandler(opts, repo.Users())

	msg := auth.RegisterUserMessage{
		Name:            "Ana",
		Email:           "ana@example.com",
		Password:        "pass1234",
		PasswordConfirm: "pass1234",
	}
	require.NoError(t, handler.Execute(context.Background(), msg))

	msg.Email = "ANA@example.com"
	err := handler.Execute(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, auth.IsErrorKind(err, auth.ErrEmailTaken))
}

func TestRegisterUserHandler_Validation(t *testing.T) {
	store := &MockUserStore{}
	handler := auth.NewRegisterUserHandler(testOptions(), store)

	tests := map[string]struct {
		msg   auth.RegisterUserMessage
		field string
	}{
		"missing name": {
			msg:   auth.RegisterUserMessage{Email: "ana@example.com", Password: "pass1234", PasswordConfirm: "pass1234"},
			field: "name",
		},
		"invalid email": {
			msg:   auth.RegisterUserMessage{Name: "Ana", Email: "not-an-email", Password: "pass1234", PasswordConfirm: "pass1234"},
			field: "email",
		},
		"short password": {
			msg:   auth.RegisterUserMessage{Name: "Ana", Email: "ana@example.com", Password: "pass", PasswordConfirm: "pass"},
			field: "password",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := handler.Execute(context.Background(), tt.msg)
			require.Error(t, err)
			assert.True(t, auth.IsErrorKind(err, auth.ErrValidation))
			assert.Contains(t, fieldsOf(t, err), tt.field)
		})
	}

	store.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}

func TestRegisterUserHandler_Hashid(t *testing.T) {
	opts := testOptions()
	repo := newTestRepo(t, opts)
	handler := auth.NewRegisterUserHandler(opts, repo.Users()).WithHashid(true)

	var user *auth.User
	err := handler.Execute(context.Background(), auth.RegisterUserMessage{
		Name:            "Ana",
		Email:           "ana@example.com",
		Password:        "pass1234",
		PasswordConfirm: "pass1234",
		OnResponse:      func(u *auth.User) { user = u },
	})
	require.NoError(t, err)

	expected, err := hashid.NewUUID("ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected, user.ID)
}

func TestRegisterUserHandler_CancelledContext(t *testing.T) {
	store := &MockUserStore{}
	handler := auth.NewRegisterUserHandler(testOptions(), store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Execute(ctx, auth.RegisterUserMessage{Name: "Ana", Email: "ana@example.com"})
	require.Error(t, err)
	store.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
}
