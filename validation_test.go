package auth_test

import (
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authgate"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	fields, _ := richErr.Metadata["fields"].(map[string]string)
	return fields
}

func TestValidatePasswordChange(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		kind     *goerrors.Error
		field    string
	}{
		{name: "valid", password: "pass1234", confirm: "pass1234"},
		{name: "missing password", password: "", confirm: "pass1234", kind: auth.ErrValidation, field: "password"},
		{name: "too short", password: "pass", confirm: "pass", kind: auth.ErrValidation, field: "password"},
		{name: "too long", password: strings.Repeat("a", 73), confirm: strings.Repeat("a", 73), kind: auth.ErrValidation, field: "password"},
		{name: "missing confirmation", password: "pass1234", confirm: "", kind: auth.ErrValidation, field: "password_confirm"},
		{name: "mismatch", password: "pass1234", confirm: "pass4321", kind: auth.ErrPasswordMismatch, field: "password_confirm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePasswordChange(tt.password, tt.confirm, 8)
			if tt.kind == nil {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, auth.IsErrorKind(err, tt.kind), "got %v", err)
			assert.Contains(t, fieldsOf(t, err), tt.field)
		})
	}
}

func TestValidatePasswordChange_DoesNotMutateSentinels(t *testing.T) {
	_ = auth.ValidatePasswordChange("", "", 8)
	assert.Empty(t, auth.ErrValidation.Metadata)
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, auth.FormatValidationErrorToMap(nil))

	out := auth.FormatValidationErrorToMap(assert.AnError)
	assert.Equal(t, assert.AnError.Error(), out["error"])
}
