package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

// maxPasswordLength is the bcrypt input limit
const maxPasswordLength = 72

type passwordChange struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ValidatePasswordChange is the single password rule shared by signup,
// password reset and password update.
func ValidatePasswordChange(password, confirm string, minLength int) error {
	r := passwordChange{Password: password, PasswordConfirm: confirm}
	err := validation.ValidateStruct(&r,
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(minLength, maxPasswordLength),
		),
		validation.Field(
			&r.PasswordConfirm,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
	if err == nil {
		return nil
	}

	fields := FormatValidationErrorToMap(err)
	if _, badPassword := fields["password"]; !badPassword && confirm != "" && confirm != password {
		return newError(ErrPasswordMismatch, err, map[string]any{"fields": fields})
	}

	return newError(ErrValidation, err, map[string]any{"fields": fields})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map suitable for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr == nil {
				continue
			}
			out[field] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

// validationError wraps a payload validation failure as ErrValidation
func validationError(err error) error {
	if err == nil {
		return nil
	}
	if richErr, ok := asRichError(err); ok {
		return richErr
	}
	return newError(ErrValidation, err, map[string]any{
		"fields": FormatValidationErrorToMap(err),
	})
}
