package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation          = "VALIDATION_ERROR"
	TextCodePasswordMismatch    = "PASSWORD_MISMATCH"
	TextCodeMissingCredentials  = "MISSING_CREDENTIALS"
	TextCodeEmptyString         = "EMPTY_STRING"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeWrongCurrentPwd     = "WRONG_CURRENT_PASSWORD"
	TextCodeUnauthenticated     = "UNAUTHENTICATED"
	TextCodeSessionInvalid      = "SESSION_INVALID"
	TextCodeSessionExpired      = "SESSION_EXPIRED"
	TextCodeIdentityGone        = "IDENTITY_GONE"
	TextCodeStaleSession        = "STALE_SESSION"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeInvalidResetToken   = "INVALID_RESET_TOKEN"
	TextCodeResetDelivery       = "RESET_DELIVERY_FAILED"
	TextCodeUnsupportedSigning  = "UNSUPPORTED_SIGNING_METHOD"
	TextCodeMissingSigningKey   = "MISSING_SIGNING_KEY"
	TextCodeInternalServerError = "INTERNAL_ERROR"
)

// ErrValidation is returned when a payload fails validation
var ErrValidation = goerrors.New("validation failed", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordMismatch is returned when password and confirmation differ
var ErrPasswordMismatch = goerrors.New("passwords do not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingCredentials is returned when email or password are absent on login
var ErrMissingCredentials = goerrors.New("please provide email and password", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingCredentials).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyString).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailTaken is returned on signup with a registered email
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials covers both unknown email and wrong password.
var ErrInvalidCredentials = goerrors.New("incorrect email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrWrongCurrentPassword is returned by UpdatePassword
var ErrWrongCurrentPassword = goerrors.New("your current password is wrong", goerrors.CategoryAuth).
	WithTextCode(TextCodeWrongCurrentPwd).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when a request carries no session
var ErrUnauthenticated = goerrors.New("you are not logged in, please log in to get access", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionInvalid is returned for malformed or tampered sessions
var ErrSessionInvalid = goerrors.New("invalid session, please log in again", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned for sessions past their expiry
var ErrSessionExpired = goerrors.New("your session has expired, please log in again", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityGone is returned when the session subject no longer exists
var ErrIdentityGone = goerrors.New("the user belonging to this session no longer exists", goerrors.CategoryAuth).
	WithTextCode(TextCodeIdentityGone).
	WithCode(goerrors.CodeUnauthorized)

// ErrStaleSession is returned when the password changed after the session was issued
var ErrStaleSession = goerrors.New("password recently changed, please log in again", goerrors.CategoryAuth).
	WithTextCode(TextCodeStaleSession).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the role is not allowed
var ErrForbidden = goerrors.New("you do not have permission to perform this action", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrUserNotFound is returned by stores on lookup misses
var ErrUserNotFound = goerrors.New("there is no user with that email address", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidResetToken is returned when a reset token is unknown, used or expired
var ErrInvalidResetToken = goerrors.New("token is invalid or has expired", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidResetToken).
	WithCode(goerrors.CodeBadRequest)

// ErrResetDelivery is returned when the reset email could not be sent
var ErrResetDelivery = goerrors.New("there was an error sending the email, try again later", goerrors.CategoryInternal).
	WithTextCode(TextCodeResetDelivery).
	WithCode(goerrors.CodeInternal)

// ErrUnsupportedSigningMethod is returned for non HMAC signing methods
var ErrUnsupportedSigningMethod = goerrors.New("unsupported signing method", goerrors.CategoryBadInput).
	WithTextCode(TextCodeUnsupportedSigning).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingSigningKey is returned when no signing key is configured
var ErrMissingSigningKey = goerrors.New("signing key is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingSigningKey).
	WithCode(goerrors.CodeBadRequest)

// newError returns a copy of base carrying source and metadata.
// Package level sentinels are never mutated.
func newError(base *goerrors.Error, source error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// IsErrorKind reports whether err carries the same text code as kind
func IsErrorKind(err error, kind *goerrors.Error) bool {
	if err == nil || kind == nil {
		return false
	}
	if errors.Is(err, kind) {
		return true
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.TextCode == kind.TextCode
}

// IsSessionExpiredError reports whether err is an expired session
func IsSessionExpiredError(err error) bool {
	return IsErrorKind(err, ErrSessionExpired)
}

// IsUnauthenticatedError reports whether err should be answered with 401
func IsUnauthenticatedError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return richErr.Category == goerrors.CategoryAuth
}

func asRichError(err error) (*goerrors.Error, bool) {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr != nil {
		return richErr, true
	}
	return nil, false
}
