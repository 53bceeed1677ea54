package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"go.opentelemetry.io/otel/attribute"
)

type RegisterUserMessage struct {
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	Role            string           `json:"role"`
	Password        string           `json:"password"`
	PasswordConfirm string           `json:"password_confirm"`
	OnResponse      func(user *User) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks presence and shape of the identity fields. The
// password rule is applied separately.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
	)
}

type RegisterUserHandler struct {
	users       UserStore
	signupRoles []UserRole
	minPassword int
	useHashid   bool
	logger      Logger
}

// NewRegisterUserHandler creates a handler accepting cfg's signup roles
func NewRegisterUserHandler(cfg Config, users UserStore) *RegisterUserHandler {
	roles := ParseRoles(cfg.GetSignupRoles())
	if len(roles) == 0 {
		roles = []UserRole{RoleStandard}
	}

	return &RegisterUserHandler{
		users:       users,
		signupRoles: roles,
		minPassword: cfg.GetMinPasswordLength(),
		logger:      defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithHashid derives user IDs from the email address
func (h *RegisterUserHandler) WithHashid(enabled bool) *RegisterUserHandler {
	h.useHashid = enabled
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (err error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	ctx, span := startSpan(ctx, "auth.register_user")
	defer func() { endSpan(span, err) }()

	if err = event.Validate(); err != nil {
		return validationError(err)
	}

	if err = ValidatePasswordChange(event.Password, event.PasswordConfirm, h.minPassword); err != nil {
		return err
	}

	role := RoleStandard
	if strings.TrimSpace(event.Role) != "" {
		parsed, ok := ParseRole(event.Role)
		if !ok || !parsed.In(h.signupRoles...) {
			return newError(ErrValidation, nil, map[string]any{
				"fields": map[string]string{"role": "role is not allowed"},
			})
		}
		role = parsed
	}

	email := NormalizeEmail(event.Email)
	span.SetAttributes(attribute.String("auth.role", string(role)))

	if _, err = h.users.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !IsErrorKind(err, ErrUserNotFound) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
	}

	fields := UserFields{
		Name:     strings.TrimSpace(event.Name),
		Email:    email,
		Role:     role,
		Password: event.Password,
	}

	if h.useHashid {
		if id, herr := hashid.NewUUID(email); herr == nil {
			fields.ID = id
		} else {
			h.logger.Warn("hashid failed, falling back to random id", "error", herr)
		}
	}

	user, err := h.users.Create(ctx, fields)
	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}
