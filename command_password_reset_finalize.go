package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel/attribute"
)

type FinalizePasswordResetMessage struct {
	Token           string                                    `json:"-"`
	Password        string                                    `json:"password" example:"some_secret_word" doc:"Password"`
	PasswordConfirm string                                    `json:"password_confirm" example:"some_secret_word" doc:"Password confirmation"`
	OnResponse      func(resp *FinalizePasswordResetResponse) `json:"-"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

type FinalizePasswordResetResponse struct {
	User    *User
	Session SessionToken
}

type FinalizePasswordResetHandler struct {
	users       UserStore
	hasher      PasswordHasher
	tokens      *TokenService
	minPassword int
	clock       func() time.Time
	logger      Logger
	metrics     Metrics
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(cfg Config, users UserStore, hasher PasswordHasher, tokens *TokenService) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		minPassword: cfg.GetMinPasswordLength(),
		clock:       time.Now,
		logger:      defLogger{},
		metrics:     noopMetrics{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMetrics sets the metrics collector
func (h *FinalizePasswordResetHandler) WithMetrics(m Metrics) *FinalizePasswordResetHandler {
	if m != nil {
		h.metrics = m
	}
	return h
}

// WithClock overrides the time source used to check expiry
func (h *FinalizePasswordResetHandler) WithClock(clock func() time.Time) *FinalizePasswordResetHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) (err error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	ctx, span := startSpan(ctx, "auth.password_reset.finalize")
	defer func() {
		h.metrics.ResetCompleted(resultLabel(err))
		endSpan(span, err)
	}()

	if err = ValidatePasswordChange(event.Password, event.PasswordConfirm, h.minPassword); err != nil {
		return err
	}

	token := strings.TrimSpace(event.Token)
	if token == "" {
		return ErrInvalidResetToken
	}

	now := h.clock()
	digest := HashResetToken(token)

	// digest and expiry are matched together so the caller cannot tell
	// an unknown token from an expired one
	user, err := h.users.FindByResetDigest(ctx, digest, now)
	if err != nil {
		if IsErrorKind(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
	}

	if !user.ResetTokenActive(now) || !VerifyResetToken(token, user.PasswordResetToken) {
		return ErrInvalidResetToken
	}
	span.SetAttributes(attribute.String("auth.user_id", user.ID.String()))

	hash, err := h.hasher.HashCredential(ctx, event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
	}

	user.SetPassword(hash, now)
	user.ClearResetToken()

	if err = h.users.Save(ctx, user, SaveOptions{Validate: true, MatchResetDigest: digest}); err != nil {
		if richErr, ok := asRichError(err); ok {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
	}

	session, err := h.tokens.IssueSession(user.ID.String())
	if err != nil {
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{User: user, Session: session})
	}

	return nil
}
