package auth

import (
	"context"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel/attribute"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	// ResetURL builds the link sent to the user from the plaintext token
	ResetURL   func(token string) string                   `json:"-"`
	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset.request" }

// Validate will validate the payload
func (p InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

type InitializePasswordResetResponse struct {
	Email     string
	ExpiresAt time.Time
	Success   bool
}

type InitializePasswordResetHandler struct {
	users    UserStore
	notifier Notifier
	mailer   *ResetMailer
	ttl      time.Duration
	clock    func() time.Time
	logger   Logger
	metrics  Metrics
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(cfg Config, users UserStore, notifier Notifier) *InitializePasswordResetHandler {
	ttl := cfg.GetResetTokenTTL()
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &InitializePasswordResetHandler{
		users:    users,
		notifier: notifier,
		mailer:   MustResetMailer(),
		ttl:      ttl,
		clock:    time.Now,
		logger:   defLogger{},
		metrics:  noopMetrics{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMetrics sets the metrics collector
func (h *InitializePasswordResetHandler) WithMetrics(m Metrics) *InitializePasswordResetHandler {
	if m != nil {
		h.metrics = m
	}
	return h
}

// WithClock overrides the time source used to stamp expiry
func (h *InitializePasswordResetHandler) WithClock(clock func() time.Time) *InitializePasswordResetHandler {
	if clock != nil {
		h.clock = clock
	}
	return h
}

// WithMailer overrides the reset message renderer
func (h *InitializePasswordResetHandler) WithMailer(m *ResetMailer) *InitializePasswordResetHandler {
	if m != nil {
		h.mailer = m
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) (err error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	ctx, span := startSpan(ctx, "auth.password_reset.initialize")
	defer func() {
		h.metrics.ResetRequested(resultLabel(err))
		endSpan(span, err)
	}()

	if err = event.Validate(); err != nil {
		return validationError(err)
	}

	user, err := h.users.FindByEmail(ctx, NormalizeEmail(event.Email))
	if err != nil {
		if IsErrorKind(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}
	span.SetAttributes(attribute.String("auth.user_id", user.ID.String()))

	plaintext, digest, err := IssueResetToken()
	if err != nil {
		return err
	}

	expiresAt := h.clock().Add(h.ttl)
	user.SetResetToken(digest, expiresAt)

	if err = h.users.Save(ctx, user, SaveOptions{Validate: false}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store password reset token")
	}

	resetURL := defaultResetURL(plaintext)
	if event.ResetURL != nil {
		resetURL = event.ResetURL(plaintext)
	}

	msg, err := h.mailer.Render(user, resetURL, h.ttl)
	if err == nil {
		err = h.notifier.Send(ctx, msg)
	}

	if err != nil {
		h.logger.Error("password reset delivery failed", "user_id", user.ID.String(), "error", err)
		h.clearToken(ctx, user)
		return newError(ErrResetDelivery, err, nil)
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Email:     user.Email,
			ExpiresAt: expiresAt,
			Success:   true,
		})
	}

	return nil
}

// clearToken removes the stored digest after a failed delivery. It runs
// even when ctx is already done; a failure is logged, not returned.
func (h *InitializePasswordResetHandler) clearToken(ctx context.Context, user *User) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	user.ClearResetToken()
	if err := h.users.Save(cleanupCtx, user, SaveOptions{Validate: false}); err != nil {
		h.logger.Error("failed to clear password reset token", "user_id", user.ID.String(), "error", err)
	}
}

func defaultResetURL(token string) string {
	return "/resetpassword/" + url.PathEscape(token)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if richErr, ok := asRichError(err); ok && richErr.TextCode != "" {
		return richErr.TextCode
	}
	return "error"
}
