package auth

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-authgate/middleware/bearer"
)

const (
	// LocalsUserKey holds the authenticated *User in router locals
	LocalsUserKey = "user"
	// LocalsSessionKey holds the verified *SessionObject in router locals
	LocalsSessionKey = "session"

	loggedOutCookieTTL = 10 * time.Second
)

// ErrorHandler renders a failed request
type ErrorHandler func(c router.Context, err error) error

// Envelope is the JSON body of every auth response
type Envelope struct {
	Status  string `json:"status"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ProtectedRoute runs gates before the next handler. On success the
// identity and session are available from ctx.Context() and from router
// locals. Rejections are rendered by errorHandler, NewErrorHandler(nil)
// when nil.
func ProtectedRoute(errorHandler ErrorHandler, gates ...Gate) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = NewErrorHandler(nil)
	}

	pipeline := NewPipeline(gates...)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			ctx, err := pipeline.Run(c.Context(), bearer.FromRouter(c))
			if err != nil {
				return errorHandler(c, err)
			}

			c.SetContext(ctx)
			if user, ok := IdentityFromContext(ctx); ok {
				c.Locals(LocalsUserKey, user)
			}
			if session, ok := SessionFromContext(ctx); ok {
				c.Locals(LocalsSessionKey, session)
			}
			return next(c)
		}
	}
}

// CurrentUser returns the identity set by ProtectedRoute
func CurrentUser(c router.Context) (*User, error) {
	if user, ok := IdentityFromContext(c.Context()); ok {
		return user, nil
	}
	if user, ok := c.Locals(LocalsUserKey).(*User); ok && user != nil {
		return user, nil
	}
	return nil, ErrUnauthenticated
}

// CurrentSession returns the session set by ProtectedRoute
func CurrentSession(c router.Context) (*SessionObject, error) {
	if session, ok := SessionFromContext(c.Context()); ok {
		return session, nil
	}
	if session, ok := c.Locals(LocalsSessionKey).(*SessionObject); ok && session != nil {
		return session, nil
	}
	return nil, ErrUnauthenticated
}

func setSessionCookie(c router.Context, cfg Config, session SessionToken) {
	c.Cookie(&router.Cookie{
		Name:     cfg.GetContextKey(),
		Value:    session.Value,
		Path:     "/",
		Expires:  time.Now().Add(cfg.GetCookieExpiration()),
		HTTPOnly: true,
		Secure:   cfg.GetSecureCookie(),
		SameSite: "Lax",
	})
}

// clearSessionCookie overwrites the session cookie with a short lived
// placeholder the bearer extractor treats as absent.
func clearSessionCookie(c router.Context, cfg Config) {
	c.Cookie(&router.Cookie{
		Name:     cfg.GetContextKey(),
		Value:    bearer.LoggedOutValue,
		Path:     "/",
		Expires:  time.Now().Add(loggedOutCookieTTL),
		HTTPOnly: true,
		Secure:   cfg.GetSecureCookie(),
		SameSite: "Lax",
	})
}

// NewErrorHandler returns a router error handler rendering errors as
// envelopes. Rich errors keep their status and message, anything else is
// logged and answered with a generic 500.
func NewErrorHandler(logger Logger) ErrorHandler {
	logger = loggerOrDefault(logger)

	return func(c router.Context, err error) error {
		richErr, ok := asRichError(err)
		if !ok {
			logger.Error("unexpected error", "path", c.Path(), "error", err)
			return c.JSON(http.StatusInternalServerError, Envelope{
				Status:  statusLabel(http.StatusInternalServerError),
				Message: "something went very wrong",
				Code:    TextCodeInternalServerError,
			})
		}

		status := statusFor(richErr)
		if status >= http.StatusInternalServerError {
			logger.Error(
				"request failed",
				"path", c.Path(),
				"error", richErr.Message,
				"source", richErr.Source,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		} else {
			logger.Debug(
				"request rejected",
				"path", c.Path(),
				"text_code", richErr.TextCode,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		}
		return c.JSON(status, errorEnvelope(status, richErr))
	}
}

func errorEnvelope(status int, richErr *goerrors.Error) Envelope {
	env := Envelope{
		Status:  statusLabel(status),
		Message: richErr.Message,
		Code:    richErr.TextCode,
	}
	if fields, ok := richErr.Metadata["fields"]; ok {
		env.Data = map[string]any{"fields": fields}
	}
	return env
}

func statusFor(richErr *goerrors.Error) int {
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}
	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func statusLabel(status int) string {
	if status >= http.StatusInternalServerError {
		return "error"
	}
	return "fail"
}
