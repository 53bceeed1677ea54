package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel/attribute"
)

// SignupRequest holds the inputs of a signup
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Role            string `json:"role,omitempty"`
}

// AuthResult is a freshly issued session and the identity it binds
type AuthResult struct {
	Session SessionToken
	User    *User
}

// Auther issues sessions for signup, login, password update and
// password reset. It is the single entry point for the HTTP layer.
type Auther struct {
	users         UserStore
	hasher        *CredentialVerifier
	tokens        *TokenService
	register      *RegisterUserHandler
	resetInit     *InitializePasswordResetHandler
	resetFinalize *FinalizePasswordResetHandler
	minPassword   int
	clock         func() time.Time
	logger        Logger
	metrics       Metrics
}

// NewAuthenticator wires the session issuer and its command handlers
func NewAuthenticator(cfg Config, users UserStore, hasher *CredentialVerifier, notifier Notifier) (*Auther, error) {
	tokens, err := NewTokenService(cfg)
	if err != nil {
		return nil, err
	}

	if hasher == nil {
		hasher = NewCredentialVerifier(cfg)
	}

	if notifier == nil {
		notifier = LogNotifier{}
	}

	return &Auther{
		users:         users,
		hasher:        hasher,
		tokens:        tokens,
		register:      NewRegisterUserHandler(cfg, users),
		resetInit:     NewInitializePasswordResetHandler(cfg, users, notifier),
		resetFinalize: NewFinalizePasswordResetHandler(cfg, users, hasher, tokens),
		minPassword:   cfg.GetMinPasswordLength(),
		clock:         time.Now,
		logger:        defLogger{},
		metrics:       noopMetrics{},
	}, nil
}

// WithLogger sets the logger on the Auther and its handlers
func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.tokens.WithLogger(logger)
	s.register.WithLogger(logger)
	s.resetInit.WithLogger(logger)
	s.resetFinalize.WithLogger(logger)
	return s
}

// WithMetrics sets the metrics collector on the Auther and its handlers
func (s *Auther) WithMetrics(m Metrics) *Auther {
	if m == nil {
		return s
	}
	s.metrics = m
	s.hasher.WithMetrics(m)
	s.resetInit.WithMetrics(m)
	s.resetFinalize.WithMetrics(m)
	return s
}

// WithClock sets one time source for tokens, password changes and reset expiry
func (s *Auther) WithClock(clock func() time.Time) *Auther {
	if clock == nil {
		return s
	}
	s.clock = clock
	s.tokens.WithClock(clock)
	s.resetInit.WithClock(clock)
	s.resetFinalize.WithClock(clock)
	return s
}

// WithHashid derives new user IDs from their email
func (s *Auther) WithHashid(enabled bool) *Auther {
	s.register.WithHashid(enabled)
	return s
}

// WithResetMailer overrides the reset message renderer
func (s *Auther) WithResetMailer(m *ResetMailer) *Auther {
	s.resetInit.WithMailer(m)
	return s
}

// TokenService returns the TokenService used by this Auther
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// Users returns the backing store
func (s *Auther) Users() UserStore {
	return s.users
}

// Signup registers a new identity and issues its first session
func (s *Auther) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	var user *User
	err := s.register.Execute(ctx, RegisterUserMessage{
		Name:            req.Name,
		Email:           req.Email,
		Role:            req.Role,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		OnResponse: func(u *User) {
			user = u
		},
	})
	if err != nil {
		s.logger.Info("Signup rejected", "error", err)
		return nil, err
	}

	return s.issue(ctx, "signup", user)
}

// Login verifies credentials. An unknown email and a wrong password
// produce the same error after the same amount of hashing work.
func (s *Auther) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	ctx, span := startSpan(ctx, "auth.login")
	defer func() {
		s.metrics.LoginAttempt(resultLabel(err))
		endSpan(span, err)
	}()

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !IsErrorKind(err, ErrUserNotFound) {
			s.logger.Error("Login failed to look up identity", "error", err)
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up identity")
		}
		s.hasher.VerifyAgainstDummy(ctx, password)
		s.logger.Info("Login failed", "reason", "unknown identity")
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.VerifyCredential(ctx, password, user.PasswordHash)
	if err != nil {
		s.logger.Error("Login verify credential error", "error", err)
		return nil, err
	}
	if !ok {
		s.logger.Info("Login failed", "reason", "credential mismatch", "user_id", user.ID.String())
		return nil, ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("auth.user_id", user.ID.String()))
	return s.issue(ctx, "login", user)
}

// UpdatePassword changes the password of an authenticated identity and
// issues a new session. Sessions issued before the change become stale.
func (s *Auther) UpdatePassword(ctx context.Context, identity *User, current, password, confirm string) (result *AuthResult, err error) {
	ctx, span := startSpan(ctx, "auth.update_password")
	defer func() { endSpan(span, err) }()

	if identity == nil {
		return nil, ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, identity.ID.String())
	if err != nil {
		if IsErrorKind(err, ErrUserNotFound) {
			return nil, newError(ErrUnauthenticated, err, map[string]any{"reason": TextCodeIdentityGone})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}

	ok, err := s.hasher.VerifyCredential(ctx, current, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrWrongCurrentPassword
	}

	if err = ValidatePasswordChange(password, confirm, s.minPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashCredential(ctx, password)
	if err != nil {
		return nil, err
	}

	user.SetPassword(hash, s.clock())
	if err = s.users.Save(ctx, user, SaveOptions{Validate: true}); err != nil {
		if richErr, ok := asRichError(err); ok {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to save new password")
	}

	return s.issue(ctx, "update_password", user)
}

// RequestPasswordReset sends a reset link to email. resetURL may be nil.
func (s *Auther) RequestPasswordReset(ctx context.Context, email string, resetURL func(token string) string) error {
	return s.resetInit.Execute(ctx, InitializePasswordResetMessage{
		Email:    strings.TrimSpace(email),
		ResetURL: resetURL,
	})
}

// ResetPassword consumes a reset token and issues a new session
func (s *Auther) ResetPassword(ctx context.Context, token, password, confirm string) (*AuthResult, error) {
	var result *AuthResult
	err := s.resetFinalize.Execute(ctx, FinalizePasswordResetMessage{
		Token:           token,
		Password:        password,
		PasswordConfirm: confirm,
		OnResponse: func(resp *FinalizePasswordResetResponse) {
			result = &AuthResult{Session: resp.Session, User: resp.User}
		},
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SessionIssued("password_reset")
	return result, nil
}

func (s *Auther) issue(ctx context.Context, flow string, user *User) (result *AuthResult, err error) {
	_, span := startSpan(ctx, "auth.issue_session", attribute.String("auth.flow", flow))
	defer func() { endSpan(span, err) }()

	if user == nil {
		return nil, goerrors.New("identity is required", goerrors.CategoryInternal)
	}

	session, err := s.tokens.IssueSession(user.ID.String())
	if err != nil {
		s.logger.Error("failed to issue session", "flow", flow, "error", err)
		return nil, err
	}

	s.metrics.SessionIssued(flow)
	return &AuthResult{Session: session, User: user}, nil
}
