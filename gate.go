package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-authgate/middleware/bearer"
)

// GateStage is the furthest point a request reached in the access gate
type GateStage int

const (
	StageNoToken GateStage = iota
	StageTokenExtracted
	StageTokenVerified
	StageIdentityResolved
	StageNotStale
	StageAuthorized
)

func (s GateStage) String() string {
	switch s {
	case StageNoToken:
		return "no_token"
	case StageTokenExtracted:
		return "token_extracted"
	case StageTokenVerified:
		return "token_verified"
	case StageIdentityResolved:
		return "identity_resolved"
	case StageNotStale:
		return "not_stale"
	case StageAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// TokenSource is where the gate looks for a session token
type TokenSource = bearer.Source

// Gate either returns a context to continue with or an error that
// stops the pipeline.
type Gate func(ctx context.Context, src TokenSource) (context.Context, error)

// Pipeline is an ordered list of gates
type Pipeline []Gate

// NewPipeline builds a pipeline, dropping nil gates
func NewPipeline(gates ...Gate) Pipeline {
	p := make(Pipeline, 0, len(gates))
	for _, g := range gates {
		if g != nil {
			p = append(p, g)
		}
	}
	return p
}

// Run executes gates in order. The first error short-circuits.
func (p Pipeline) Run(ctx context.Context, src TokenSource) (context.Context, error) {
	var err error
	for _, gate := range p {
		if ctx, err = gate(ctx, src); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// AccessGate establishes identity for protected requests
type AccessGate struct {
	tokens     *TokenService
	users      UserStore
	extractors []bearer.Extractor
	logger     Logger
	metrics    Metrics
}

// NewAccessGate creates a gate reading tokens per cfg's lookup expression
func NewAccessGate(cfg Config, tokens *TokenService, users UserStore) *AccessGate {
	return &AccessGate{
		tokens:     tokens,
		users:      users,
		extractors: bearer.Extractors(cfg.GetTokenLookup(), cfg.GetAuthScheme()),
		logger:     defLogger{},
		metrics:    noopMetrics{},
	}
}

// WithLogger overrides the logger
func (g *AccessGate) WithLogger(logger Logger) *AccessGate {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// WithMetrics sets the metrics collector
func (g *AccessGate) WithMetrics(m Metrics) *AccessGate {
	if m != nil {
		g.metrics = m
	}
	return g
}

// Gate returns Authenticate as a pipeline step
func (g *AccessGate) Gate() Gate {
	return g.Authenticate
}

// Authenticate extracts and verifies the session, resolves the identity
// and rejects sessions issued before the last password change. On
// success the identity and session are attached to the returned context.
//
// Every rejection is ErrUnauthenticated. The failed check is recorded in
// the error metadata under "stage" and "reason" and never reaches the
// client body.
func (g *AccessGate) Authenticate(ctx context.Context, src TokenSource) (context.Context, error) {
	stage := StageNoToken

	raw, err := bearer.Extract(src, g.extractors)
	if err != nil || raw == "" {
		return ctx, g.reject(stage, ErrUnauthenticated, nil)
	}
	stage = StageTokenExtracted

	session, err := g.tokens.VerifySession(raw)
	if err != nil {
		if richErr, ok := asRichError(err); ok {
			return ctx, g.reject(stage, richErr, richErr.Source)
		}
		return ctx, g.reject(stage, ErrSessionInvalid, err)
	}
	stage = StageTokenVerified

	user, err := g.users.FindByID(ctx, session.UserID)
	if err != nil {
		if IsErrorKind(err, ErrUserNotFound) {
			return ctx, g.reject(stage, ErrIdentityGone, err)
		}
		g.logger.Error("access gate failed to resolve identity", "user_id", session.UserID, "error", err)
		return ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve identity").
			WithCode(goerrors.CodeInternal).
			WithMetadata(map[string]any{"stage": stage.String()})
	}
	stage = StageIdentityResolved

	if ChangedAfter(user, session.IssuedAt) {
		return ctx, g.reject(stage, ErrStaleSession, nil)
	}

	ctx = WithIdentity(ctx, user)
	ctx = WithSession(ctx, session)
	return ctx, nil
}

func (g *AccessGate) reject(stage GateStage, reason *goerrors.Error, source error) error {
	g.metrics.GateRejected(stage)
	g.logger.Debug("access gate rejected request", "stage", stage.String(), "reason", reason.TextCode)
	return newError(ErrUnauthenticated, source, map[string]any{
		"stage":  stage.String(),
		"reason": reason.TextCode,
	})
}

// RequireRoles returns a gate accepting identities whose role is one of
// roles. It must run after the access gate.
func RequireRoles(roles ...UserRole) Gate {
	allowed := append([]UserRole(nil), roles...)
	return requireRole(func(role UserRole) bool {
		return role.In(allowed...)
	})
}

// RequireMinRole returns a gate accepting identities at or above minRole
// in the role hierarchy. It must run after the access gate.
func RequireMinRole(minRole UserRole) Gate {
	return requireRole(func(role UserRole) bool {
		return role.IsAtLeast(minRole)
	})
}

func requireRole(allowed func(UserRole) bool) Gate {
	return func(ctx context.Context, _ TokenSource) (context.Context, error) {
		user, ok := IdentityFromContext(ctx)
		if !ok {
			return ctx, newError(ErrUnauthenticated, nil, map[string]any{"stage": StageNotStale.String()})
		}
		if !allowed(user.Role) {
			return ctx, newError(ErrForbidden, nil, map[string]any{
				"stage": StageNotStale.String(),
				"role":  string(user.Role),
			})
		}
		return ctx, nil
	}
}

// GateStageFromError returns the stage recorded on a gate error
func GateStageFromError(err error) (string, bool) {
	return gateMetadata(err, "stage")
}

// GateReasonFromError returns the text code of the check that rejected
// the request, e.g. TextCodeStaleSession.
func GateReasonFromError(err error) (string, bool) {
	return gateMetadata(err, "reason")
}

func gateMetadata(err error, key string) (string, bool) {
	richErr, ok := asRichError(err)
	if !ok || richErr.Metadata == nil {
		return "", false
	}
	v, ok := richErr.Metadata[key].(string)
	return v, ok
}
