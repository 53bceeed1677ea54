package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService issues and verifies signed session tokens
type TokenService struct {
	signingKey []byte
	method     jwt.SigningMethod
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	clock      func() time.Time
	logger     Logger
}

// NewTokenService creates a TokenService from cfg. Only HMAC signing
// methods are supported.
func NewTokenService(cfg Config) (*TokenService, error) {
	if cfg.GetSigningKey() == "" {
		return nil, ErrMissingSigningKey
	}

	alg := strings.ToUpper(strings.TrimSpace(cfg.GetSigningMethod()))
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}

	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok || method == nil {
		return nil, newError(ErrUnsupportedSigningMethod, nil, map[string]any{"alg": alg})
	}

	expiration := cfg.GetTokenExpiration()
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	var aud jwt.ClaimStrings
	if len(cfg.GetAudience()) > 0 {
		aud = append(aud, cfg.GetAudience()...)
	}

	return &TokenService{
		signingKey: []byte(cfg.GetSigningKey()),
		method:     method,
		expiration: expiration,
		issuer:     cfg.GetIssuer(),
		audience:   aud,
		clock:      time.Now,
		logger:     defLogger{},
	}, nil
}

// WithClock overrides the time source used to stamp and verify tokens
func (ts *TokenService) WithClock(clock func() time.Time) *TokenService {
	if clock != nil {
		ts.clock = clock
	}
	return ts
}

// WithLogger overrides the logger
func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// Expiration is the lifetime of issued sessions
func (ts *TokenService) Expiration() time.Duration {
	return ts.expiration
}

// IssueSession creates a signed session token bound to identityID
func (ts *TokenService) IssueSession(identityID string) (SessionToken, error) {
	if identityID == "" {
		return SessionToken{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	now := ts.clock()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identityID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UID: identityID,
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return SessionToken{}, err
	}

	return SessionToken{
		Value:     signed,
		IssuedAt:  claims.IssuedAt(),
		ExpiresAt: claims.Expires(),
	}, nil
}

// SignClaims signs claims with the configured key and method
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// VerifySession parses and validates a session token. Expired tokens
// fail with ErrSessionExpired, everything else with ErrSessionInvalid.
func (ts *TokenService) VerifySession(tokenString string) (*SessionObject, error) {
	if tokenString == "" {
		return nil, ErrSessionInvalid
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithTimeFunc(ts.clock),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(ErrSessionExpired, err, nil)
		}
		return nil, newError(ErrSessionInvalid, err, map[string]any{"cause": err.Error()})
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService verify could not decode claims")
		return nil, ErrSessionInvalid
	}

	return sessionFromClaims(claims)
}
