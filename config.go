package auth

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Options is the default Config implementation. Field tags allow
// loading it with koanf.
type Options struct {
	SigningKey          string        `koanf:"signing_key" json:"-"`
	SigningMethod       string        `koanf:"signing_method" json:"signing_method"`
	Issuer              string        `koanf:"issuer" json:"issuer"`
	Audience            []string      `koanf:"audience" json:"audience"`
	TokenExpiration     time.Duration `koanf:"token_expiration" json:"token_expiration"`
	ContextKey          string        `koanf:"context_key" json:"context_key"`
	TokenLookup         string        `koanf:"token_lookup" json:"token_lookup"`
	AuthScheme          string        `koanf:"auth_scheme" json:"auth_scheme"`
	CookieExpiration    time.Duration `koanf:"cookie_expiration" json:"cookie_expiration"`
	SecureCookie        bool          `koanf:"secure_cookie" json:"secure_cookie"`
	PasswordCost        int           `koanf:"password_cost" json:"password_cost"`
	MaxConcurrentHashes int           `koanf:"max_concurrent_hashes" json:"max_concurrent_hashes"`
	MinPasswordLength   int           `koanf:"min_password_length" json:"min_password_length"`
	ResetTokenTTL       time.Duration `koanf:"reset_token_ttl" json:"reset_token_ttl"`
	SignupRoles         []string      `koanf:"signup_roles" json:"signup_roles"`
}

var _ Config = Options{}

// DefaultOptions returns options with every field but the signing key set
func DefaultOptions() Options {
	return Options{
		SigningMethod:       "HS256",
		Issuer:              "go-authgate",
		TokenExpiration:     24 * time.Hour,
		ContextKey:          "jwt",
		TokenLookup:         "header:Authorization,cookie:jwt",
		AuthScheme:          "Bearer",
		CookieExpiration:    24 * time.Hour,
		PasswordCost:        passwordHashCost(),
		MaxConcurrentHashes: 4,
		MinPasswordLength:   8,
		ResetTokenTTL:       10 * time.Minute,
		SignupRoles:         []string{string(RoleStandard)},
	}
}

// Validate checks the options are usable
func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&o.SigningMethod, validation.Required, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&o.TokenExpiration, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.ContextKey, validation.Required),
		validation.Field(&o.TokenLookup, validation.Required),
		validation.Field(&o.PasswordCost, validation.Required, validation.Min(4), validation.Max(31)),
		validation.Field(&o.MaxConcurrentHashes, validation.Required, validation.Min(1)),
		validation.Field(&o.MinPasswordLength, validation.Required, validation.Min(1)),
		validation.Field(&o.ResetTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&o.SignupRoles, validation.Required, validation.By(validateRoleNames)),
	)
}

func validateRoleNames(value any) error {
	names, _ := value.([]string)
	for _, name := range names {
		if _, ok := ParseRole(name); !ok {
			return fmt.Errorf("unknown role %q", name)
		}
	}
	return nil
}

func (o Options) GetSigningKey() string {
	return o.SigningKey
}

func (o Options) GetSigningMethod() string {
	return o.SigningMethod
}

func (o Options) GetIssuer() string {
	return o.Issuer
}

func (o Options) GetAudience() []string {
	return o.Audience
}

func (o Options) GetTokenExpiration() time.Duration {
	return o.TokenExpiration
}

func (o Options) GetContextKey() string {
	return o.ContextKey
}

func (o Options) GetTokenLookup() string {
	return o.TokenLookup
}

func (o Options) GetAuthScheme() string {
	return o.AuthScheme
}

func (o Options) GetCookieExpiration() time.Duration {
	if o.CookieExpiration <= 0 {
		return o.TokenExpiration
	}
	return o.CookieExpiration
}

func (o Options) GetSecureCookie() bool {
	return o.SecureCookie
}

func (o Options) GetPasswordCost() int {
	return o.PasswordCost
}

func (o Options) GetMaxConcurrentHashes() int {
	return o.MaxConcurrentHashes
}

func (o Options) GetMinPasswordLength() int {
	return o.MinPasswordLength
}

func (o Options) GetResetTokenTTL() time.Duration {
	return o.ResetTokenTTL
}

func (o Options) GetSignupRoles() []string {
	return o.SignupRoles
}
