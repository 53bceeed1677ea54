package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiration() time.Duration
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetCookieExpiration() time.Duration
	GetSecureCookie() bool
	GetPasswordCost() int
	GetMaxConcurrentHashes() int
	GetMinPasswordLength() int
	GetResetTokenTTL() time.Duration
	GetSignupRoles() []string
}

// UserStore is the persistence boundary for identities.
// Lookups that miss must return ErrUserNotFound.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByResetDigest returns the user whose stored reset digest equals
	// digest and whose reset expiry is after now.
	FindByResetDigest(ctx context.Context, digest string, now time.Time) (*User, error)
	// Create validates fields, hashes the password and persists a new user.
	Create(ctx context.Context, fields UserFields) (*User, error)
	Save(ctx context.Context, user *User, opts SaveOptions) error
}

// UserFields are the inputs accepted when creating a user. A zero ID
// lets the store generate one.
type UserFields struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     UserRole  `json:"role"`
	Password string    `json:"password"`
}

// SaveOptions control how a user record is persisted
type SaveOptions struct {
	// Validate runs field validation before writing. Partial updates
	// such as reset token bookkeeping skip it.
	Validate bool
	// MatchResetDigest makes the write conditional on the stored reset
	// digest still being this value. The write fails with
	// ErrInvalidResetToken when it is not.
	MatchResetDigest string
}

// Message is an outbound notification
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages to users
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, msg Message) error

func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// PasswordHasher hashes and verifies credentials
type PasswordHasher interface {
	HashCredential(ctx context.Context, password string) (string, error)
	VerifyCredential(ctx context.Context, password, hash string) (bool, error)
}
