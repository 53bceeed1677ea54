package auth

import (
	"context"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// CredentialVerifier hashes and checks passwords with bcrypt. Hashing
// work is bounded by a weighted semaphore so a burst of logins cannot
// starve unrelated requests of CPU.
type CredentialVerifier struct {
	cost    int
	sem     *semaphore.Weighted
	metrics Metrics

	// compared against on lookup misses
	dummyHash []byte
}

var _ PasswordHasher = (*CredentialVerifier)(nil)

// NewCredentialVerifier creates a verifier using cfg's password cost and
// concurrency limit.
func NewCredentialVerifier(cfg Config) *CredentialVerifier {
	cost := cfg.GetPasswordCost()
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}

	limit := int64(cfg.GetMaxConcurrentHashes())
	if limit <= 0 {
		limit = 1
	}

	// GenerateFromPassword only fails for out of range costs
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)

	return &CredentialVerifier{
		cost:      cost,
		sem:       semaphore.NewWeighted(limit),
		metrics:   noopMetrics{},
		dummyHash: dummy,
	}
}

// WithMetrics sets the collector for hashing latency
func (v *CredentialVerifier) WithMetrics(m Metrics) *CredentialVerifier {
	if m != nil {
		v.metrics = m
	}
	return v
}

// HashCredential will generate a password hash
func (v *CredentialVerifier) HashCredential(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	var hash []byte
	err := v.run(ctx, "hash", func() error {
		h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
		hash = h
		return err
	})
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyCredential will validate the given cleartext password matches
// the hashed password. A mismatch is reported as false with a nil error.
func (v *CredentialVerifier) VerifyCredential(ctx context.Context, password, hash string) (bool, error) {
	if password == "" || hash == "" {
		return false, nil
	}

	var match bool
	err := v.run(ctx, "verify", func() error {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if err == nil {
			match = true
			return nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return match, nil
}

// VerifyAgainstDummy burns one comparison so a lookup miss takes as long
// as a wrong password. The dummy hash is built with the verifier, so the
// first miss does no extra work.
func (v *CredentialVerifier) VerifyAgainstDummy(ctx context.Context, password string) {
	if v.dummyHash == nil {
		return
	}
	if password == "" {
		password = "-"
	}
	_, _ = v.VerifyCredential(ctx, password, string(v.dummyHash))
}

// run executes fn on its own goroutine once a semaphore slot is free.
// The caller returns early if ctx is done; fn still completes and
// releases its slot.
func (v *CredentialVerifier) run(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before password hashing")
	}

	if err := v.sem.Acquire(ctx, 1); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled waiting for password hashing")
	}

	done := make(chan error, 1)
	started := time.Now()
	go func() {
		defer v.sem.Release(1)
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password hashing")
	case err := <-done:
		v.metrics.ObserveHash(op, time.Since(started))
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "password hashing failed")
		}
		return nil
	}
}

// ChangedAfter reports whether user's password changed after a session
// issued at issuedAt. Comparison is in whole seconds, the resolution of
// the JWT iat claim.
func ChangedAfter(user *User, issuedAt time.Time) bool {
	if user == nil || user.PasswordChangedAt == nil {
		return false
	}
	return user.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// ChangedAfter is the method form of the package level function
func (v *CredentialVerifier) ChangedAfter(user *User, issuedAt time.Time) bool {
	return ChangedAfter(user, issuedAt)
}
