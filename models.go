package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Credential and reset fields never leave the
// process: they are excluded from JSON.
type User struct {
	bun.BaseModel        `bun:"table:users,alias:usr"`
	ID                   uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name                 string     `bun:"name,notnull" json:"name"`
	Email                string     `bun:"email,notnull,unique" json:"email"`
	Role                 UserRole   `bun:"role,notnull" json:"role"`
	PasswordHash         string     `bun:"password_hash,notnull" json:"-"`
	PasswordChangedAt    *time.Time `bun:"password_changed_at,nullzero" json:"-"`
	PasswordResetToken   string     `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpires *time.Time `bun:"password_reset_expires,nullzero" json:"-"`
	CreatedAt            *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt            *time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
}

// SetPassword stores a new credential hash. The change timestamp is set
// one second in the past so a session issued right after the change,
// within the same second, is not considered stale.
func (u *User) SetPassword(hash string, now time.Time) {
	u.PasswordHash = hash
	changed := now.Add(-time.Second).UTC()
	u.PasswordChangedAt = &changed
}

// SetResetToken stores the digest of a reset token and its expiry
func (u *User) SetResetToken(digest string, expires time.Time) {
	u.PasswordResetToken = digest
	exp := expires.UTC()
	u.PasswordResetExpires = &exp
}

// ClearResetToken removes any pending reset token
func (u *User) ClearResetToken() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

// ResetTokenActive reports whether a reset token is stored and unexpired at now
func (u *User) ResetTokenActive(now time.Time) bool {
	if u.PasswordResetToken == "" || u.PasswordResetExpires == nil {
		return false
	}
	return u.PasswordResetExpires.After(now)
}

// NormalizeEmail lower cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareUserDefaults(u *User) {
	if u == nil {
		return
	}
	u.Email = NormalizeEmail(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	if u.Role == "" {
		u.Role = RoleStandard
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
}
