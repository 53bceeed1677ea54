package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// ResetTokenBytes is the entropy of a reset token, 64 hex chars
const ResetTokenBytes = 32

// IssueResetToken creates a random reset token and its digest. The
// plaintext goes to the user; only the digest is ever stored.
func IssueResetToken() (plaintext, digest string, err error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
	}

	plaintext = hex.EncodeToString(buf)
	return plaintext, HashResetToken(plaintext), nil
}

// VerifyResetToken checks plaintext against a stored digest in constant time
func VerifyResetToken(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	computed := HashResetToken(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}

// HashResetToken returns the hex SHA-256 digest of a reset token
func HashResetToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}
