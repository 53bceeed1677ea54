// Package auth provides signup, login and password reset for HTTP APIs
// backed by stateless JWT sessions.
//
// Sessions:
//   - TokenService signs and verifies HMAC JWTs. The token carries the user
//     id, issue and expiry times only; the role is always read from the store.
//   - AccessGate resolves the identity behind a session and rejects sessions
//     issued before the last password change. RequireRoles runs after it.
//
// Credentials:
//   - CredentialVerifier hashes with bcrypt, bounded by a semaphore so hashing
//     bursts do not starve other requests.
//   - Login answers an unknown email and a wrong password with the same error
//     after the same amount of hashing work.
//
// Password reset:
//   - Reset tokens are random, only their SHA-256 digest is stored, and they
//     expire after ResetTokenTTL. Finalizing consumes the token with a
//     conditional update so it can only be used once.
//
// HTTP:
//   - RegisterAuthRoutes mounts the JSON routes on any go-router Router and
//     NewErrorHandler renders errors as {status, message, code} envelopes.
//     Every gate rejection renders the same 401 body.
package auth
