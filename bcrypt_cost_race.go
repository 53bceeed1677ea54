//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Race builds are slow enough already; keep hashing cheap so test
	// suites fit their timeouts.
	return bcrypt.MinCost
}
