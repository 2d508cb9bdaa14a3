// Package cryptox implements password hashing and verification for
// locally-registered accounts.
package cryptox

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of the password using the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
// An empty hash never matches; externally-authenticated accounts have no
// password hash at all.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
