// Package models declares the persistent entities of the service.
package models

import "time"

// User is an authenticated principal. PasswordHash is empty for accounts
// created through an external identity provider; such accounts cannot log
// in with a password.
type User struct {
	ID           string
	Username     string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
