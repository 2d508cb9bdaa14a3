package models

import "time"

// RefreshToken is the persisted record backing a user's single active
// session. Token holds the signed string as handed to the client; UserID is
// unique, so at most one record exists per user at any time.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}
