//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"time"
)

// User is the local identity record for an authenticated person.
// Email uniquely identifies a user; re-authentication through any provider
// with the same email updates the existing row rather than creating a new one.
type User struct {
	ID          string          `json:"id"           db:"id"`
	Email       string          `json:"email"        db:"email"`
	Name        string          `json:"name"         db:"name"`
	Provider    string          `json:"provider"     db:"provider"`
	SSOMetadata json.RawMessage `json:"sso_metadata" db:"sso_metadata"` // JSONB claim blob stored verbatim
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"   db:"updated_at"`
}

// Token is the persisted record of an issued bearer credential. The encoded
// credential is self-verifying; this row exists so logout can revoke it
// before natural expiry.
type Token struct {
	ID          string    `json:"id"           db:"id"`
	UserID      string    `json:"user_id"      db:"user_id"`
	AccessToken string    `json:"access_token" db:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"   db:"expires_at"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}

// Expired reports whether the token's expiry has passed at the given instant.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
