package auth

// Package auth contains domain-level types for authentication.
// It is pure and free of framework/adapter concerns.

import "encoding/json"

// Claims is the raw, provider-asserted claim set. It is stored verbatim and
// treated as opaque: the core requires only that an email claim is present at
// ingestion time and makes no other assumptions about its shape.
type Claims map[string]any

// String returns the string value of a claim, or "" when the claim is absent
// or not a string.
func (c Claims) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// JSON renders the claim set for persistence. A nil claim set renders as
// JSON null.
func (c Claims) JSON() (json.RawMessage, error) {
	if c == nil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(c)
}

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	Email    string // unique local identity key, as received from the provider
	Name     string // display name; adapters default this to the email
	Provider string // allow-list name of the asserting provider
	Claims   Claims // full claim set, stored verbatim
}
