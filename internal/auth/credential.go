package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// ExpiryBuffer is subtracted from a token's lifetime so it is refreshed before the
// server starts rejecting it.
const ExpiryBuffer = 5 * time.Minute

// Credential is the persisted token set for the signed-in user.
type Credential struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token,omitempty"`
	TokenType       string    `json:"token_type"`
	Scope           string    `json:"scope,omitempty"`
	IssuedAt        time.Time `json:"issued_at"`
	LifetimeSeconds int64     `json:"expires_in"`
}

// ExpiresAt is the instant the server stops accepting the access token.
func (c Credential) ExpiresAt() time.Time {
	return c.IssuedAt.Add(time.Duration(c.LifetimeSeconds) * time.Second)
}

// IsExpired reports whether the token is inside the refresh window at now.
func (c Credential) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt().Add(-ExpiryBuffer))
}

// HasRefreshToken reports whether the credential can be refreshed.
func (c Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// Token converts the credential into an [oauth2.Token] for the token source.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.ExpiresAt(),
		ExpiresIn:    c.LifetimeSeconds,
	}
}

// credentialFromToken builds a Credential issued at now. previousRefresh is kept
// when the token response did not rotate the refresh token.
func credentialFromToken(tok *oauth2.Token, now time.Time, previousRefresh string) Credential {
	lifetime := tok.ExpiresIn
	if lifetime <= 0 && !tok.Expiry.IsZero() {
		lifetime = int64(tok.Expiry.Sub(now) / time.Second)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}

	var scope string
	if s, ok := tok.Extra("scope").(string); ok {
		scope = s
	}

	return Credential{
		AccessToken:     tok.AccessToken,
		RefreshToken:    refresh,
		TokenType:       tokenType,
		Scope:           scope,
		IssuedAt:        now,
		LifetimeSeconds: lifetime,
	}
}
