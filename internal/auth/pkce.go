// Package auth implements the OAuth2 authorization-code flow with PKCE for a public
// client, the persisted credential and its expiry rules, and token refresh.
package auth

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/oauth2"
)

// CodeVerifier returns a fresh PKCE verifier: 32 random bytes encoded as unpadded
// base64url, always 43 characters.
func CodeVerifier() string {
	return oauth2.GenerateVerifier()
}

// CodeChallenge derives the S256 challenge for verifier.
func CodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// State returns a random CSRF token: 16 random bytes as unpadded base64url.
func State() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
