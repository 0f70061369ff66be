package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/threadx/internal/keychain"
	"github.com/desertthunder/threadx/internal/shared"
)

// CredentialKey is the secure store entry holding the serialized [Credential].
const CredentialKey = "oauth-credential"

// TokenStore persists the single [Credential] through a [keychain.Store].
type TokenStore struct {
	store keychain.Store
	now   func() time.Time
}

// NewTokenStore creates a [TokenStore] backed by store.
func NewTokenStore(store keychain.Store) *TokenStore {
	return &TokenStore{store: store, now: time.Now}
}

// Save overwrites the stored credential.
func (t *TokenStore) Save(c Credential) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: encode credential: %v", shared.ErrUnexpectedFailure, err)
	}
	return t.store.Save(CredentialKey, data)
}

// Load returns the stored credential or an error wrapping [shared.ErrNotFound].
func (t *TokenStore) Load() (Credential, error) {
	data, err := t.store.Load(CredentialKey)
	if err != nil {
		return Credential{}, err
	}

	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, fmt.Errorf("%w: decode credential: %v", shared.ErrUnexpectedFailure, err)
	}
	return c, nil
}

// Delete removes the credential. A missing credential is not an error.
func (t *TokenStore) Delete() error {
	if err := t.store.Delete(CredentialKey); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	return nil
}

// Exists reports whether a credential can be loaded.
func (t *TokenStore) Exists() bool {
	_, err := t.Load()
	return err == nil
}

// ValidAccessToken returns the stored access token when it is present and not
// expired, or "" when the caller must refresh.
func (t *TokenStore) ValidAccessToken() string {
	c, err := t.Load()
	if err != nil || c.AccessToken == "" || c.IsExpired(t.now()) {
		return ""
	}
	return c.AccessToken
}
