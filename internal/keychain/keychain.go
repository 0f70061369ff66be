// Package keychain defines the secure key-value store used for credentials.
//
// [SystemStore] delegates to the operating system keychain through go-keyring
// (macOS Keychain, Secret Service on Linux, Windows Credential Manager).
// [MemoryStore] keeps values for the lifetime of the process and backs tests.
//
// Every backend follows the same contract: Save overwrites, Load of a missing key
// fails with [shared.ErrNotFound], Delete of a missing key is not an error.
package keychain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/desertthunder/threadx/internal/shared"
	"github.com/zalando/go-keyring"
)

// Store saves, loads, and deletes secrets by key.
type Store interface {
	Save(key string, value []byte) error
	Load(key string) ([]byte, error)
	Delete(key string) error
}

// New returns the backend named by cfg.Backend.
func New(cfg shared.KeychainConfig) (Store, error) {
	switch cfg.Backend {
	case "", "system":
		return NewSystemStore(cfg.Service), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown keychain backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}

// SystemStore implements [Store] on top of the OS keychain.
type SystemStore struct {
	service string
}

// NewSystemStore creates a [SystemStore] that files secrets under service.
func NewSystemStore(service string) *SystemStore {
	if service == "" {
		service = "threadx"
	}
	return &SystemStore{service: service}
}

func (s *SystemStore) Save(key string, value []byte) error {
	if err := keyring.Set(s.service, key, string(value)); err != nil {
		return fmt.Errorf("%w: save %s: %v", shared.ErrUnexpectedFailure, key, err)
	}
	return nil
}

func (s *SystemStore) Load(key string) ([]byte, error) {
	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", shared.ErrUnexpectedFailure, key, err)
	}
	return []byte(value), nil
}

func (s *SystemStore) Delete(key string) error {
	err := keyring.Delete(s.service, key)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("%w: delete %s: %v", shared.ErrUnexpectedFailure, key, err)
}

// MemoryStore implements [Store] with a mutex-guarded map.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Save(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Load(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotFound, key)
	}
	return append([]byte(nil), value...), nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
