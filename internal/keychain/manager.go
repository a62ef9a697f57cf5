// Copyright (c) 2025 Introspect
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores connection secrets in the OS keychain/credential store.
// A schema whose datasource reads url = env("NAME") can have NAME resolved from
// here when it is not set in the process environment, so database passwords
// need not live in shell profiles or .env files.
//
// macOS uses the security command when available and falls back to the
// keyring library; Windows uses Credential Manager and Linux the Secret Service.
package keychain

import (
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// ErrNotFound is returned when no secret is stored under a name.
var ErrNotFound = keyring.ErrKeyNotFound

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "introspect"

// keyPrefix namespaces env() secrets inside the service.
const keyPrefix = "env:"

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu      sync.RWMutex
	ring    keyring.Keyring
	backend keychainBackend
}

// keychainBackend defines the interface for keychain operations.
type keychainBackend interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		backend, err := newSecurityBackend()
		if err == nil {
			return &Manager{backend: backend}, nil
		}
		// Fall through to keyring library if security command fails
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithKeyring(ring), nil
}

// NewWithKeyring wraps an already opened keyring.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// Pass requires 'pass' utility installed: brew install pass
		allowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	case "linux":
		allowedBackends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on this OS")
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("secret name must not be empty")
	}
	return nil
}

// Set stores value under name. This method is thread-safe.
func (m *Manager) Set(name, value string) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Set(keyPrefix+name, value)
	}
	return m.ring.Set(keyring.Item{Key: keyPrefix + name, Label: ServiceName + " " + name, Data: []byte(value)})
}

// Get returns the value stored under name, or ErrNotFound.
// This method is thread-safe.
func (m *Manager) Get(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend != nil {
		return m.backend.Get(keyPrefix + name)
	}
	it, err := m.ring.Get(keyPrefix + name)
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// Delete removes name. Deleting a missing secret is not an error.
// This method is thread-safe.
func (m *Manager) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.backend != nil {
		return m.backend.Delete(keyPrefix + name)
	}
	if err := m.ring.Remove(keyPrefix + name); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// Lookup adapts Get to an environment-style lookup. Keychain failures are
// logged and reported as a miss.
func (m *Manager) Lookup(log *slog.Logger) func(name string) (string, bool) {
	return func(name string) (string, bool) {
		v, err := m.Get(name)
		if err != nil {
			if !errors.Is(err, ErrNotFound) && log != nil {
				log.Debug("keychain lookup failed", "name", name, "error", err)
			}
			return "", false
		}
		return v, true
	}
}
