// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores BaseX passwords in the OS credential store so the
// CLI never writes them to its config file. Each password is keyed by the
// user and server it belongs to.
package keychain

import (
	"errors"
	"net"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ErrNotFound is returned when no password is stored for a connection.
var ErrNotFound = errors.New("no password stored for this connection")

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "basexq"

// Manager provides thread-safe access to the stored passwords.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager opens the OS keyring.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the process-wide manager, opening the keyring on first
// use. A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

// openRing opens the native credential store of the platform.
func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// pass needs the 'pass' utility: brew install pass
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	case "linux", "freebsd", "openbsd":
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on " + runtime.GOOS)
	}

	return keyring.Open(keyring.Config{
		ServiceName:              ServiceName,
		AllowedBackends:          allowed,
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  ServiceName,
		KWalletAppID:             ServiceName,
		KWalletFolder:            ServiceName,
	})
}

// Key returns the keyring key for a connection.
func Key(user, host, port string) string {
	return "password:" + user + "@" + net.JoinHostPort(host, port)
}

// SavePassword stores the password used by user on host:port.
func (m *Manager) SavePassword(user, host, port, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ring.Set(keyring.Item{
		Key:         Key(user, host, port),
		Data:        []byte(password),
		Label:       "BaseX password for " + user,
		Description: "basexq connection password",
	})
}

// LoadPassword returns the stored password, or ErrNotFound.
func (m *Manager) LoadPassword(user, host, port string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(Key(user, host, port))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return string(it.Data), nil
}

// DeletePassword removes the stored password. Removing a missing entry is not an error.
func (m *Manager) DeletePassword(user, host, port string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ring.Remove(Key(user, host, port)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
