package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/bugtracker/internal/session"
)

const serviceName = "bugtracker"

// Keyring persists session values in the operating system keyring.
type Keyring struct {
	ring keyring.Keyring
}

// Open returns a Keyring backed by the first available system backend.
// configDir hosts the encrypted file fallback.
func Open(configDir string) (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("bugtracker-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// Get retrieves a value by key. Missing keys return session.ErrNotFound.
func (k *Keyring) Get(_ context.Context, key string) (string, error) {
	item, err := k.ring.Get(key)
	if isMissing(err) {
		return "", session.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a value by key.
func (k *Keyring) Set(_ context.Context, key string, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:   key,
		Label: serviceName + " " + key,
		Data:  []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a value by key. Deleting a missing key is not an error.
func (k *Keyring) Delete(_ context.Context, key string) error {
	err := k.ring.Remove(key)
	if err != nil && !isMissing(err) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// isMissing reports whether err means the key is absent. The file backend
// reports a removed key with the os error rather than ErrKeyNotFound.
func isMissing(err error) bool {
	return errors.Is(err, keyring.ErrKeyNotFound) || errors.Is(err, fs.ErrNotExist)
}

// Close is a no-op; the system keyring needs no teardown.
func (k *Keyring) Close() error {
	return nil
}
