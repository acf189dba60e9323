package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "mailissue"

// ErrNoAPIKey is returned when neither the configuration nor the keyring
// holds a key for the tracker.
var ErrNoAPIKey = errors.New("no api key stored")

// Keys stores tracker API keys, one per tracker URL.
type Keys struct {
	ring keyring.Keyring
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Keys {
	return &Keys{ring: ring}
}

// Open opens the system keyring. Systems without a keyring daemon fall
// back to an encrypted file under configDir.
func Open(configDir string) (*Keys, error) {
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
		FilePasswordFunc:         keyring.FixedStringPrompt("mailissue-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return New(ring), nil
}

// itemKey normalizes a tracker URL so that "https://h/" and "https://h"
// share a key.
func itemKey(url string) string {
	return "redmine:" + strings.TrimRight(strings.TrimSpace(url), "/")
}

// APIKey returns the key stored for the tracker at url.
func (k *Keys) APIKey(url string) (string, error) {
	item, err := k.ring.Get(itemKey(url))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoAPIKey
	}
	if err != nil {
		return "", fmt.Errorf("getting api key for %s: %w", url, err)
	}
	return string(item.Data), nil
}

// SetAPIKey stores key for the tracker at url.
func (k *Keys) SetAPIKey(url, key string) error {
	if key == "" {
		return errors.New("setting api key: key is empty")
	}
	err := k.ring.Set(keyring.Item{
		Key:   itemKey(url),
		Data:  []byte(key),
		Label: "mailissue " + url,
	})
	if err != nil {
		return fmt.Errorf("setting api key for %s: %w", url, err)
	}
	return nil
}

// DeleteAPIKey removes the key stored for url. Removing a missing key is
// not an error.
func (k *Keys) DeleteAPIKey(url string) error {
	err := k.ring.Remove(itemKey(url))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting api key for %s: %w", url, err)
	}
	return nil
}

// Resolve returns configured when set, otherwise the stored key.
func (k *Keys) Resolve(url, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return k.APIKey(url)
}
