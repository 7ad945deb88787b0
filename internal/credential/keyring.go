package credential

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "feed2imap"

// refPrefix marks a config value that names a keyring entry rather than
// holding the secret itself.
const refPrefix = "keyring:"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join("~", ".config", serviceName, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("feed2imap-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "feed2imap " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring. A key that
// does not exist is not an error.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// IMAPKey is the keyring key under which the IMAP password of username is
// stored.
func IMAPKey(username string) string {
	return "imap-" + username
}

// Ref formats key as a config reference ("keyring:<key>").
func Ref(key string) string {
	return refPrefix + key
}

// ParseRef extracts the keyring key from a "keyring:<key>" reference.
func ParseRef(ref string) (string, bool) {
	key, ok := strings.CutPrefix(strings.TrimSpace(ref), refPrefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// ResolvePassword returns password when it is set, otherwise the secret
// that ref points at.
func ResolvePassword(password, ref string) (string, error) {
	return resolve(password, ref, Get)
}

func resolve(password, ref string, get func(string) (string, error)) (string, error) {
	if password != "" {
		return password, nil
	}
	if ref == "" {
		return "", fmt.Errorf("no password configured: set imap.password or imap.password_ref")
	}
	key, ok := ParseRef(ref)
	if !ok {
		return "", fmt.Errorf("unsupported password reference %q", ref)
	}
	return get(key)
}

// Replace stores value under key and returns its reference. When oldRef
// names a different keyring entry, that entry is removed afterwards. A
// non-empty reference with an error means the new secret is stored but
// the old one could not be removed.
func Replace(oldRef, key, value string) (string, error) {
	return replace(oldRef, key, value, Set, Delete)
}

func replace(oldRef, key, value string, set func(string, string) error, del func(string) error) (string, error) {
	if err := set(key, value); err != nil {
		return "", err
	}
	ref := Ref(key)

	old, ok := ParseRef(oldRef)
	if !ok || old == key {
		return ref, nil
	}
	if err := del(old); err != nil {
		return ref, fmt.Errorf("removing old credential: %w", err)
	}
	return ref, nil
}
