package storage

import (
	"fmt"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

// Keys of the live config that make up a session.
const (
	KeyEndpoint = "CredentialEndpoint"
	KeyUsername = "Username"
	KeyPassword = "Password"
)

var (
	// ErrMissingConfig means the live config file does not exist.
	ErrMissingConfig = models.ErrMissingConfig
	// ErrMalformedConfig means a required session key is absent.
	ErrMalformedConfig = models.ErrMalformedConfig
)

// LiveConfig accesses the client's per-user config file, which holds the
// one active session in its unnamed section.
type LiveConfig struct {
	path string
}

// NewLiveConfig returns an accessor for the config file at path.
func NewLiveConfig(path string) *LiveConfig {
	return &LiveConfig{path: path}
}

// Path returns the config file location.
func (c *LiveConfig) Path() string {
	return c.path
}

// Exists reports whether the config file is present.
func (c *LiveConfig) Exists() (bool, error) {
	return exists(c.path)
}

// ReadSession loads the active session. An empty CredentialEndpoint is the
// home server.
func (c *LiveConfig) ReadSession() (models.Session, error) {
	ok, err := exists(c.path)
	if err != nil {
		return models.Session{}, fmt.Errorf("stat %s: %w", c.path, err)
	}
	if !ok {
		return models.Session{}, fmt.Errorf("%w: %s", ErrMissingConfig, c.path)
	}

	f, err := load(c.path)
	if err != nil {
		return models.Session{}, err
	}
	keys := f.Section("").KeysHash()
	for _, key := range []string{KeyEndpoint, KeyUsername, KeyPassword} {
		if _, ok := keys[key]; !ok {
			return models.Session{}, fmt.Errorf("%w: %s has no %s key", ErrMalformedConfig, c.path, key)
		}
	}

	return models.Session{
		Endpoint: keys[KeyEndpoint],
		Username: keys[KeyUsername],
		Password: keys[KeyPassword],
	}, nil
}

// WriteSession overwrites the three session keys and keeps every other
// setting of the file as it was. Values the client could not read back
// unchanged are refused with ErrUnrepresentable before anything is written.
func (c *LiveConfig) WriteSession(s models.Session) error {
	for _, kv := range [][2]string{
		{KeyEndpoint, s.Endpoint},
		{KeyUsername, s.Username},
		{KeyPassword, s.Password},
	} {
		if !verbatim(kv[1]) {
			return fmt.Errorf("%w: %s", ErrUnrepresentable, kv[0])
		}
	}
	f, err := load(c.path)
	if err != nil {
		return err
	}
	err = setKeys(f.Section(""),
		KeyUsername, s.Username,
		KeyPassword, s.Password,
		KeyEndpoint, s.Endpoint,
	)
	if err != nil {
		return err
	}
	return save(f, c.path)
}
