package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/ini.v1"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

// ErrMalformedVault means an archived section lacks a credential key.
var ErrMalformedVault = errors.New("vault entry is malformed")

// FileVault keeps archived credentials in an INI file, one section per
// server address with Username and Password keys.
type FileVault struct {
	path string
}

// NewFileVault returns a vault backed by the file at path. The file is
// created by the first Store.
func NewFileVault(path string) *FileVault {
	return &FileVault{path: path}
}

func (v *FileVault) open() (*ini.File, error) {
	ok, err := exists(v.path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", v.path, err)
	}
	if !ok {
		return ini.Empty(loadOptions), nil
	}
	return load(v.path)
}

// Lookup returns the entry for server, or nil when the server was never
// archived.
func (v *FileVault) Lookup(_ context.Context, server string) (*models.VaultEntry, error) {
	if server == models.HomeServer {
		return nil, nil
	}
	f, err := v.open()
	if err != nil {
		return nil, err
	}
	sec, err := f.GetSection(server)
	if err != nil {
		return nil, nil
	}
	return entryFromSection(server, sec)
}

// Store inserts or overwrites the entry for e.Server.
func (v *FileVault) Store(_ context.Context, e models.VaultEntry) error {
	if e.Server == models.HomeServer {
		return models.ErrHomeServerKey
	}
	f, err := v.open()
	if err != nil {
		return err
	}
	sec := f.Section(e.Server)
	err = setKeys(sec,
		KeyUsername, encodeValue(e.Username),
		KeyPassword, encodeValue(e.Password),
	)
	if err != nil {
		return err
	}
	return save(f, v.path)
}

// List returns every archived entry ordered by server address.
func (v *FileVault) List(_ context.Context) ([]models.VaultEntry, error) {
	f, err := v.open()
	if err != nil {
		return nil, err
	}
	var entries []models.VaultEntry
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		e, err := entryFromSection(sec.Name(), sec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Server < entries[j].Server })
	return entries, nil
}

func entryFromSection(server string, sec *ini.Section) (*models.VaultEntry, error) {
	keys := sec.KeysHash()
	username, okUser := keys[KeyUsername]
	password, okPass := keys[KeyPassword]
	if !okUser || !okPass {
		return nil, fmt.Errorf("%w: [%s]", ErrMalformedVault, server)
	}
	var err error
	if username, err = decodeValue(username); err != nil {
		return nil, fmt.Errorf("%w: [%s] %s: %w", ErrMalformedVault, server, KeyUsername, err)
	}
	if password, err = decodeValue(password); err != nil {
		return nil, fmt.Errorf("%w: [%s] %s: %w", ErrMalformedVault, server, KeyPassword, err)
	}
	return &models.VaultEntry{Server: server, Username: username, Password: password}, nil
}
