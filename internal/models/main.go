// Package models defines the core data structures shared by the switch
// engine and its storage collaborators.
package models

import (
	"errors"
	"path/filepath"
)

// HomeServer is the sentinel endpoint of the default (home) server.
// The client stores it as an empty CredentialEndpoint.
const HomeServer = ""

var (
	// ErrHomeServerKey is returned when something tries to archive
	// credentials under the home sentinel.
	ErrHomeServerKey = errors.New("home server has no vault entry")
	// ErrMissingConfig means the live config file does not exist.
	ErrMissingConfig = errors.New("live config not found")
	// ErrMalformedConfig means a required session key is absent.
	ErrMalformedConfig = errors.New("live config is malformed")
	// ErrMissingState means the binary state store does not exist.
	ErrMissingState = errors.New("client state store not found")
	// ErrCorruptState means the state store layout could not be parsed.
	ErrCorruptState = errors.New("client state store is corrupt")
)

// DevServerFlag selects the server the client connects to on start.
const DevServerFlag = "-devserver"

// LaunchArgs returns the server selection arguments. The home server gets
// the bare flag, never an empty value.
func LaunchArgs(server string) []string {
	if server == HomeServer {
		return []string{DevServerFlag}
	}
	return []string{DevServerFlag, server}
}

// Session is the credential set the client is using right now.
type Session struct {
	// Endpoint is the server address, HomeServer for the default server.
	Endpoint string
	// Username is the account name shown by the client.
	Username string
	// Password is opaque and kept in whatever form the client wrote it.
	Password string
}

// IsHome reports whether the session points at the home server.
func (s Session) IsHome() bool {
	return s.Endpoint == HomeServer
}

// VaultEntry holds archived credentials for one non-home server.
type VaultEntry struct {
	// Server is the exact server address used as the lookup key.
	Server   string
	Username string
	Password string
}

// Install describes the files of one client installation.
type Install struct {
	// Dir is the installation directory.
	Dir string
	// ConfigPath is the per-user live config (osu!.<user>.cfg).
	ConfigPath string
	// StatePath is the binary client state store (osu!.db).
	StatePath string
	// Executable is the client binary.
	Executable string
	// VaultPath is the switcher's own credential archive.
	VaultPath string
}

const (
	// ProcessName is the image name of the running client.
	ProcessName = "osu!.exe"
	// VaultFile is the archive file kept next to the client.
	VaultFile = "server-account-switcher.ini"
	// StateFile is the client's binary state store.
	StateFile = "osu!.db"
)

// NewInstall derives the installation layout for the given system user.
func NewInstall(dir, systemUser string) Install {
	return Install{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, "osu!."+systemUser+".cfg"),
		StatePath:  filepath.Join(dir, StateFile),
		Executable: filepath.Join(dir, ProcessName),
		VaultPath:  filepath.Join(dir, VaultFile),
	}
}

// DisplayServer returns a printable name for a server address.
func DisplayServer(server string) string {
	if server == HomeServer {
		return "<bancho>"
	}
	return server
}

// Outcome is the terminal state a switch reached before handing off.
type Outcome string

const (
	// OutcomeFreshInstall means the config or state store was missing.
	OutcomeFreshInstall Outcome = "fresh-install"
	// OutcomeUnchanged means the target was already active.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeSwitched means the session was swapped.
	OutcomeSwitched Outcome = "switched"
	// OutcomeAborted means the swap failed and was stopped.
	OutcomeAborted Outcome = "aborted"
)

// SwitchRequest is the input of one switch invocation.
type SwitchRequest struct {
	Install Install
	// Target is the requested server, HomeServer for the default one.
	Target string
}

// SwitchResult reports what a switch did.
type SwitchResult struct {
	ID      string
	Outcome Outcome
	// Previous is the session found before the switch.
	Previous Session
	// Current is the session left in the live config.
	Current Session
	// Archived is true when the outgoing session went into the vault.
	Archived bool
	// IdentityPatched is true when the cached player name was updated.
	IdentityPatched bool
	// IdentityErr holds the non-fatal identity patch failure, if any.
	IdentityErr error
	// Launched is true when the launcher accepted the start request.
	Launched bool
}
