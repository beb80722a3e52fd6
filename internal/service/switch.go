// Package service implements the credential switch: it swaps the live
// session for the stored credentials of another server, archives the
// outgoing ones and hands the client off to the launcher.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

// ErrSwapAborted wraps any failure that stopped the credential swap.
var ErrSwapAborted = errors.New("switch aborted")

// SessionStore reads and writes the live session of the client.
type SessionStore interface {
	// ReadSession returns models.ErrMissingConfig when there is no config
	// and models.ErrMalformedConfig when a session key is absent.
	ReadSession() (models.Session, error)
	// WriteSession replaces the session keys and keeps all other settings.
	WriteSession(s models.Session) error
}

// Vault archives credentials of servers that are not currently active.
type Vault interface {
	// Lookup returns nil without error for a server never archived.
	Lookup(ctx context.Context, server string) (*models.VaultEntry, error)
	// Store inserts or overwrites the entry for its server.
	Store(ctx context.Context, e models.VaultEntry) error
	// List returns all entries ordered by server.
	List(ctx context.Context) ([]models.VaultEntry, error)
}

// IdentityPatcher keeps the cached player name of the client in sync.
type IdentityPatcher interface {
	// Available reports whether the state store exists.
	Available() bool
	// SetPlayerName returns models.ErrCorruptState when the store cannot
	// be parsed.
	SetPlayerName(name string) error
}

// Launcher stops and starts the client process.
type Launcher interface {
	TerminateIfRunning(ctx context.Context, processName string) (bool, error)
	Launch(ctx context.Context, executable string, args []string) error
}

// SwitchService performs one account switch per call.
type SwitchService struct {
	sessions SessionStore
	vault    Vault
	identity IdentityPatcher
	launcher Launcher
	log      *zap.Logger
	newID    func() string
}

// NewSwitchService constructs a SwitchService from its collaborators.
func NewSwitchService(sessions SessionStore, vault Vault, identity IdentityPatcher, launcher Launcher, log *zap.Logger) *SwitchService {
	return &SwitchService{
		sessions: sessions,
		vault:    vault,
		identity: identity,
		launcher: launcher,
		log:      log,
		newID:    uuid.NewString,
	}
}

// Switch makes req.Target the active server and starts the client.
//
// The client is always launched, whatever happened to the swap. The
// returned error wraps ErrSwapAborted when the swap stopped, joined with
// the launch error if the start failed too. A failed identity patch is not
// an error; it is reported in SwitchResult.IdentityErr.
func (s *SwitchService) Switch(ctx context.Context, req models.SwitchRequest) (*models.SwitchResult, error) {
	res := &models.SwitchResult{ID: s.newID()}
	log := s.log.With(
		zap.String("switch_id", res.ID),
		zap.String("target", models.DisplayServer(req.Target)),
	)
	log.Info("switching server", zap.String("install", req.Install.Dir))

	// The client rewrites its config on exit, so it has to be gone
	// before the session is touched.
	if _, err := s.launcher.TerminateIfRunning(ctx, models.ProcessName); err != nil {
		log.Warn("could not stop running client", zap.Error(err))
	}

	swapErr := s.swap(ctx, req, res, log)
	if swapErr != nil {
		res.Outcome = models.OutcomeAborted
		log.Error("switch aborted, launching the game normally", zap.Error(swapErr))
	}

	launchErr := s.launcher.Launch(ctx, req.Install.Executable, models.LaunchArgs(req.Target))
	if launchErr != nil {
		log.Error("failed to launch client", zap.Error(launchErr))
	} else {
		res.Launched = true
	}

	return res, errors.Join(swapErr, launchErr)
}

func (s *SwitchService) swap(ctx context.Context, req models.SwitchRequest, res *models.SwitchResult, log *zap.Logger) error {
	if !s.identity.Available() {
		log.Info("missing client state store, nothing to switch")
		res.Outcome = models.OutcomeFreshInstall
		return nil
	}

	current, err := s.sessions.ReadSession()
	if errors.Is(err, models.ErrMissingConfig) {
		log.Info("missing live config, nothing to switch")
		res.Outcome = models.OutcomeFreshInstall
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read session: %w", ErrSwapAborted, err)
	}
	res.Previous = current
	res.Current = current

	if req.Target == current.Endpoint {
		log.Info("target server already active")
		res.Outcome = models.OutcomeUnchanged
		return nil
	}

	entry, err := s.vault.Lookup(ctx, req.Target)
	if err != nil {
		return fmt.Errorf("%w: lookup %s: %w", ErrSwapAborted, models.DisplayServer(req.Target), err)
	}
	next := models.Session{Endpoint: req.Target}
	if entry != nil {
		next.Username = entry.Username
		next.Password = entry.Password
	} else {
		log.Info("no stored account for server, the client will ask for credentials")
	}

	// Archive before overwriting so the outgoing account survives a
	// failed write. The home server is never archived.
	if !current.IsHome() {
		err := s.vault.Store(ctx, models.VaultEntry{
			Server:   current.Endpoint,
			Username: current.Username,
			Password: current.Password,
		})
		if err != nil {
			return fmt.Errorf("%w: archive %s: %w", ErrSwapAborted, current.Endpoint, err)
		}
		res.Archived = true
	}

	if err := s.sessions.WriteSession(next); err != nil {
		return fmt.Errorf("%w: write session: %w", ErrSwapAborted, err)
	}
	res.Current = next
	res.Outcome = models.OutcomeSwitched
	log.Info("session swapped",
		zap.String("from", models.DisplayServer(current.Endpoint)),
		zap.String("username", next.Username),
		zap.Bool("archived", res.Archived),
	)

	if err := s.identity.SetPlayerName(next.Username); err != nil {
		res.IdentityErr = err
		if errors.Is(err, models.ErrCorruptState) {
			log.Warn("corrupted client state store, player name not updated", zap.Error(err))
		} else {
			log.Warn("could not update player name", zap.Error(err))
		}
		return nil
	}
	res.IdentityPatched = true
	return nil
}
