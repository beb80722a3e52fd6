// Package config provides functionality for managing configuration options
// for the switcher using command-line flags, a JSON config file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/atinyakov/ServerSwitcher/internal/client/launcher"
	"github.com/atinyakov/ServerSwitcher/internal/db"
	"github.com/atinyakov/ServerSwitcher/internal/models"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SWITCHER_"

// SQLiteVaultFile is the default sqlite vault kept next to the client.
const SQLiteVaultFile = "server-account-switcher.sqlite"

// Options holds the configuration values for the switcher.
type Options struct {
	// OsuDir is the client installation directory.
	OsuDir string `json:"osu_dir" env:"OSU_DIR"`

	// Server is the target server of a switch. Empty means the home server.
	Server string `json:"-"`

	// VaultDriver selects the vault backend: ini, sqlite or postgres.
	VaultDriver string `json:"vault_driver" env:"VAULT_DRIVER"`

	// VaultDSN is the connection string of a SQL vault.
	VaultDSN string `json:"vault_dsn" env:"VAULT_DSN"`

	// LogLevel is the minimum zap level written to stderr.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// KillWait is the pause after the running client was terminated.
	KillWait time.Duration `json:"-" env:"KILL_WAIT"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`
}

// fileOptions is the JSON form of Options. Durations are strings.
type fileOptions struct {
	OsuDir      string `json:"osu_dir"`
	VaultDriver string `json:"vault_driver"`
	VaultDSN    string `json:"vault_dsn"`
	LogLevel    string `json:"log_level"`
	KillWait    string `json:"kill_wait"`
}

// Default returns the options used when nothing else is configured.
func Default() *Options {
	return &Options{
		VaultDriver: db.DriverINI,
		LogLevel:    "info",
		KillWait:    launcher.DefaultKillWait,
	}
}

// BindFlags registers the flags shared by every command.
func (o *Options) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.VaultDriver, "vault-driver", o.VaultDriver, "vault backend: ini | sqlite | postgres")
	fs.StringVar(&o.VaultDSN, "vault-dsn", o.VaultDSN, "SQL vault connection string")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level: debug | info | warn | error")
	fs.DurationVar(&o.KillWait, "kill-wait", o.KillWait, "pause after stopping a running client")
	fs.StringVarP(&o.Config, "config", "c", o.Config, "path to config file")
}

// Load applies the config file and the environment on top of the flag
// defaults. Flags set on the command line win over both, also when Load
// returns an error.
func (o *Options) Load(fs *pflag.FlagSet) error {
	explicit := map[string]string{}
	if fs != nil {
		fs.Visit(func(f *pflag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
	}

	err := o.loadSources(explicit)
	for name, value := range explicit {
		if setErr := fs.Set(name, value); setErr != nil && err == nil {
			err = fmt.Errorf("reapply --%s: %w", name, setErr)
		}
	}
	if err != nil {
		return err
	}
	return o.Validate()
}

func (o *Options) loadSources(explicit map[string]string) error {
	if configPath := os.Getenv(EnvPrefix + "CONFIG"); configPath != "" {
		if _, set := explicit["config"]; !set {
			o.Config = configPath
		}
	}
	if o.Config != "" {
		if err := o.loadFile(o.Config); err != nil {
			return err
		}
	}

	if err := env.ParseWithOptions(o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

func (o *Options) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	var fo fileOptions
	if err := json.Unmarshal(data, &fo); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	if fo.OsuDir != "" {
		o.OsuDir = fo.OsuDir
	}
	if fo.VaultDriver != "" {
		o.VaultDriver = fo.VaultDriver
	}
	if fo.VaultDSN != "" {
		o.VaultDSN = fo.VaultDSN
	}
	if fo.LogLevel != "" {
		o.LogLevel = fo.LogLevel
	}
	if fo.KillWait != "" {
		d, err := time.ParseDuration(fo.KillWait)
		if err != nil {
			return fmt.Errorf("error while parsing config file: kill_wait: %w", err)
		}
		o.KillWait = d
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (o *Options) Validate() error {
	switch o.VaultDriver {
	case db.DriverINI, db.DriverSQLite, db.DriverPostgres:
	default:
		return fmt.Errorf("unknown vault driver %q", o.VaultDriver)
	}
	if o.VaultDriver == db.DriverPostgres && o.VaultDSN == "" {
		return errors.New("postgres vault needs a DSN")
	}
	if o.KillWait < 0 {
		return fmt.Errorf("negative kill wait %s", o.KillWait)
	}
	return nil
}

// Install returns the file layout of the configured installation.
func (o *Options) Install(systemUser string) models.Install {
	return models.NewInstall(o.OsuDir, systemUser)
}

// VaultSource returns what the vault backend should open: the vault file
// for ini, the DSN for SQL drivers. A sqlite vault without a DSN lives next
// to the client.
func (o *Options) VaultSource(in models.Install) string {
	switch {
	case o.VaultDriver == db.DriverINI:
		return in.VaultPath
	case o.VaultDSN != "":
		return o.VaultDSN
	default:
		return filepath.Join(in.Dir, SQLiteVaultFile)
	}
}

// SystemUser returns the name of the OS account without any domain part.
// The client names its config file after it.
func SystemUser() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("current user: %w", err)
	}
	return StripDomain(u.Username), nil
}

// StripDomain removes a DOMAIN\ prefix from a Windows account name.
func StripDomain(name string) string {
	if i := strings.LastIndexByte(name, '\\'); i >= 0 {
		return name[i+1:]
	}
	return name
}
