// Package main is the switcher CLI: it swaps osu! server accounts before
// starting the client and writes per-server desktop shortcuts.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/atinyakov/ServerSwitcher/internal/client/launcher"
	"github.com/atinyakov/ServerSwitcher/internal/client/shortcut"
	"github.com/atinyakov/ServerSwitcher/internal/client/statedb"
	"github.com/atinyakov/ServerSwitcher/internal/client/storage"
	"github.com/atinyakov/ServerSwitcher/internal/config"
	"github.com/atinyakov/ServerSwitcher/internal/db"
	"github.com/atinyakov/ServerSwitcher/internal/logger"
	"github.com/atinyakov/ServerSwitcher/internal/models"
	"github.com/atinyakov/ServerSwitcher/internal/repository"
	"github.com/atinyakov/ServerSwitcher/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// app carries the parsed options and the process environment of one run.
type app struct {
	opts   *config.Options
	stdin  io.Reader
	stdout io.Writer
	log    *zap.Logger
	// setupErr is a configuration failure deferred to switch, which still
	// has to start the game.
	setupErr error

	goos         string
	systemUser   func() (string, error)
	localAppData func() string
	desktopDir   func() (string, error)
	executable   func() (string, error)
	newLauncher  func(log *zap.Logger, killWait time.Duration) service.Launcher
}

func newApp(stdin io.Reader, stdout io.Writer) *app {
	return &app{
		opts:         config.Default(),
		stdin:        stdin,
		stdout:       stdout,
		log:          zap.NewNop(),
		goos:         runtime.GOOS,
		systemUser:   config.SystemUser,
		localAppData: func() string { return os.Getenv("LOCALAPPDATA") },
		desktopDir:   shortcut.DesktopDir,
		executable:   os.Executable,
		newLauncher: func(log *zap.Logger, killWait time.Duration) service.Launcher {
			return launcher.New(log, killWait)
		},
	}
}

// orString returns the first non-empty value, like cmp.Or (Go 1.22+).
func orString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "switcher",
		Short:         "osu! server account switcher",
		Long:          "switcher keeps one account per osu! server and swaps them in before the game starts.",
		Version:       orString(version, "N/A"),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := a.setup(cmd)
			if err != nil && cmd.Name() == "switch" {
				a.setupErr = err
				return nil
			}
			return err
		},
		RunE: a.runConfigure,
	}
	root.SetVersionTemplate("Build version: {{.Version}}\nBuild date: " + orString(buildDate, "N/A") + "\n")
	a.opts.BindFlags(root.PersistentFlags())

	switchCmd := &cobra.Command{
		Use:   "switch --osu <dir> [--server <address>]",
		Short: "Switch to a server account and start the game",
		Args:  cobra.NoArgs,
		RunE:  a.runSwitch,
	}
	switchCmd.Flags().StringVar(&a.opts.OsuDir, "osu", a.opts.OsuDir, "osu! game directory path")
	switchCmd.Flags().StringVar(&a.opts.Server, "server", a.opts.Server, "target server address, omit for the official server")

	configureCmd := &cobra.Command{
		Use:   "configure",
		Short: "Create desktop shortcuts for servers",
		Args:  cobra.NoArgs,
		RunE:  a.runConfigure,
	}
	configureCmd.Flags().StringVar(&a.opts.OsuDir, "osu", a.opts.OsuDir, "osu! game directory path, detected when omitted")

	serversCmd := &cobra.Command{
		Use:   "servers --osu <dir>",
		Short: "List servers with a saved account",
		Args:  cobra.NoArgs,
		RunE:  a.runServers,
	}
	serversCmd.Flags().StringVar(&a.opts.OsuDir, "osu", a.opts.OsuDir, "osu! game directory path")

	root.AddCommand(switchCmd, configureCmd, serversCmd)
	return root
}

// setup loads the configuration and starts logging. Logging falls back to
// info when the configured level is unusable, so failures are still logged.
func (a *app) setup(cmd *cobra.Command) error {
	loadErr := a.opts.Load(cmd.Flags())
	l := logger.New()
	logErr := l.Init(a.opts.LogLevel)
	if logErr != nil {
		_ = l.Init("info")
	}
	a.log = l.Log
	return errors.Join(loadErr, logErr)
}

// install resolves the file layout for the current system user.
func (a *app) install() (models.Install, string, error) {
	if a.opts.OsuDir == "" {
		return models.Install{}, "", errors.New("missing --osu directory")
	}
	user, err := a.systemUser()
	if err != nil {
		return models.Install{}, "", err
	}
	return a.opts.Install(user), user, nil
}

// openVault returns the configured vault and a function releasing it.
func (a *app) openVault(in models.Install) (service.Vault, func(), error) {
	source := a.opts.VaultSource(in)
	if !db.IsSQL(a.opts.VaultDriver) {
		return storage.NewFileVault(source), func() {}, nil
	}
	conn, err := db.InitVault(a.opts.VaultDriver, source)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := conn.Close(); err != nil {
			a.log.Warn("failed to close vault database", zap.Error(err))
		}
	}
	return repository.NewSQLVault(conn, a.opts.VaultDriver), closeFn, nil
}

func (a *app) runSwitch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	in, user, err := a.install()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Using %s as the target osu directory!\n", in.Dir)
	fmt.Fprintf(a.stdout, "Switching to %s!\n", models.DisplayServer(a.opts.Server))
	fmt.Fprintf(a.stdout, "Running for user %s\n", user)

	l := a.newLauncher(a.log, a.opts.KillWait)
	if a.setupErr != nil {
		fmt.Fprintln(a.stdout, "Could not load the configuration, launching the game normally...")
		return a.launchPlain(ctx, l, in, fmt.Errorf("%w: configuration: %w", service.ErrSwapAborted, a.setupErr))
	}
	vault, closeVault, err := a.openVault(in)
	if err != nil {
		fmt.Fprintln(a.stdout, "Could not open the account vault, launching the game normally...")
		return a.launchPlain(ctx, l, in, fmt.Errorf("%w: open vault: %w", service.ErrSwapAborted, err))
	}
	defer closeVault()

	svc := service.NewSwitchService(
		storage.NewLiveConfig(in.ConfigPath),
		vault,
		statedb.NewPatcher(in.StatePath),
		l,
		a.log,
	)
	res, err := svc.Switch(ctx, models.SwitchRequest{Install: in, Target: a.opts.Server})
	a.report(in, res)
	return err
}

// launchPlain starts the game on the requested server without touching any
// account and returns cause joined with the launch error.
func (a *app) launchPlain(ctx context.Context, l service.Launcher, in models.Install, cause error) error {
	a.log.Error("switch skipped", zap.String("driver", a.opts.VaultDriver), zap.Error(cause))
	launchErr := l.Launch(ctx, in.Executable, models.LaunchArgs(a.opts.Server))
	if launchErr != nil {
		a.log.Error("failed to launch client", zap.Error(launchErr))
	}
	return errors.Join(cause, launchErr)
}

func (a *app) report(in models.Install, res *models.SwitchResult) {
	if res == nil {
		return
	}
	switch res.Outcome {
	case models.OutcomeFreshInstall:
		fmt.Fprintf(a.stdout, "Missing %s or %s, launching the game normally...\n", models.StateFile, filepath.Base(in.ConfigPath))
	case models.OutcomeUnchanged:
		fmt.Fprintf(a.stdout, "Already on %s, launching the game...\n", models.DisplayServer(res.Current.Endpoint))
	case models.OutcomeSwitched:
		if res.Current.Username == "" {
			fmt.Fprintf(a.stdout, "No saved account for %s, log in once and it will be remembered.\n", models.DisplayServer(res.Current.Endpoint))
		} else {
			fmt.Fprintf(a.stdout, "Switched to %s as %s.\n", models.DisplayServer(res.Current.Endpoint), res.Current.Username)
		}
		if res.IdentityErr != nil {
			fmt.Fprintln(a.stdout, "Could not update the cached player name, the game may show the previous one until you log in.")
		}
	case models.OutcomeAborted:
		fmt.Fprintln(a.stdout, "Switch failed, launching the game normally...")
	}
}

func (a *app) runConfigure(_ *cobra.Command, _ []string) error {
	fmt.Fprintln(a.stdout, "This executable will have to remain intact in order for the shortcuts to work!")
	fmt.Fprintln(a.stdout, "Please ensure its in a permanent spot. (CTRL+C now if you need to)")
	fmt.Fprintln(a.stdout)

	p := shortcut.NewPrompter(a.stdin, a.stdout)
	detected := a.opts.OsuDir
	if detected == "" {
		detected, _ = shortcut.DetectInstall(a.localAppData())
	}
	dir, err := p.InstallDir(detected)
	if err != nil {
		return fmt.Errorf("osu! directory: %w", err)
	}
	servers := p.Servers()

	desktop, err := a.desktopDir()
	if err != nil {
		return err
	}
	self, err := a.executable()
	if err != nil {
		return fmt.Errorf("locate switcher executable: %w", err)
	}

	w := &shortcut.Writer{DesktopDir: desktop, InstallDir: dir, Switcher: self, GOOS: a.goos}
	paths, err := w.WriteAll(servers)
	for _, path := range paths {
		fmt.Fprintf(a.stdout, "Created shortcut %s\n", path)
	}
	if err != nil {
		return err
	}
	a.log.Info("shortcuts written", zap.Int("count", len(paths)), zap.String("desktop", desktop))
	return nil
}

func (a *app) runServers(cmd *cobra.Command, _ []string) error {
	in, _, err := a.install()
	if err != nil {
		return err
	}
	vault, closeVault, err := a.openVault(in)
	if err != nil {
		return err
	}
	defer closeVault()

	entries, err := vault.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No saved accounts.")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVER\tUSERNAME")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", e.Server, e.Username)
	}
	return tw.Flush()
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout)
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	_ = a.log.Sync()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
