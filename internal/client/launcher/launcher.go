// Package launcher stops a running client and starts it again against a
// selected server.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// DefaultKillWait is how long to wait after a kill for the OS to release
// the client's file handles.
const DefaultKillWait = time.Second

type (
	runFunc   func(ctx context.Context, name string, args ...string) ([]byte, error)
	startFunc func(name string, args ...string) error
)

// Process controls the client through OS commands: taskkill and start on
// Windows, pkill and a direct exec elsewhere.
type Process struct {
	log      *zap.Logger
	killWait time.Duration
	goos     string
	run      runFunc
	start    startFunc
	sleep    func(time.Duration)
}

// New returns a Process for the current OS.
func New(log *zap.Logger, killWait time.Duration) *Process {
	return &Process{
		log:      log,
		killWait: killWait,
		goos:     runtime.GOOS,
		run:      runCommand,
		start:    startDetached,
		sleep:    time.Sleep,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// startDetached starts the client without tying its lifetime to ours.
func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

// TerminateIfRunning kills processName and reports whether it was running.
// After a kill it pauses so the client's files can be rewritten.
func (p *Process) TerminateIfRunning(ctx context.Context, processName string) (bool, error) {
	var (
		out []byte
		err error
	)
	if p.goos == "windows" {
		out, err = p.run(ctx, "taskkill", "/IM", processName)
	} else {
		out, err = p.run(ctx, "pkill", "-x", processName)
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		// no matching process
		return false, nil
	case err != nil:
		return false, fmt.Errorf("terminate %s: %w", processName, err)
	}

	if p.goos == "windows" && !bytes.HasPrefix(out, []byte("SUCCESS")) {
		return false, nil
	}

	p.log.Info("killed running client, restarting", zap.String("process", processName))
	p.sleep(p.killWait)
	return true, nil
}

// Launch starts executable with args. A missing executable is logged and
// the start is still attempted. The start is not bound to ctx, so the client
// outlives a cancelled or finished switch.
func (p *Process) Launch(_ context.Context, executable string, args []string) error {
	if _, err := os.Stat(executable); err != nil {
		p.log.Warn("missing game executable, is this the right directory?", zap.String("path", executable))
	}

	name, cmdArgs := executable, args
	if p.goos == "windows" {
		name = "cmd"
		cmdArgs = append([]string{"/C", "start", "", executable}, args...)
	}

	p.log.Debug("starting client", zap.String("cmd", name), zap.Strings("args", cmdArgs))
	if err := p.start(name, cmdArgs...); err != nil {
		return fmt.Errorf("launch %s: %w", executable, err)
	}
	return nil
}
