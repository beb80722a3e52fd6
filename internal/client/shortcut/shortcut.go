// Package shortcut runs the first-run setup: it finds the client install,
// asks which servers to use and writes one desktop launcher per server.
package shortcut

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

// HomeName is how the home server is shown to the user.
const HomeName = "osu.ppy.sh"

// Name returns the shortcut title for server.
func Name(server string) string {
	if server == models.HomeServer {
		return HomeName
	}
	return server
}

// DesktopDir returns the current user's desktop directory.
func DesktopDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, "Desktop"), nil
}

var fileNameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// Writer creates launcher files that run the switch command.
type Writer struct {
	// DesktopDir receives the launcher files.
	DesktopDir string
	// InstallDir is the client installation passed to --osu.
	InstallDir string
	// Switcher is the path of this executable.
	Switcher string
	// GOOS picks the launcher format: a .cmd script on windows, a
	// .desktop entry elsewhere.
	GOOS string
}

// Path returns where the launcher for server is written.
func (w *Writer) Path(server string) string {
	base := fileNameReplacer.Replace(fmt.Sprintf("osu! (%s)", Name(server)))
	if w.GOOS == "windows" {
		return filepath.Join(w.DesktopDir, base+".cmd")
	}
	return filepath.Join(w.DesktopDir, base+".desktop")
}

// Command returns the switch invocation for server. The home server gets
// no --server flag.
func (w *Writer) Command(server string) string {
	cmd := fmt.Sprintf(`"%s" switch --osu "%s"`, w.Switcher, w.InstallDir)
	if server != models.HomeServer {
		cmd += fmt.Sprintf(` --server "%s"`, server)
	}
	return cmd
}

func (w *Writer) content(server string) string {
	var b strings.Builder
	if w.GOOS == "windows" {
		b.WriteString("@echo off\r\n")
		fmt.Fprintf(&b, "start \"\" %s\r\n", w.Command(server))
		return b.String()
	}
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=osu! (%s)\n", Name(server))
	fmt.Fprintf(&b, "Exec=%s\n", w.Command(server))
	fmt.Fprintf(&b, "Icon=%s\n", filepath.Join(w.InstallDir, "osu!.ico"))
	b.WriteString("Terminal=false\n")
	return b.String()
}

// Write creates or replaces the launcher for server and returns its path.
func (w *Writer) Write(server string) (string, error) {
	if err := os.MkdirAll(w.DesktopDir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", w.DesktopDir, err)
	}
	path := w.Path(server)
	if err := atomic.WriteFile(path, strings.NewReader(w.content(server))); err != nil {
		return "", fmt.Errorf("write shortcut %s: %w", path, err)
	}
	if w.GOOS != "windows" {
		if err := os.Chmod(path, 0755); err != nil {
			return "", fmt.Errorf("chmod %s: %w", path, err)
		}
	}
	return path, nil
}

// WriteAll writes a launcher for each server and returns their paths.
func (w *Writer) WriteAll(servers []string) ([]string, error) {
	paths := make([]string, 0, len(servers))
	for _, s := range servers {
		path, err := w.Write(s)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
