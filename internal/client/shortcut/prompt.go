package shortcut

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

// ErrNoInput means the input ended before a valid answer was given.
var ErrNoInput = errors.New("no more input")

// Prompter asks the first-run setup questions.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(in), out: out}
}

// IsInstallDir reports whether dir holds a client executable.
func IsInstallDir(dir string) bool {
	fi, err := os.Stat(filepath.Join(dir, models.ProcessName))
	return err == nil && !fi.IsDir()
}

// DetectInstall returns the default installation under localAppData when
// it exists.
func DetectInstall(localAppData string) (string, bool) {
	if localAppData == "" {
		return "", false
	}
	dir := filepath.Join(localAppData, "osu!")
	return dir, IsInstallDir(dir)
}

// InstallDir confirms the detected directory, or asks until a directory
// with the client executable is entered.
func (p *Prompter) InstallDir(detected string) (string, error) {
	if detected != "" && IsInstallDir(detected) {
		fmt.Fprintf(p.out, "Detected osu! installation at %s!\n", detected)
		return detected, nil
	}

	fmt.Fprintln(p.out, "Could not detect osu! installation! Please enter your osu! directory path below:")
	for p.scanner.Scan() {
		dir := strings.TrimSpace(p.scanner.Text())
		if !IsInstallDir(dir) {
			fmt.Fprintf(p.out, "Invalid osu! installation! (%s missing)\n", models.ProcessName)
			continue
		}
		return dir, nil
	}
	return "", ErrNoInput
}

// Servers asks for server addresses until an empty line. The home server
// is always the first entry.
func (p *Prompter) Servers() []string {
	servers := []string{models.HomeServer}
	fmt.Fprintln(p.out, "Please enter the server addresses you want to generate shortcuts for!")
	fmt.Fprintln(p.out, "Press enter after each and again to end setup.")
	p.printServers(servers)

	for p.scanner.Scan() {
		server := strings.TrimSpace(p.scanner.Text())
		if server == "" {
			break
		}
		if !ValidServer(server) {
			fmt.Fprintln(p.out, "Invalid server address!")
			continue
		}
		if server == HomeName || contains(servers, server) {
			fmt.Fprintln(p.out, "Server already added.")
			continue
		}
		servers = append(servers, server)
		p.printServers(servers)
	}
	return servers
}

func (p *Prompter) printServers(servers []string) {
	names := make([]string, len(servers))
	for i, s := range servers {
		names[i] = Name(s)
	}
	fmt.Fprintf(p.out, "Servers: %s\n", strings.Join(names, ", "))
}

// ValidServer accepts a dotted address without whitespace.
func ValidServer(server string) bool {
	return strings.Contains(server, ".") && !strings.ContainsAny(server, " \t\"")
}

func contains(slice []string, element string) bool {
	for _, elem := range slice {
		if elem == element {
			return true
		}
	}
	return false
}
