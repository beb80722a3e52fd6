package shortcut

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

func makeInstall(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "osu!")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, models.ProcessName), []byte("MZ"), 0644))
	return dir
}

func TestDetectInstall(t *testing.T) {
	dir := makeInstall(t)

	got, ok := DetectInstall(filepath.Dir(dir))
	assert.True(t, ok)
	assert.Equal(t, dir, got)

	_, ok = DetectInstall(t.TempDir())
	assert.False(t, ok)

	_, ok = DetectInstall("")
	assert.False(t, ok)
}

func TestPrompter_InstallDir_Detected(t *testing.T) {
	dir := makeInstall(t)
	var out bytes.Buffer

	got, err := NewPrompter(strings.NewReader(""), &out).InstallDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Contains(t, out.String(), "Detected osu! installation")
}

func TestPrompter_InstallDir_AsksUntilValid(t *testing.T) {
	dir := makeInstall(t)
	var out bytes.Buffer
	in := strings.NewReader("/no/such/dir\n" + dir + "\n")

	got, err := NewPrompter(in, &out).InstallDir("")
	require.NoError(t, err)
	assert.Equal(t, dir, got)
	assert.Contains(t, out.String(), "Invalid osu! installation!")
}

func TestPrompter_InstallDir_EOF(t *testing.T) {
	var out bytes.Buffer
	_, err := NewPrompter(strings.NewReader("/no/such/dir\n"), &out).InstallDir("")
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestPrompter_Servers(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("akatsuki.pw\nlocalhost\nakatsuki.pw\nosu.ppy.sh\nripple.moe\n\nignored.after.blank\n")

	got := NewPrompter(in, &out).Servers()
	assert.Equal(t, []string{models.HomeServer, "akatsuki.pw", "ripple.moe"}, got)

	text := out.String()
	assert.Contains(t, text, "Invalid server address!")
	assert.Contains(t, text, "Server already added.")
	assert.Contains(t, text, "Servers: osu.ppy.sh, akatsuki.pw, ripple.moe")
}

func TestValidServer(t *testing.T) {
	assert.True(t, ValidServer("akatsuki.pw"))
	assert.True(t, ValidServer("127.0.0.1:13381"))
	assert.False(t, ValidServer("localhost"))
	assert.False(t, ValidServer("bad host.pw"))
}
