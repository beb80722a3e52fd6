package models

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInstall(t *testing.T) {
	dir := filepath.Join("games", "osu!")
	in := NewInstall(dir, "alice")

	assert.Equal(t, Install{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, "osu!.alice.cfg"),
		StatePath:  filepath.Join(dir, "osu!.db"),
		Executable: filepath.Join(dir, "osu!.exe"),
		VaultPath:  filepath.Join(dir, "server-account-switcher.ini"),
	}, in)
}

func TestLaunchArgs(t *testing.T) {
	assert.Equal(t, []string{"-devserver", "akatsuki.pw"}, LaunchArgs("akatsuki.pw"))
	assert.Equal(t, []string{"-devserver"}, LaunchArgs(HomeServer))
}

func TestSession_IsHome(t *testing.T) {
	assert.True(t, Session{Username: "alice"}.IsHome())
	assert.False(t, Session{Endpoint: "foo.example"}.IsHome())
	assert.Equal(t, "<bancho>", DisplayServer(HomeServer))
	assert.Equal(t, "foo.example", DisplayServer("foo.example"))
}
