package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/ServerSwitcher/internal/models"
)

const sampleConfig = `# osu! configuration for "alice"
# last updated on Friday, 16 October 2026

BeatmapDirectory = Songs
Username = alice
Password = p1
CredentialEndpoint =
VolumeUniversal = 60
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLiveConfig_ReadSession(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    models.Session
	}{
		{
			name:    "home server",
			content: sampleConfig,
			want:    models.Session{Endpoint: models.HomeServer, Username: "alice", Password: "p1"},
		},
		{
			name:    "custom server",
			content: "Username = bob\nPassword = p2\nCredentialEndpoint = foo.example\n",
			want:    models.Session{Endpoint: "foo.example", Username: "bob", Password: "p2"},
		},
		{
			name:    "endpoint without value",
			content: "Username = bob\nPassword = p2\nCredentialEndpoint =\n",
			want:    models.Session{Endpoint: models.HomeServer, Username: "bob", Password: "p2"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewLiveConfig(writeFile(t, "osu!.alice.cfg", tc.content))
			got, err := cfg.ReadSession()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLiveConfig_ReadSession_Missing(t *testing.T) {
	cfg := NewLiveConfig(filepath.Join(t.TempDir(), "osu!.alice.cfg"))
	_, err := cfg.ReadSession()
	assert.ErrorIs(t, err, ErrMissingConfig)

	ok, err := cfg.Exists()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLiveConfig_ReadSession_Malformed(t *testing.T) {
	for _, missing := range []string{KeyEndpoint, KeyUsername, KeyPassword} {
		t.Run(missing, func(t *testing.T) {
			var lines []string
			for _, line := range strings.Split(sampleConfig, "\n") {
				if !strings.HasPrefix(line, missing+" ") {
					lines = append(lines, line)
				}
			}
			cfg := NewLiveConfig(writeFile(t, "osu!.alice.cfg", strings.Join(lines, "\n")))
			_, err := cfg.ReadSession()
			require.ErrorIs(t, err, ErrMalformedConfig)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLiveConfig_WriteSession_PreservesOtherKeys(t *testing.T) {
	path := writeFile(t, "osu!.alice.cfg", sampleConfig)
	cfg := NewLiveConfig(path)

	want := models.Session{Endpoint: "foo.example", Username: "bob", Password: "p2"}
	require.NoError(t, cfg.WriteSession(want))

	got, err := cfg.ReadSession()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, "BeatmapDirectory = Songs")
	assert.Contains(t, out, "VolumeUniversal = 60")
	assert.Contains(t, out, "# osu! configuration")
	assert.NotContains(t, out, "[")
	assert.Less(t, strings.Index(out, "BeatmapDirectory"), strings.Index(out, "Username"))
}

func TestLiveConfig_WriteSession_OpaquePassword(t *testing.T) {
	cfg := NewLiveConfig(writeFile(t, "osu!.alice.cfg", sampleConfig))

	want := models.Session{Endpoint: "foo.example", Username: "bob", Password: `p#ss;w=rd\`}
	require.NoError(t, cfg.WriteSession(want))

	got, err := cfg.ReadSession()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLiveConfig_WriteSession_Unrepresentable(t *testing.T) {
	for _, password := range []string{" lead", "trail ", `"""x"""`, "a`b", "two\nlines"} {
		t.Run(password, func(t *testing.T) {
			path := writeFile(t, "osu!.alice.cfg", sampleConfig)
			cfg := NewLiveConfig(path)

			err := cfg.WriteSession(models.Session{Endpoint: "foo.example", Username: "bob", Password: password})
			require.ErrorIs(t, err, ErrUnrepresentable)

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, sampleConfig, string(raw), "config must be untouched")
		})
	}
}

func TestLiveConfig_WriteSession_QuotedPassword(t *testing.T) {
	cfg := NewLiveConfig(writeFile(t, "osu!.alice.cfg", sampleConfig))

	want := models.Session{Endpoint: "foo.example", Username: `"bob"`, Password: `pa"ss`}
	require.NoError(t, cfg.WriteSession(want))

	got, err := cfg.ReadSession()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLiveConfig_WriteSession_Missing(t *testing.T) {
	cfg := NewLiveConfig(filepath.Join(t.TempDir(), "nope", "osu!.alice.cfg"))
	assert.Error(t, cfg.WriteSession(models.Session{Username: "x"}))
}

func TestFileVault_LookupAbsentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), models.VaultFile)
	v := NewFileVault(path)

	got, err := v.Lookup(context.Background(), "foo.example")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "lookup must not create the vault")
}

func TestFileVault_StoreLookup(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), models.VaultFile)
	v := NewFileVault(path)

	require.NoError(t, v.Store(ctx, models.VaultEntry{Server: "foo.example", Username: "bob", Password: "p2"}))
	_, err := os.Stat(path)
	require.NoError(t, err, "store creates the vault")

	got, err := v.Lookup(ctx, "foo.example")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.VaultEntry{Server: "foo.example", Username: "bob", Password: "p2"}, *got)

	miss, err := v.Lookup(ctx, "FOO.example")
	require.NoError(t, err)
	assert.Nil(t, miss, "keys are matched exactly")
}

func TestFileVault_RoundTripsAnyValue(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		verbatim bool
	}{
		{"leading space", " lead", false},
		{"trailing space", "trail ", false},
		{"triple quotes", `"""x"""`, false},
		{"backtick", "a`b", false},
		{"newline", "two\nlines", false},
		{"encoded prefix", "base64:not-really", false},
		{"surrounding quotes", `"quoted"`, true},
		{"comment markers", `p#ss;w=rd\`, true},
		{"empty", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), models.VaultFile)
			v := NewFileVault(path)

			want := models.VaultEntry{Server: "foo.example", Username: tc.value, Password: tc.value}
			require.NoError(t, v.Store(ctx, want))

			got, err := v.Lookup(ctx, "foo.example")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, want, *got)

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			if tc.verbatim {
				assert.NotContains(t, string(raw), encodedPrefix)
			} else {
				assert.Contains(t, string(raw), encodedPrefix)
			}
		})
	}
}

func TestFileVault_BadEncodedValue(t *testing.T) {
	path := writeFile(t, models.VaultFile, "[foo.example]\nUsername = bob\nPassword = base64:!!!\n")

	_, err := NewFileVault(path).Lookup(context.Background(), "foo.example")
	assert.ErrorIs(t, err, ErrMalformedVault)
}

func TestFileVault_StoreOverwrites(t *testing.T) {
	ctx := context.Background()
	v := NewFileVault(filepath.Join(t.TempDir(), models.VaultFile))

	require.NoError(t, v.Store(ctx, models.VaultEntry{Server: "foo.example", Username: "bob", Password: "p2"}))
	require.NoError(t, v.Store(ctx, models.VaultEntry{Server: "bar.example", Username: "carol", Password: "p3"}))
	require.NoError(t, v.Store(ctx, models.VaultEntry{Server: "foo.example", Username: "dave", Password: "p4"}))

	got, err := v.Lookup(ctx, "foo.example")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dave", got.Username)
	assert.Equal(t, "p4", got.Password)

	all, err := v.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.VaultEntry{
		{Server: "bar.example", Username: "carol", Password: "p3"},
		{Server: "foo.example", Username: "dave", Password: "p4"},
	}, all)
}

func TestFileVault_HomeServerNeverStored(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), models.VaultFile)
	v := NewFileVault(path)

	err := v.Store(ctx, models.VaultEntry{Server: models.HomeServer, Username: "alice", Password: "p1"})
	assert.ErrorIs(t, err, models.ErrHomeServerKey)

	got, err := v.Lookup(ctx, models.HomeServer)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileVault_Malformed(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, models.VaultFile,
		"[example]\nUsername = eve\nPassword = p5\n\n[sub.example]\nUsername = frank\n")
	v := NewFileVault(path)

	_, err := v.Lookup(ctx, "sub.example")
	assert.ErrorIs(t, err, ErrMalformedVault)

	_, err = v.List(ctx)
	assert.ErrorIs(t, err, ErrMalformedVault)
}

func TestFileVault_ReadsExistingFile(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, models.VaultFile,
		"[akatsuki.pw]\nUsername = grace\nPassword = p6\n")
	v := NewFileVault(path)

	require.NoError(t, v.Store(ctx, models.VaultEntry{Server: "ripple.moe", Username: "heidi", Password: "p7"}))

	got, err := v.Lookup(ctx, "akatsuki.pw")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "grace", got.Username)
}
