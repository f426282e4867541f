package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidateFillsDefaults checks that validation fills every unset field.
func TestValidateFillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultOutputDir, cfg.OutputDir)
	require.Equal(t, DefaultGitHubAPIURL, cfg.GitHubAPIURL)
	require.Equal(t, DefaultSourceMirror, cfg.SourceMirror)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultUserAgent, cfg.UserAgent)
	require.Equal(t, DefaultBuildImage, cfg.BuildImage)
	require.NotEmpty(t, cfg.CacheDir)
}

// TestValidateRejectsBadURLs checks URL format validation for endpoints.
func TestValidateRejectsBadURLs(t *testing.T) {
	t.Parallel()

	cfg := &Config{GitHubAPIURL: "not a url"}
	require.Error(t, Validate(cfg))

	cfg = &Config{SourceMirror: "also not a url"}
	require.Error(t, Validate(cfg))
}

// TestLoadMissingDefaultFile ensures binaries run on defaults without a file.
func TestLoadMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultOutputDir, cfg.OutputDir)
}

// TestLoadMissingExplicitFile ensures an explicitly requested file must exist.
func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		OutputDir:    filepath.Join(dir, "wheels"),
		CacheDir:     filepath.Join(dir, "cache"),
		GitHubAPIURL: "https://github.example.com/api/v3",
		SourceMirror: "https://mirror.example.com/git",
		Timeout:      30 * time.Second,
		BuildImage:   "alpine:3.20",
		SourceChecksums: map[string]string{
			"2.47.1": "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03",
		},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OutputDir, loaded.OutputDir)
	require.Equal(t, cfg.GitHubAPIURL, loaded.GitHubAPIURL)
	require.Equal(t, cfg.SourceMirror, loaded.SourceMirror)
	require.Equal(t, cfg.Timeout, loaded.Timeout)
	require.Equal(t, cfg.SourceChecksums, loaded.SourceChecksums)

	// File exists with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestSaveNilConfig rejects a nil configuration.
func TestSaveNilConfig(t *testing.T) {
	t.Parallel()

	require.Error(t, Save(filepath.Join(t.TempDir(), "x.yaml"), nil))
}
