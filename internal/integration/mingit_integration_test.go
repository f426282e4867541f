package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/git-wheelhouse/internal/checksum"
	"github.com/oshokin/git-wheelhouse/internal/config"
	"github.com/oshokin/git-wheelhouse/internal/service/packager"
	"github.com/oshokin/git-wheelhouse/internal/service/verifier"
	"github.com/oshokin/git-wheelhouse/internal/wheel"
)

// buildMinGitZip assembles an in-memory MinGit archive fixture.
func buildMinGitZip(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	entries := map[string][]byte{
		"cmd/git.exe":        []byte("git for windows"),
		"mingw64/bin/sh.exe": []byte("shell"),
		"etc/gitconfig":      []byte("[core]\n"),
		"LICENSE.txt":        []byte("GPLv2 license text"),
	}
	for name, data := range entries {
		entry, err := zw.Create(name)
		require.NoError(t, err)

		_, err = entry.Write(data)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())

	return buf.Bytes()
}

// startGitHubFixture serves the release lookup and asset downloads the
// fetcher performs, counting every request it receives.
func startGitHubFixture(t *testing.T, archive []byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	sum, err := checksum.Bytes(archive)
	require.NoError(t, err)

	var requests atomic.Int64

	mux := http.NewServeMux()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	mux.HandleFunc("/repos/git-for-windows/git/releases/tags/v2.47.1.windows.1",
		func(w http.ResponseWriter, _ *http.Request) {
			release := map[string]any{
				"tag_name": "v2.47.1.windows.1",
				"assets": []map[string]string{
					{
						"name":                 "MinGit-2.47.1-64-bit.zip",
						"browser_download_url": server.URL + "/dl/MinGit-2.47.1-64-bit.zip",
					},
					{
						"name":                 "MinGit-2.47.1-64-bit.zip.sha256",
						"browser_download_url": server.URL + "/dl/MinGit-2.47.1-64-bit.zip.sha256",
					},
				},
			}
			require.NoError(t, json.NewEncoder(w).Encode(release))
		})

	mux.HandleFunc("/dl/MinGit-2.47.1-64-bit.zip", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	})

	mux.HandleFunc("/dl/MinGit-2.47.1-64-bit.zip.sha256", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(checksum.Hex(sum) + "  MinGit-2.47.1-64-bit.zip\n"))
	})

	return server, &requests
}

// TestPackageAndVerify_MinGit packages a Windows wheel end to end:
// release lookup, checksum-verified download, repackaging, verification,
// and the cache hit on the second run.
func TestPackageAndVerify_MinGit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	archive := buildMinGitZip(t)
	server, requests := startGitHubFixture(t, archive)

	cfgPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(cfgPath, &config.Config{
		GitHubAPIURL: server.URL,
	}))

	outDir := t.TempDir()
	cacheDir := t.TempDir()

	options := &packager.Options{
		ConfigPath: cfgPath,
		Version:    "2.47.1",
		Platforms:  []string{"win_amd64"},
		OutputDir:  outDir,
		CacheDir:   cacheDir,
		BuildDate:  "20260118",
	}
	require.NoError(t, packager.Run(ctx, options))

	wheelPath := filepath.Join(outDir, "python_git_bin-2.47.1.20260118-py3-none-win_amd64.whl")
	require.FileExists(t, wheelPath)
	require.NoError(t, verifier.Run(ctx, &verifier.Options{WheelPaths: []string{wheelPath}}))

	// Release lookup, archive, sidecar.
	require.EqualValues(t, 3, requests.Load())

	opened, err := wheel.Open(wheelPath)
	require.NoError(t, err)

	data, err := opened.ReadFile(wheel.GitTreePrefix + "/cmd/git.exe")
	require.NoError(t, err)
	require.Equal(t, []byte("git for windows"), data)

	_, err = opened.ReadFile(opened.DistInfo() + "/licenses/LICENSE.txt")
	require.NoError(t, err)
	require.NoError(t, opened.Close())

	// A second run repackages from the cache without touching upstream.
	require.NoError(t, os.Remove(wheelPath))
	require.NoError(t, packager.Run(ctx, options))
	require.FileExists(t, wheelPath)
	require.EqualValues(t, 3, requests.Load())
}
