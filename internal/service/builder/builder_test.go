package builder

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireBuildLock(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "linux_x86_64")

	release, err := acquireBuildLock(dir)
	require.NoError(t, err)

	// The marker names this process as the owner.
	contents, err := os.ReadFile(dir + lockSuffix)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(contents))

	// A second acquisition against a live owner is refused.
	_, err = acquireBuildLock(dir)
	require.ErrorIs(t, err, errBuildInProgress)

	release()

	_, err = os.Stat(dir + lockSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestAcquireBuildLock_ReclaimsStaleMarker(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "linux_x86_64")
	require.NoError(t, os.MkdirAll(filepath.Dir(dir), 0o755))

	// A pid far beyond any real process: the owner is dead.
	require.NoError(t, os.WriteFile(dir+lockSuffix, []byte("99999999\n"), 0o644))

	release, err := acquireBuildLock(dir)
	require.NoError(t, err)

	defer release()

	contents, err := os.ReadFile(dir + lockSuffix)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(contents))
}

func TestMakeArgs(t *testing.T) {
	t.Parallel()

	args := makeArgs("/tmp/install")

	require.Contains(t, args, "prefix=/usr/local")
	require.Contains(t, args, "DESTDIR=/tmp/install")
	require.Contains(t, args, "NO_GETTEXT=1")
	require.Contains(t, args, "NO_TCLTK=1")
	require.Contains(t, args, "NO_PERL=1")
	require.Contains(t, args, "NO_PYTHON=1")
	require.Contains(t, args, "INSTALL_SYMLINKS=1")
}

func TestParseSharedLibraries(t *testing.T) {
	t.Parallel()

	output := "/usr/local/bin/git:\n" +
		"\t/usr/lib/libz.1.dylib (compatibility version 1.0.0, current version 1.2.12)\n" +
		"\t/usr/lib/libiconv.2.dylib (compatibility version 7.0.0, current version 7.0.0)\n" +
		"\t/usr/lib/libSystem.B.dylib (compatibility version 1.0.0, current version 1319.100.3)\n"

	require.Equal(t, []string{
		"/usr/lib/libz.1.dylib",
		"/usr/lib/libiconv.2.dylib",
		"/usr/lib/libSystem.B.dylib",
	}, parseSharedLibraries(output))
}

func TestAllowedDarwinLibrary(t *testing.T) {
	t.Parallel()

	require.True(t, allowedDarwinLibrary("/usr/lib/libSystem.B.dylib"))
	require.True(t, allowedDarwinLibrary("/System/Library/Frameworks/CoreFoundation.framework/Versions/A/CoreFoundation"))
	require.False(t, allowedDarwinLibrary("/opt/homebrew/lib/libssl.3.dylib"))
	require.False(t, allowedDarwinLibrary("@rpath/libgit.dylib"))
}

func TestContainerBuildScript(t *testing.T) {
	t.Parallel()

	script := containerBuildScript()

	require.Contains(t, script, "apk add --no-cache")
	require.Contains(t, script, "DESTDIR=/install")
	require.Contains(t, script, `LDFLAGS="-static"`)
	require.Contains(t, script, "install")
}

func TestRun_RejectsWindowsPlatforms(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		Version:   "2.47.1",
		Platform:  "win_amd64",
		OutputDir: t.TempDir(),
	})
	require.ErrorIs(t, err, errWindowsBuild)
}

func TestRun_RejectsUnknownPlatform(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		Version:   "2.47.1",
		Platform:  "linux_mips",
		OutputDir: t.TempDir(),
	})
	require.Error(t, err)
}

func TestVerifyStaticBinary_NotAnELF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "git")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho fake\n"), 0o755))

	require.Error(t, verifyStaticBinary(path))
}
