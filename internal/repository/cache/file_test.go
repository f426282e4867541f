package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/git-wheelhouse/internal/checksum"
)

func TestFileRepository_StoreAndResolve(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())
	ctx := context.Background()

	data := []byte("archive contents")
	sum, err := checksum.Bytes(data)
	require.NoError(t, err)

	stored, err := repo.Store(ctx, "2.47.1", "win_amd64", "MinGit-2.47.1-64-bit.zip", data, sum)
	require.NoError(t, err)

	resolved, err := repo.Resolve(ctx, "2.47.1", "win_amd64", "MinGit-2.47.1-64-bit.zip")
	require.NoError(t, err)
	require.Equal(t, stored, resolved)

	contents, err := os.ReadFile(resolved)
	require.NoError(t, err)
	require.Equal(t, data, contents)

	// Keys are disjoint per platform.
	_, err = repo.Resolve(ctx, "2.47.1", "win32", "MinGit-2.47.1-64-bit.zip")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileRepository_Resolve_Missing(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())

	_, err := repo.Resolve(context.Background(), "2.47.1", "source", "git-2.47.1.tar.xz")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileRepository_Store_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())

	wrong, err := checksum.Bytes([]byte("something else"))
	require.NoError(t, err)

	_, err = repo.Store(context.Background(), "2.47.1", "win32", "MinGit.zip", []byte("archive"), wrong)
	require.Error(t, err)
}

func TestFileRepository_Resolve_CorruptedEntry(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())
	ctx := context.Background()

	data := []byte("archive contents")
	sum, err := checksum.Bytes(data)
	require.NoError(t, err)

	stored, err := repo.Store(ctx, "2.47.1", "win_amd64", "MinGit.zip", data, sum)
	require.NoError(t, err)

	// Flip the entry on disk behind the repository's back.
	require.NoError(t, os.WriteFile(stored, []byte("corrupted"), 0o644))

	_, err = repo.Resolve(ctx, "2.47.1", "win_amd64", "MinGit.zip")
	require.ErrorIs(t, err, ErrNotFound)

	// The corrupted entry and its sidecar are gone.
	_, err = os.Stat(stored)
	require.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(stored + sidecarSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileRepository_Store_Unverified(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())
	ctx := context.Background()

	stored, err := repo.Store(ctx, "2.47.1", "source", "git-2.47.1.tar.xz", []byte("tarball"), nil)
	require.NoError(t, err)

	// No sidecar is written without a checksum.
	_, err = os.Stat(stored + sidecarSuffix)
	require.ErrorIs(t, err, os.ErrNotExist)

	resolved, err := repo.Resolve(ctx, "2.47.1", "source", "git-2.47.1.tar.xz")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean(stored), filepath.Clean(resolved))
}
