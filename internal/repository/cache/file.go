package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/git-wheelhouse/internal/checksum"
)

// Repository defines persistence operations for downloaded archives.
type Repository interface {
	Resolve(ctx context.Context, version, platform, filename string) (string, error)
	Store(ctx context.Context, version, platform, filename string, data, sum []byte) (string, error)
}

// FileRepository is a directory-backed Repository.
// The mutex serializes writers within one process; cross-process
// coordination is not provided, concurrent builds are expected to use
// disjoint keys.
type FileRepository struct {
	// root is the cache directory.
	root string
	// mu protects concurrent access to cache entries.
	mu sync.Mutex
}

const (
	// sidecarSuffix is appended to an entry's path to store its hex digest.
	sidecarSuffix = ".sha256"

	// entryMode is the permission of stored archives.
	entryMode os.FileMode = 0o644
)

// ErrNotFound is returned when no usable cache entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// NewFileRepository creates a repository rooted at the provided directory.
func NewFileRepository(root string) *FileRepository {
	return &FileRepository{
		root: filepath.Clean(root),
	}
}

// Resolve returns the path of the cached entry for the key.
// When a digest sidecar is present, the entry is re-verified against it;
// a corrupted entry is removed and reported as ErrNotFound so the caller
// re-downloads.
func (r *FileRepository) Resolve(_ context.Context, version, platform, filename string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.entryPath(version, platform, filename)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("inspect cache entry: %w", err)
	}

	sidecar, err := os.ReadFile(path + sidecarSuffix)
	if errors.Is(err, os.ErrNotExist) {
		// Entry stored without verification; nothing to re-check.
		return path, nil
	}

	if err != nil {
		return "", fmt.Errorf("read cache digest: %w", err)
	}

	expected, err := checksum.ParseHex(string(sidecar))
	if err != nil {
		return "", fmt.Errorf("parse cache digest: %w", err)
	}

	actual, err := checksum.File(path)
	if err != nil {
		return "", fmt.Errorf("verify cache entry: %w", err)
	}

	if !bytes.Equal(actual, expected) {
		_ = os.Remove(path)
		_ = os.Remove(path + sidecarSuffix)

		return "", ErrNotFound
	}

	return path, nil
}

// Store writes an entry for the key atomically. When sum is provided the
// data is verified against it before the entry replaces any previous one,
// and the digest sidecar is written alongside.
func (r *FileRepository) Store(_ context.Context, version, platform, filename string, data, sum []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := r.entryPath(version, platform, filename)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: entryMode,
		Checksum:   sum,
		Hash:       checksum.Function,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return "", fmt.Errorf("store cache entry: %w", err)
	}

	// Apply keeps the replaced entry as .old; discard it.
	if _, err := os.Stat(path + ".old"); err == nil {
		_ = os.Remove(path + ".old")
	}

	if sum == nil {
		// A stale sidecar from a previous verified entry would fail the
		// next Resolve against the new contents.
		_ = os.Remove(path + sidecarSuffix)

		return path, nil
	}

	digest := checksum.Hex(sum) + "  " + filename + "\n"
	if err := os.WriteFile(path+sidecarSuffix, []byte(digest), entryMode); err != nil {
		return "", fmt.Errorf("write cache digest: %w", err)
	}

	return path, nil
}

// entryPath renders the on-disk location for a key.
func (r *FileRepository) entryPath(version, platform, filename string) string {
	return filepath.Join(r.root, version, platform, filename)
}
