package layout

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/git-wheelhouse/internal/domain/release"
)

var (
	// ErrMissingArtifact is returned when the expected git executable
	// is absent from (or not executable in) an installation tree.
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrUnexpectedLayout is returned when an installation tree does not
	// have the recognized shape.
	ErrUnexpectedLayout = errors.New("unexpected layout")
)

const (
	binDir       = "bin"
	gitCoreDir   = "libexec/git-core"
	templatesDir = "share/git-core/templates"

	// executableBits is the union of the owner/group/other execute bits.
	executableBits = 0o111
)

// prefixCandidates are the directories searched for the install prefix
// inside a raw build tree, in order. `make install` with DESTDIR staging
// places the tree under usr/local or usr depending on the configured prefix.
var prefixCandidates = []string{".", "usr/local", "usr"}

// licenseNames are the filenames recognized as license files at the
// layout root, in lookup order.
var licenseNames = []string{"COPYING", "LICENSE", "LICENSE.txt"}

// Validate checks that dir contains a normalized git layout for the platform:
// the git executable exists with execute permissions and the git-core
// directory is present.
func Validate(dir string, platform release.Platform) error {
	gitPath := filepath.Join(dir, filepath.FromSlash(platform.GitExecutable()))

	info, err := os.Stat(gitPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s not found in %s", ErrMissingArtifact, platform.GitExecutable(), dir)
		}

		return fmt.Errorf("inspect %s: %w", gitPath, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrMissingArtifact, gitPath)
	}

	if info.Mode().Perm()&executableBits == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrMissingArtifact, gitPath)
	}

	coreDir := filepath.Join(dir, filepath.FromSlash(gitCoreDir))

	info, err = os.Stat(coreDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory in %s", ErrUnexpectedLayout, gitCoreDir, dir)
	}

	return nil
}

// Licenses returns the license files present at the layout root,
// in recognition order.
func Licenses(dir string) []string {
	var found []string

	for _, name := range licenseNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			found = append(found, path)
		}
	}

	return found
}

// Normalize reshapes the raw installation tree under src into a normalized
// layout at dst. The install prefix is located automatically, only the
// runtime-necessary subset is copied (bin/, libexec/git-core/, the template
// directory and root license files), file modes and symlinks are preserved,
// and dst is removed first so the result never contains leftovers.
//
// Normalizing an already-normalized tree reproduces it exactly.
func Normalize(src, dst string, platform release.Platform) error {
	prefix, err := findPrefix(src, platform)
	if err != nil {
		return err
	}

	coreDir := filepath.Join(prefix, filepath.FromSlash(gitCoreDir))
	if info, statErr := os.Stat(coreDir); statErr != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory in %s", ErrUnexpectedLayout, gitCoreDir, prefix)
	}

	if err = checkDisjoint(prefix, dst); err != nil {
		return err
	}

	// Clean output directory.
	if err = os.RemoveAll(dst); err != nil {
		return fmt.Errorf("clean output directory: %w", err)
	}

	if err = os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	subtrees := []string{binDir, gitCoreDir, templatesDir}
	for _, subtree := range subtrees {
		from := filepath.Join(prefix, filepath.FromSlash(subtree))
		if _, statErr := os.Stat(from); errors.Is(statErr, os.ErrNotExist) {
			// Only the template directory is optional; bin and git-core
			// were checked above.
			continue
		}

		to := filepath.Join(dst, filepath.FromSlash(subtree))
		if err = copyTree(from, to); err != nil {
			return fmt.Errorf("copy %s: %w", subtree, err)
		}
	}

	for _, license := range Licenses(prefix) {
		target := filepath.Join(dst, filepath.Base(license))
		if err = copyFile(license, target); err != nil {
			return fmt.Errorf("copy license %s: %w", filepath.Base(license), err)
		}
	}

	return nil
}

// findPrefix locates the install prefix inside a raw build tree by probing
// the known candidates for the git executable.
func findPrefix(src string, platform release.Platform) (string, error) {
	exe := filepath.FromSlash(platform.GitExecutable())

	for _, candidate := range prefixCandidates {
		prefix := filepath.Join(src, candidate)

		info, err := os.Stat(filepath.Join(prefix, exe))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		return prefix, nil
	}

	return "", fmt.Errorf("%w: %s not found under %s (searched %s)",
		ErrMissingArtifact, platform.GitExecutable(), src, strings.Join(prefixCandidates, ", "))
}

// checkDisjoint refuses to normalize when dst would destroy the source tree.
func checkDisjoint(prefix, dst string) error {
	absPrefix, err := filepath.Abs(prefix)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}

	absDst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	if absDst == absPrefix || strings.HasPrefix(absPrefix, absDst+string(filepath.Separator)) {
		return fmt.Errorf("output directory %s overlaps source %s", absDst, absPrefix)
	}

	return nil
}

// copyTree copies a directory tree preserving modes and symlinks.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			if err = os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return err
			}

			// MkdirAll is subject to the umask; restore the exact mode.
			return os.Chmod(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, linkErr := os.Readlink(path)
			if linkErr != nil {
				return linkErr
			}

			return os.Symlink(linkTarget, target)
		case info.Mode().IsRegular():
			return copyFile(path, target)
		default:
			// Sockets, devices and other irregular files have no place
			// in an installation tree.
			return fmt.Errorf("%w: %s has unsupported file type %s", ErrUnexpectedLayout, path, info.Mode().Type())
		}
	})
}

// copyFile copies a regular file preserving its permissions.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer in.Close()

	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()

		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	// OpenFile is subject to the umask; restore the exact mode.
	return os.Chmod(dst, info.Mode().Perm())
}
