package packager

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/git-wheelhouse/internal/wheel"
)

// contentSource yields the git tree members and license texts of one
// packaging input.
type contentSource interface {
	// addTo archives the git tree under python_git_bin/git/.
	addTo(ctx context.Context, w *wheel.Writer) error
	// licenseFiles returns the license texts found in the input.
	licenseFiles() []licenseFile
	// Close releases the input.
	Close()
}

// licenseFile is one license text, loaded lazily at emission time.
type licenseFile struct {
	name string
	read func() ([]byte, error)
}

// layoutSource packages a normalized binary layout from the filesystem.
type layoutSource struct {
	root     string
	licenses []string
}

func (s *layoutSource) Close() {}

func (s *layoutSource) licenseFiles() []licenseFile {
	files := make([]licenseFile, 0, len(s.licenses))

	for _, path := range s.licenses {
		files = append(files, licenseFile{
			name: filepath.Base(path),
			read: func() ([]byte, error) { return os.ReadFile(path) },
		})
	}

	return files
}

// addTo walks the layout in lexical order, so identical inputs produce
// identical member ordering.
//
// Symlink policy: links pointing at "git" are dropped because git
// dispatches subcommands on argv[0]; links to any other target become
// executable Python shims that exec the target next to themselves.
// Files under bin/ and libexec/ are forced executable even when the
// source tree lost the bits in transit.
func (s *layoutSource) addTo(_ context.Context, w *wheel.Writer) error {
	return filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		relSlash := filepath.ToSlash(rel)
		archiveName := wheel.GitTreePrefix + "/" + relSlash

		if info.Mode()&os.ModeSymlink != 0 {
			target, linkErr := os.Readlink(path)
			if linkErr != nil {
				return linkErr
			}

			if target == "git" {
				return nil
			}

			return w.Add(archiveName, 0o755, wheel.ShimScript(target))
		}

		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s has unsupported file type %s", path, info.Mode().Type())
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		mode := info.Mode().Perm()
		if strings.HasPrefix(relSlash, "bin/") || strings.HasPrefix(relSlash, "libexec/") {
			mode = 0o755
		}

		return w.Add(archiveName, mode, data)
	})
}

// minGitLicenseNames are the archive root entries recognized as license
// texts; MinGit distributions carry LICENSE.txt.
var minGitLicenseNames = map[string]struct{}{
	"LICENSE.txt": {},
	"LICENSE":     {},
	"COPYING":     {},
}

// minGitSource repackages a MinGit zip archive.
type minGitSource struct {
	reader   *zip.ReadCloser
	licenses []*zip.File
}

func newMinGitSource(path string) (*minGitSource, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open MinGit archive: %w", err)
	}

	source := &minGitSource{reader: reader}

	for _, entry := range reader.File {
		if _, ok := minGitLicenseNames[entry.Name]; ok {
			source.licenses = append(source.licenses, entry)
		}
	}

	return source, nil
}

func (s *minGitSource) Close() {
	_ = s.reader.Close()
}

func (s *minGitSource) licenseFiles() []licenseFile {
	files := make([]licenseFile, 0, len(s.licenses))

	for _, entry := range s.licenses {
		files = append(files, licenseFile{
			name: entry.Name,
			read: func() ([]byte, error) { return readZipEntry(entry) },
		})
	}

	return files
}

// addTo archives the MinGit tree in archive order. Entries without a
// recorded permission default to 0755 for executables and 0644
// otherwise, mirroring how the archives extract on Windows.
func (s *minGitSource) addTo(_ context.Context, w *wheel.Writer) error {
	for _, entry := range s.reader.File {
		if strings.HasSuffix(entry.Name, "/") {
			continue
		}

		data, err := readZipEntry(entry)
		if err != nil {
			return err
		}

		mode := entry.Mode().Perm()
		if mode == 0 {
			if strings.HasSuffix(entry.Name, ".exe") {
				mode = fs.FileMode(0o755)
			} else {
				mode = fs.FileMode(0o644)
			}
		}

		if err = w.Add(wheel.GitTreePrefix+"/"+entry.Name, mode, data); err != nil {
			return err
		}
	}

	return nil
}

// readZipEntry loads one archive member into memory.
func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open archive member %s: %w", entry.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read archive member %s: %w", entry.Name, err)
	}

	return data, nil
}
