package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

var (
	// errUnsafePath is returned when an archive entry would escape the
	// extraction directory.
	errUnsafePath = errors.New("unsafe path in archive")

	// errNoSourceRoot is returned when an extracted tree does not contain
	// exactly one top-level directory.
	errNoSourceRoot = errors.New("no single source root directory")
)

// Magic bytes of the supported compression formats.
var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// ExtractTar unpacks the tar archive at path into dst, creating dst if
// needed. Directories, regular files and symlinks are restored with the
// modes recorded in the archive; other entry types are skipped.
func ExtractTar(path, dst string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	reader, err := decompress(f)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}

	if err = os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}

	tr := tar.NewReader(reader)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := securePath(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("create directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err = writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("write file %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			if err = secureLink(dst, target, hdr.Linkname); err != nil {
				return fmt.Errorf("symlink %s -> %s: %w", hdr.Name, hdr.Linkname, err)
			}

			if err = os.Symlink(hdr.Linkname, target); err != nil && !errors.Is(err, os.ErrExist) {
				return fmt.Errorf("create symlink %s -> %s: %w", hdr.Name, hdr.Linkname, err)
			}
		default:
			// Hard links, devices and the like do not occur in source
			// tarballs; ignore them rather than fail the extraction.
		}
	}
}

// SourceRoot returns the single top-level directory inside dir.
// Source tarballs unpack into one versioned directory (git-2.47.1/);
// anything else fails with a descriptive error.
func SourceRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read extraction directory: %w", err)
	}

	var root string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if root != "" {
			return "", fmt.Errorf("%w: multiple directories under %s", errNoSourceRoot, dir)
		}

		root = filepath.Join(dir, entry.Name())
	}

	if root == "" {
		return "", fmt.Errorf("%w: nothing extracted under %s", errNoSourceRoot, dir)
	}

	return root, nil
}

// decompress wraps r in the decompressor matching its magic bytes.
// Archives without a recognized magic are treated as plain tar.
func decompress(r io.Reader) (io.Reader, error) {
	buffered := bufio.NewReader(r)

	head, err := buffered.Peek(len(magicXZ))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sniff archive: %w", err)
	}

	switch {
	case bytes.HasPrefix(head, magicGzip):
		return gzip.NewReader(buffered)
	case bytes.HasPrefix(head, magicBzip2):
		return bzip2.NewReader(buffered), nil
	case bytes.HasPrefix(head, magicXZ):
		return xz.NewReader(buffered)
	default:
		return buffered, nil
	}
}

// securePath joins an archive entry name onto dst, rejecting names that
// would resolve outside of it.
func securePath(dst, name string) (string, error) {
	target := filepath.Join(dst, filepath.FromSlash(name))
	if target != dst && !strings.HasPrefix(target, dst+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}

	return target, nil
}

// secureLink rejects symlink targets that resolve outside dst. With
// every link confined to dst, later entries cannot write through a
// link to escape the extraction directory.
func secureLink(dst, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("%w: absolute link target %s", errUnsafePath, linkname)
	}

	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	if resolved != dst && !strings.HasPrefix(resolved, dst+string(filepath.Separator)) {
		return fmt.Errorf("%w: link target %s", errUnsafePath, linkname)
	}

	return nil
}

// writeEntry writes one regular file from the tar stream.
func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, r); err != nil {
		out.Close()

		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	// OpenFile is subject to the umask; restore the exact mode.
	return os.Chmod(target, mode)
}
