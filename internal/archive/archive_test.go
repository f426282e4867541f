package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

// writeFixtureTar produces a small source-style tarball, optionally
// compressed through the provided wrapper.
func writeFixtureTar(t *testing.T, path string, wrap func(io.Writer) io.WriteCloser) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	var sink io.WriteCloser = f
	if wrap != nil {
		sink = wrap(f)
	}

	tw := tar.NewWriter(sink)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "git-2.47.1/",
		Typeflag: tar.TypeDir,
		Mode:     0o755,
	}))

	contents := []byte("#!/bin/sh\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "git-2.47.1/configure",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(contents)),
	}))

	_, err = tw.Write(contents)
	require.NoError(t, err)

	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "git-2.47.1/COPYING.link",
		Typeflag: tar.TypeSymlink,
		Linkname: "COPYING",
	}))

	require.NoError(t, tw.Close())

	if wrap != nil {
		require.NoError(t, sink.Close())
	}

	require.NoError(t, f.Close())
}

func TestExtractTar_XZ(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "git-2.47.1.tar.xz")

	writeFixtureTar(t, archivePath, func(w io.Writer) io.WriteCloser {
		xzw, err := xz.NewWriter(w)
		require.NoError(t, err)

		return xzw
	})

	dst := filepath.Join(dir, "src")
	require.NoError(t, ExtractTar(archivePath, dst))

	info, err := os.Stat(filepath.Join(dst, "git-2.47.1", "configure"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(dst, "git-2.47.1", "COPYING.link"))
	require.NoError(t, err)
	require.Equal(t, "COPYING", target)

	root, err := SourceRoot(dst)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dst, "git-2.47.1"), root)
}

func TestExtractTar_Gzip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "git-2.47.1.tar.gz")

	writeFixtureTar(t, archivePath, func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	})

	dst := filepath.Join(dir, "src")
	require.NoError(t, ExtractTar(archivePath, dst))

	_, err := os.Stat(filepath.Join(dst, "git-2.47.1", "configure"))
	require.NoError(t, err)
}

func TestExtractTar_Plain(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "git-2.47.1.tar")

	writeFixtureTar(t, archivePath, nil)

	dst := filepath.Join(dir, "src")
	require.NoError(t, ExtractTar(archivePath, dst))

	_, err := os.Stat(filepath.Join(dst, "git-2.47.1", "configure"))
	require.NoError(t, err)
}

func TestExtractTar_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar")

	f, err := os.Create(archivePath)
	require.NoError(t, err)

	tw := tar.NewWriter(f)
	contents := []byte("pwned")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../escape",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(contents)),
	}))

	_, err = tw.Write(contents)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "src")
	err = ExtractTar(archivePath, dst)
	require.ErrorIs(t, err, errUnsafePath)
}

func TestExtractTar_RejectsEscapingSymlinks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		linkname string
	}{
		{"relative", "../../outside"},
		{"absolute", "/etc/passwd"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			archivePath := filepath.Join(dir, "evil.tar")

			f, err := os.Create(archivePath)
			require.NoError(t, err)

			tw := tar.NewWriter(f)
			require.NoError(t, tw.WriteHeader(&tar.Header{
				Name:     "git-2.47.1/link",
				Typeflag: tar.TypeSymlink,
				Linkname: tc.linkname,
			}))
			require.NoError(t, tw.Close())
			require.NoError(t, f.Close())

			dst := filepath.Join(dir, "src")
			err = ExtractTar(archivePath, dst)
			require.ErrorIs(t, err, errUnsafePath)

			_, err = os.Lstat(filepath.Join(dst, "git-2.47.1", "link"))
			require.True(t, os.IsNotExist(err))
		})
	}
}

func TestSourceRoot_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := SourceRoot(dir)
	require.ErrorIs(t, err, errNoSourceRoot)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "one"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "two"), 0o755))

	_, err = SourceRoot(dir)
	require.ErrorIs(t, err, errNoSourceRoot)
}
