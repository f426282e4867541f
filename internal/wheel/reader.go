package wheel

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrBadWheelName is returned when a filename does not have the
	// <name>-<version>-<python>-<abi>-<platform>.whl shape.
	ErrBadWheelName = errors.New("malformed wheel filename")

	// ErrNoDistInfo is returned when an archive has no dist-info directory
	// matching its filename.
	ErrNoDistInfo = errors.New("dist-info directory not found")
)

// Wheel is an opened wheel archive.
type Wheel struct {
	// Name is the distribution name from the filename.
	Name string
	// Version is the version from the filename.
	Version string
	// Tag is the compressed tag from the filename.
	Tag string

	reader   *zip.ReadCloser
	distInfo string
}

// Open opens the wheel at the given path, parsing its filename and
// locating the dist-info directory.
func Open(wheelPath string) (*Wheel, error) {
	name, version, tag, err := ParseFilename(filepath.Base(wheelPath))
	if err != nil {
		return nil, err
	}

	reader, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("open wheel: %w", err)
	}

	w := &Wheel{
		Name:     name,
		Version:  version,
		Tag:      tag,
		reader:   reader,
		distInfo: fmt.Sprintf("%s-%s.dist-info", name, version),
	}

	if _, err = w.file(w.distInfo + "/" + RecordName); err != nil {
		_ = reader.Close()

		return nil, fmt.Errorf("%w: expected %s", ErrNoDistInfo, w.distInfo)
	}

	return w, nil
}

// Close releases the underlying archive.
func (w *Wheel) Close() error {
	return w.reader.Close()
}

// DistInfo returns the dist-info directory name derived from the filename.
func (w *Wheel) DistInfo() string {
	return w.distInfo
}

// Files returns the archived member paths, directories excluded.
func (w *Wheel) Files() []string {
	var names []string

	for _, entry := range w.reader.File {
		if strings.HasSuffix(entry.Name, "/") {
			continue
		}

		names = append(names, entry.Name)
	}

	return names
}

// ReadFile returns the contents of one archived member.
func (w *Wheel) ReadFile(name string) ([]byte, error) {
	entry, err := w.file(name)
	if err != nil {
		return nil, err
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", name, err)
	}

	return data, nil
}

// Record parses the RECORD file into its entries.
func (w *Wheel) Record() ([]RecordEntry, error) {
	data, err := w.ReadFile(w.distInfo + "/" + RecordName)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = 3

	var entries []RecordEntry

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}

		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", RecordName, err)
		}

		entry := RecordEntry{Path: row[0], Digest: row[1], Size: -1}

		if row[2] != "" {
			size, convErr := strconv.ParseInt(row[2], 10, 64)
			if convErr != nil {
				return nil, fmt.Errorf("parse %s size for %s: %w", RecordName, row[0], convErr)
			}

			entry.Size = size
		}

		entries = append(entries, entry)
	}
}

// Metadata parses the METADATA headers into a multimap, preserving the
// order of repeated headers. The long description body is discarded.
func (w *Wheel) Metadata() (map[string][]string, error) {
	data, err := w.ReadFile(w.distInfo + "/METADATA")
	if err != nil {
		return nil, err
	}

	return parseHeaders(data)
}

// WheelInfo parses the WHEEL file headers.
func (w *Wheel) WheelInfo() (map[string][]string, error) {
	data, err := w.ReadFile(w.distInfo + "/WHEEL")
	if err != nil {
		return nil, err
	}

	return parseHeaders(data)
}

// ParseFilename splits a wheel filename into distribution name, version
// and compressed tag. The three tag components are counted from the
// right because distribution names may themselves contain dashes.
func ParseFilename(filename string) (name, version, tag string, err error) {
	base := strings.TrimSuffix(filename, ".whl")
	if base == filename {
		return "", "", "", fmt.Errorf("%w: %s has no .whl suffix", ErrBadWheelName, filename)
	}

	parts := strings.Split(base, "-")
	if len(parts) < 5 {
		return "", "", "", fmt.Errorf("%w: %s", ErrBadWheelName, filename)
	}

	tagParts := parts[len(parts)-3:]
	version = parts[len(parts)-4]
	name = strings.Join(parts[:len(parts)-4], "-")

	if name == "" || version == "" {
		return "", "", "", fmt.Errorf("%w: %s", ErrBadWheelName, filename)
	}

	return name, version, strings.Join(tagParts, "-"), nil
}

// file locates one archive member by its slash-separated path.
func (w *Wheel) file(name string) (*zip.File, error) {
	for _, entry := range w.reader.File {
		if path.Clean(entry.Name) == name {
			return entry, nil
		}
	}

	return nil, fmt.Errorf("member %s not found in archive", name)
}

// parseHeaders reads "Name: value" lines until the first blank line.
func parseHeaders(data []byte) (map[string][]string, error) {
	headers := make(map[string][]string)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}

		key, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, fmt.Errorf("malformed header line %q", line)
		}

		headers[key] = append(headers[key], value)
	}

	return headers, scanner.Err()
}
