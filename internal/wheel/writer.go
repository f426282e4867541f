package wheel

import (
	"archive/zip"
	"encoding/base64"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/oshokin/git-wheelhouse/internal/checksum"
)

// RecordName is the dist-info file listing every archived member.
const RecordName = "RECORD"

// entryTimestamp is the fixed modification time of every archive member.
// Wheels built from identical inputs must be byte-identical, so real
// clock values never enter the output.
var entryTimestamp = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Writer emits a reproducible wheel archive. Members are written in the
// order Add is called; Finish appends the dist-info metadata and the
// RECORD and closes the archive.
type Writer struct {
	zw      *zip.Writer
	records []RecordEntry
	closed  bool
}

// RecordEntry is one row of the RECORD file.
type RecordEntry struct {
	// Path of the member inside the archive, slash-separated.
	Path string
	// Digest is "sha256=<urlsafe-b64-nopad>", empty for RECORD itself.
	Digest string
	// Size in bytes, -1 for RECORD itself.
	Size int64
}

// String renders the entry as a RECORD row.
func (e RecordEntry) String() string {
	if e.Size < 0 {
		return fmt.Sprintf("%s,%s,", e.Path, e.Digest)
	}

	return fmt.Sprintf("%s,%s,%d", e.Path, e.Digest, e.Size)
}

// NewWriter wraps w in a wheel writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		zw: zip.NewWriter(w),
	}
}

// Add archives one member with the provided permission bits and records
// its digest for the RECORD file.
func (w *Writer) Add(name string, mode fs.FileMode, data []byte) error {
	sum, err := checksum.Bytes(data)
	if err != nil {
		return err
	}

	if err = w.writeMember(name, mode, data); err != nil {
		return err
	}

	w.records = append(w.records, RecordEntry{
		Path:   name,
		Digest: "sha256=" + base64.RawURLEncoding.EncodeToString(sum),
		Size:   int64(len(data)),
	})

	return nil
}

// Finish writes the dist-info metadata files described by the manifest,
// appends the RECORD last, and closes the archive.
func (w *Writer) Finish(m *Manifest) error {
	if w.closed {
		return nil
	}

	distInfo := m.DistInfo()

	metadata := []struct {
		name string
		data []byte
	}{
		{distInfo + "/entry_points.txt", m.RenderEntryPoints()},
		{distInfo + "/METADATA", m.RenderMetadata()},
		{distInfo + "/WHEEL", m.RenderWheel()},
	}

	for _, member := range metadata {
		if err := w.Add(member.name, 0o644, member.data); err != nil {
			return err
		}
	}

	recordPath := distInfo + "/" + RecordName
	w.records = append(w.records, RecordEntry{Path: recordPath, Size: -1})

	var b strings.Builder
	for _, entry := range w.records {
		b.WriteString(entry.String())
		b.WriteString("\n")
	}

	if err := w.writeMember(recordPath, 0o664, []byte(b.String())); err != nil {
		return err
	}

	w.closed = true

	return w.zw.Close()
}

// writeMember writes one zip entry with the fixed timestamp and a unix
// creator, deflate-compressed.
func (w *Writer) writeMember(name string, mode fs.FileMode, data []byte) error {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: entryTimestamp,
	}
	hdr.SetMode(mode)

	member, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create archive member %s: %w", name, err)
	}

	if _, err = member.Write(data); err != nil {
		return fmt.Errorf("write archive member %s: %w", name, err)
	}

	return nil
}
