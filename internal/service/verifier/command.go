package verifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/oshokin/git-wheelhouse/internal/checksum"
	"github.com/oshokin/git-wheelhouse/internal/logger"
	"github.com/oshokin/git-wheelhouse/internal/wheel"
)

// Options contains inputs for the verifier entry point.
type Options struct {
	// WheelPaths are the wheel files to verify.
	WheelPaths []string
}

var (
	errDigestMismatch   = errors.New("digest mismatch")
	errSizeMismatch     = errors.New("size mismatch")
	errUnlistedFile     = errors.New("file not listed in RECORD")
	errMissingFile      = errors.New("listed in RECORD but not archived")
	errMetadataMismatch = errors.New("metadata does not match filename")
	errBadDigestFormat  = errors.New("malformed RECORD digest")
)

// Run verifies every provided wheel, stopping at the first failure.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "wheelhouse-verifier")

	for _, path := range opts.WheelPaths {
		if err := verifyWheel(ctx, path); err != nil {
			return fmt.Errorf("verify %s: %w", path, err)
		}

		logger.InfoKV(ctx, "Wheel verified", "path", path)
	}

	return nil
}

// verifyWheel checks one wheel's RECORD against the archive contents
// and its metadata against the filename.
func verifyWheel(ctx context.Context, path string) error {
	opened, err := wheel.Open(path)
	if err != nil {
		return err
	}

	defer func() {
		_ = opened.Close()
	}()

	record, err := opened.Record()
	if err != nil {
		return err
	}

	if err = verifyRecord(ctx, opened, record); err != nil {
		return err
	}

	return verifyMetadata(opened)
}

// verifyRecord re-hashes every archived file against its RECORD row and
// confirms the listing and the archive name exactly the same files.
func verifyRecord(ctx context.Context, opened *wheel.Wheel, record []wheel.RecordEntry) error {
	recordPath := opened.DistInfo() + "/" + wheel.RecordName
	listed := make(map[string]wheel.RecordEntry, len(record))

	for _, entry := range record {
		listed[entry.Path] = entry
	}

	archived := make(map[string]struct{}, len(opened.Files()))

	for _, name := range opened.Files() {
		archived[name] = struct{}{}
		entry, ok := listed[name]
		if !ok {
			return fmt.Errorf("%w: %s", errUnlistedFile, name)
		}

		// RECORD lists itself without digest or size.
		if name == recordPath {
			continue
		}

		data, err := opened.ReadFile(name)
		if err != nil {
			return err
		}

		if entry.Size != int64(len(data)) {
			return fmt.Errorf("%w: %s is %d bytes, RECORD says %d",
				errSizeMismatch, name, len(data), entry.Size)
		}

		expected, err := decodeRecordDigest(entry.Digest)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}

		actual, err := checksum.Bytes(data)
		if err != nil {
			return err
		}

		if !bytes.Equal(actual, expected) {
			return fmt.Errorf("%w: %s", errDigestMismatch, name)
		}
	}

	// A RECORD row with no matching member means the archive is
	// incomplete, so the listing is walked in the other direction too.
	for _, entry := range record {
		if entry.Path == recordPath {
			continue
		}

		if _, ok := archived[entry.Path]; !ok {
			return fmt.Errorf("%w: %s", errMissingFile, entry.Path)
		}
	}

	logger.DebugKV(ctx, "RECORD digests verified", "files", len(record))

	return nil
}

// verifyMetadata cross-checks METADATA and WHEEL against the filename.
func verifyMetadata(opened *wheel.Wheel) error {
	metadata, err := opened.Metadata()
	if err != nil {
		return err
	}

	if got := single(metadata["Name"]); got != opened.Name {
		return fmt.Errorf("%w: METADATA Name is %q, filename says %q",
			errMetadataMismatch, got, opened.Name)
	}

	if got := single(metadata["Version"]); got != opened.Version {
		return fmt.Errorf("%w: METADATA Version is %q, filename says %q",
			errMetadataMismatch, got, opened.Version)
	}

	info, err := opened.WheelInfo()
	if err != nil {
		return err
	}

	present := make(map[string]struct{}, len(info["Tag"]))
	for _, tag := range info["Tag"] {
		present[tag] = struct{}{}
	}

	for _, tag := range wheel.ExpandTag(opened.Tag) {
		if _, ok := present[tag]; !ok {
			return fmt.Errorf("%w: WHEEL is missing tag %s", errMetadataMismatch, tag)
		}
	}

	return nil
}

// decodeRecordDigest parses a "sha256=<urlsafe-b64-nopad>" RECORD digest.
func decodeRecordDigest(digest string) ([]byte, error) {
	const prefix = "sha256="

	if len(digest) <= len(prefix) || digest[:len(prefix)] != prefix {
		return nil, fmt.Errorf("%w: %q", errBadDigestFormat, digest)
	}

	sum, err := base64.RawURLEncoding.DecodeString(digest[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errBadDigestFormat, digest, err)
	}

	return sum, nil
}

func single(values []string) string {
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
