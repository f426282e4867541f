package checksum

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Ensure SHA256 is linked in for digest calculation.
	_ "crypto/sha256"
)

// Function is the hash used for every digest in the project:
// download verification, cache re-verification, and wheel RECORD entries.
const Function crypto.Hash = crypto.SHA256

var (
	errHashUnavailable = errors.New("hash function unavailable")
	errEmptyDigest     = errors.New("empty digest")
)

// Bytes returns the digest of the provided data using Function.
func Bytes(data []byte) ([]byte, error) {
	if !Function.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := Function.New()
	if _, err := hasher.Write(data); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// Reader returns the digest of everything read from r using Function.
func Reader(r io.Reader) ([]byte, error) {
	if !Function.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := Function.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// File returns the digest of the file contents using Function.
func File(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Reader(f)
}

// Hex renders a digest in lowercase hexadecimal.
func Hex(sum []byte) string {
	return hex.EncodeToString(sum)
}

// ParseHex decodes a hexadecimal digest string.
// It accepts both a bare digest and the `sha256sum` two-column format
// ("<hex>  <filename>") used by published sidecar files; only the first
// field is decoded.
func ParseHex(s string) ([]byte, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errEmptyDigest
	}

	sum, err := hex.DecodeString(fields[0])
	if err != nil {
		return nil, fmt.Errorf("decode checksum %q: %w", fields[0], err)
	}

	if len(sum) != Function.Size() {
		return nil, fmt.Errorf("checksum %q has %d bytes, want %d", fields[0], len(sum), Function.Size())
	}

	return sum, nil
}
