// Package checksum provides the SHA-256 helpers shared by the download
// cache, the fetcher, and the wheel writer/verifier.
//
// All digests in the project flow through this package so that the hash
// function is fixed in exactly one place. ParseHex understands both bare
// hex digests and the two-column `sha256sum` output format published as
// sidecar files next to release assets.
package checksum
