// Package archive extracts upstream source tarballs.
//
// Compression is sniffed from the archive's leading bytes (gzip, bzip2,
// xz, or plain tar), so callers never have to care which format a mirror
// serves. Extraction refuses entries that would escape the destination
// directory.
package archive
