// Package verifier checks the integrity of built wheels.
//
// For each wheel it re-hashes every archived file against the RECORD
// digests and sizes, confirms that every file is listed, and
// cross-checks the embedded METADATA name/version and WHEEL tags
// against the wheel filename. Any mismatch fails the run naming the
// offending file.
package verifier
