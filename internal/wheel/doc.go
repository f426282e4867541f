// Package wheel reads and writes Python wheel archives.
//
// A wheel is a zip file with a <name>-<version>.dist-info/ directory
// holding METADATA, WHEEL, entry_points.txt and a RECORD of every
// archived file with its SHA-256 digest and size. The Writer produces
// reproducible output: fixed entry timestamps, unix creator, and RECORD
// written last, so packaging identical inputs yields identical bytes.
//
// Open reads a wheel back for integrity verification.
package wheel
