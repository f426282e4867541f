// Package packager assembles git binary wheels.
//
// For each requested platform it acquires the input tree (the official
// MinGit archive for Windows platforms, a normalized binary layout for
// macOS and Linux) and emits a reproducible wheel embedding the git
// tree, the Python launcher package, the license texts, and the
// dist-info metadata.
//
// Wheels are written through a temporary file and renamed into place,
// so a failed run never leaves a partial archive in the output
// directory. Packaging a platform outside the supported set, a layout
// without the git executable, or an input without any license text
// fails with the corresponding sentinel error.
package packager
