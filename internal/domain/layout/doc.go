// Package layout validates and normalizes git installation trees.
//
// A normalized layout is the canonical on-disk shape consumed by the
// packager: bin/git plus its siblings, libexec/git-core/ with the
// subcommand binaries, optionally share/git-core/templates/, and the
// license files at the root. Normalize reshapes a raw `make install`
// staging tree (including DESTDIR-style usr/ and usr/local/ prefixes)
// into that shape; Validate checks a tree that is already expected to
// be normalized.
//
// Both report the packaging failure modes as sentinel errors:
// ErrMissingArtifact when the git executable is absent and
// ErrUnexpectedLayout when the tree shape is not recognizable.
package layout
