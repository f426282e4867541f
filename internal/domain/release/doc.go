// Package release defines the packaging targets of the project: the set of
// supported platforms, the naming rules derived from them (wheel platform
// tags, MinGit asset patterns, source tarball and release tag names), and
// the Descriptor value identifying one git version on one platform.
//
// Everything here is a fixed table. Changing supported platforms or their
// wheel tags happens in this package only.
package release
