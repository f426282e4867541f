// Package fetcher downloads upstream git archives through the cache.
//
// Windows platforms are served from Git for Windows GitHub releases:
// the release for the requested version is looked up, the MinGit asset
// matching the platform is downloaded and verified against its .sha256
// sidecar asset when one is published. Source tarballs come from the
// configured mirror, verified against checksums pinned in the settings
// file. Every archive is stored in the download cache keyed by version
// and platform, so repeated runs never re-download.
package fetcher
