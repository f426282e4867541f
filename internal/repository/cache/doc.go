// Package cache persists downloaded upstream archives on disk.
//
// Entries are addressed by an immutable (version, platform, filename)
// key and laid out as <root>/<version>/<platform>/<filename>. Writes go
// through go-update so an entry is replaced atomically and verified
// against its checksum before it lands. A hex digest sidecar is kept
// next to each verified entry; Resolve re-checks it so corrupted
// entries surface as misses instead of being reused.
package cache
