// Package builder compiles git from source for one platform and
// normalizes the install tree for packaging.
//
// macOS platforms build natively with the host toolchain; Linux
// platforms build statically inside a container pinned to the target
// architecture. Windows platforms are never built, their wheels
// repackage the official MinGit archives.
//
// Locale, GUI and scripting extras are disabled so the install tree
// contains only the runtime-necessary files, and subcommand stubs are
// installed as symlinks the packager can replace with shims. After the
// build the linked libraries of the produced binary are verified:
// darwin binaries may only reference system libraries, linux binaries
// must be fully static.
//
// A per-platform marker file guards the output directory against
// concurrent builds; a marker left by a dead process is reclaimed.
package builder
