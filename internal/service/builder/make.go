package builder

// installPrefix is the configured prefix of every build; the install
// tree lands under DESTDIR + installPrefix and is normalized from there.
const installPrefix = "/usr/local"

// makeArgs returns the fixed feature-flag set passed to every git build.
// Locale, Tcl/Tk GUI and scripting extras are disabled so the install
// tree stays minimal, and subcommand stubs are installed as symlinks
// instead of hardlinks so the packager can replace them with shims.
func makeArgs(destDir string) []string {
	return []string{
		"prefix=" + installPrefix,
		"DESTDIR=" + destDir,
		"NO_GETTEXT=1",
		"NO_TCLTK=1",
		"NO_PERL=1",
		"NO_PYTHON=1",
		"NO_INSTALL_HARDLINKS=1",
		"INSTALL_SYMLINKS=1",
	}
}
