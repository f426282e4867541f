package wheel

import "fmt"

// PackageDir is the importable Python package holding the git tree.
const PackageDir = "python_git_bin"

// GitTreePrefix is the archive directory under which the git
// installation tree is placed.
const GitTreePrefix = PackageDir + "/git"

// LauncherInit is the Python package source exposing the bundled git:
// it resolves the executable and exec path per platform, injects
// GIT_EXEC_PATH and the template directory into the environment, and
// provides the console entry point.
const LauncherInit = `"""Git binary distribution package."""

import os
import subprocess
import sys
from pathlib import Path

__all__ = ['GIT_DIR', 'GIT_EXE', 'GIT_EXEC_PATH', 'main', 'run']

# Directory containing git installation
GIT_DIR = Path(__file__).parent / 'git'

# Path to git executable and exec path for helpers
if sys.platform == 'win32':
    GIT_EXE = GIT_DIR / 'cmd' / 'git.exe'
    GIT_EXEC_PATH = GIT_DIR / 'mingw64' / 'libexec' / 'git-core'
else:
    GIT_EXE = GIT_DIR / 'bin' / 'git'
    GIT_EXEC_PATH = GIT_DIR / 'libexec' / 'git-core'


def _get_env():
    """Get environment with GIT_EXEC_PATH set."""
    env = os.environ.copy()
    env['GIT_EXEC_PATH'] = str(GIT_EXEC_PATH)
    # Also set template dir for init/clone operations
    template_dir = GIT_DIR / 'share' / 'git-core' / 'templates'
    if template_dir.exists():
        env['GIT_TEMPLATE_DIR'] = str(template_dir)
    return env


def run(*args, **kwargs):
    """Run git with given arguments. Returns CompletedProcess."""
    cmd = [str(GIT_EXE)] + list(args)
    kwargs.setdefault('env', _get_env())
    return subprocess.run(cmd, **kwargs)


def main():
    """Run git with command line arguments."""
    env = _get_env()
    sys.exit(subprocess.call([str(GIT_EXE)] + sys.argv[1:], env=env))
`

// LauncherMain makes the package runnable as `python -m python_git_bin`.
const LauncherMain = `"""Allow running as python -m python_git_bin."""
from python_git_bin import main
main()
`

// ShimScript renders the executable Python shim standing in for a
// symlinked subcommand: it execs the link target next to itself.
// Shims are cross-platform and match how pip generates entry points.
func ShimScript(target string) []byte {
	return []byte(fmt.Sprintf(`#!/usr/bin/env python3
import subprocess
import sys
from pathlib import Path
target = Path(__file__).parent / %q
sys.exit(subprocess.call([str(target)] + sys.argv[1:]))
`, target))
}
