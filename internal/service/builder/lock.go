package builder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"
)

// lockSuffix is appended to the platform output directory path to form
// the marker file location. The marker lives next to the directory, not
// inside it, because normalization wipes the directory on completion.
const lockSuffix = ".build-lock"

// errBuildInProgress indicates another live builder owns the output directory.
var errBuildInProgress = errors.New("build already in progress")

// acquireBuildLock claims the platform output directory by writing a
// marker file recording this process as the owner. A marker owned by a
// live process fails the acquisition; a stale marker from a dead
// process is removed and the build proceeds. The returned release
// function removes the marker.
func acquireBuildLock(outputDir string) (release func(), err error) {
	markerPath := outputDir + lockSuffix

	if err = os.MkdirAll(filepath.Dir(markerPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	if contents, readErr := os.ReadFile(markerPath); readErr == nil {
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(contents)))
		if convErr == nil && isProcessAlive(pid) {
			return nil, fmt.Errorf("%w: %s is owned by pid %d", errBuildInProgress, markerPath, pid)
		}

		// The owner is gone; reclaim the marker.
		if err = os.Remove(markerPath); err != nil {
			return nil, fmt.Errorf("remove stale build marker: %w", err)
		}
	}

	pid := strconv.Itoa(os.Getpid())
	if err = os.WriteFile(markerPath, []byte(pid+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write build marker: %w", err)
	}

	return func() {
		_ = os.Remove(markerPath)
	}, nil
}

// isProcessAlive reports whether a process with the pid exists.
func isProcessAlive(pid int) bool {
	process, err := ps.FindProcess(pid)

	return err == nil && process != nil
}
