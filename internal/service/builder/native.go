package builder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/git-wheelhouse/internal/domain/release"
	"github.com/oshokin/git-wheelhouse/internal/logger"
)

var (
	errHostNotDarwin  = errors.New("macOS platforms must be built on a darwin host")
	errForeignLibrary = errors.New("binary links against a non-system library")
)

// deploymentTargets pins the minimum macOS version per platform,
// following python-build-standalone conventions.
var deploymentTargets = map[release.Platform]string{
	release.PlatformMacAMD64: "10.15",
	release.PlatformMacARM64: "11.0",
}

// darwinArchFlags selects the compiler target architecture per platform.
var darwinArchFlags = map[release.Platform]string{
	release.PlatformMacAMD64: "-arch x86_64",
	release.PlatformMacARM64: "-arch arm64",
}

// darwinLibraryPrefixes lists where a packaged darwin binary may load
// shared libraries from. Anything else would break on user machines.
var darwinLibraryPrefixes = []string{"/usr/lib/", "/System/Library/"}

// buildNative compiles git with the host toolchain. Only darwin hosts
// carry the toolchain and SDK for the macOS platforms.
func (b *builder) buildNative(ctx context.Context, srcRoot, installDir string) error {
	if runtime.GOOS != "darwin" {
		return fmt.Errorf("%w: host is %s", errHostNotDarwin, runtime.GOOS)
	}

	archFlag := darwinArchFlags[b.desc.Platform]
	env := append(os.Environ(),
		"MACOSX_DEPLOYMENT_TARGET="+deploymentTargets[b.desc.Platform],
		"CFLAGS="+archFlag,
		"LDFLAGS="+archFlag,
	)

	jobs := "-j" + strconv.Itoa(runtime.NumCPU())

	steps := [][]string{
		append([]string{jobs}, append(makeArgs(installDir), "all", "strip")...),
		append(makeArgs(installDir), "install"),
	}

	for _, args := range steps {
		if err := b.runMake(ctx, srcRoot, env, args); err != nil {
			return err
		}
	}

	return nil
}

// runMake executes one make invocation in the source root, streaming
// its combined output into the logger.
func (b *builder) runMake(ctx context.Context, srcRoot string, env, args []string) error {
	logger.InfoKV(ctx, "Running make", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = srcRoot
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("attach make output: %w", err)
	}

	cmd.Stderr = cmd.Stdout

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("start make: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			logger.Info(gctx, scanner.Text())
		}

		return scanner.Err()
	})

	if err = group.Wait(); err != nil {
		_ = cmd.Wait()

		return fmt.Errorf("read make output: %w", err)
	}

	if err = cmd.Wait(); err != nil {
		return fmt.Errorf("make %s: %w", args[len(args)-1], err)
	}

	return nil
}

// verifyDarwinLibraries checks that the built binary only links against
// macOS system libraries, using otool -L.
func (b *builder) verifyDarwinLibraries(ctx context.Context, gitPath string) error {
	output, err := exec.CommandContext(ctx, "otool", "-L", gitPath).Output()
	if err != nil {
		return fmt.Errorf("otool -L %s: %w", gitPath, err)
	}

	for _, library := range parseSharedLibraries(string(output)) {
		if !allowedDarwinLibrary(library) {
			return fmt.Errorf("%w: %s references %s", errForeignLibrary, gitPath, library)
		}
	}

	return nil
}

// parseSharedLibraries extracts library install names from otool -L
// output. The first line echoes the inspected binary; every following
// indented line starts with a library path.
func parseSharedLibraries(output string) []string {
	var libraries []string

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if i == 0 || !strings.HasPrefix(line, "\t") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		libraries = append(libraries, fields[0])
	}

	return libraries
}

// allowedDarwinLibrary reports whether a library install name points at
// a system location.
func allowedDarwinLibrary(library string) bool {
	for _, prefix := range darwinLibraryPrefixes {
		if strings.HasPrefix(library, prefix) {
			return true
		}
	}

	return false
}
