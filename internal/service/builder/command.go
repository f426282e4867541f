package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/git-wheelhouse/internal/archive"
	"github.com/oshokin/git-wheelhouse/internal/config"
	"github.com/oshokin/git-wheelhouse/internal/domain/layout"
	"github.com/oshokin/git-wheelhouse/internal/domain/release"
	"github.com/oshokin/git-wheelhouse/internal/logger"
	"github.com/oshokin/git-wheelhouse/internal/repository/cache"
	"github.com/oshokin/git-wheelhouse/internal/service/fetcher"
)

// Options contains inputs for the builder entry point.
type Options struct {
	// ConfigPath is an optional path to the settings YAML file.
	ConfigPath string
	// Version is the git version to build, e.g. "2.47.1".
	Version string
	// Platform is the target platform tag.
	Platform string
	// OutputDir is the root under which the normalized per-platform
	// layout is written.
	OutputDir string
	// KeepWork preserves the temporary build directory for debugging.
	KeepWork bool
}

// errWindowsBuild is returned for win_* platforms: their wheels
// repackage the official MinGit archives, there is nothing to compile.
var errWindowsBuild = errors.New("windows platforms are repackaged from MinGit archives, nothing to build")

// builder executes one build for a single (version, platform) pair.
// It is unexported; callers use Run, which encapsulates setup and validation.
type builder struct {
	// cfg holds mirror URLs, the cache location and the build image.
	cfg *config.Config
	// desc identifies the build target.
	desc release.Descriptor
	// outputDir is the per-platform destination of the normalized layout.
	outputDir string
	// keepWork preserves the work directory after the build.
	keepWork bool
	// fetch downloads the source tarball through the cache.
	fetch *fetcher.Service
}

// Run executes the build workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "wheelhouse-builder")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	desc, err := release.NewDescriptor(opts.Version, opts.Platform)
	if err != nil {
		return err
	}

	if desc.Platform.IsWindows() {
		return fmt.Errorf("%s: %w", desc.Platform, errWindowsBuild)
	}

	b := &builder{
		cfg:       cfg,
		desc:      desc,
		outputDir: filepath.Join(opts.OutputDir, desc.Platform.String()),
		keepWork:  opts.KeepWork,
		fetch:     fetcher.NewService(cfg, cache.NewFileRepository(cfg.CacheDir)),
	}

	if err = b.Run(ctx); err != nil {
		return fmt.Errorf("build %s for %s: %w", desc.Version, desc.Platform, err)
	}

	logger.InfoKV(ctx, "Build completed", "output", b.outputDir)

	return nil
}

// Run builds, verifies and normalizes one platform.
func (b *builder) Run(ctx context.Context) error {
	releaseLock, err := acquireBuildLock(b.outputDir)
	if err != nil {
		return err
	}
	defer releaseLock()

	tarball, err := b.fetch.Source(ctx, b.desc)
	if err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "wheelhouse-build-")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	if b.keepWork {
		logger.InfoKV(ctx, "Keeping work directory", "path", workDir)
	} else {
		defer func() {
			_ = os.RemoveAll(workDir)
		}()
	}

	logger.InfoKV(ctx, "Extracting source tarball", "archive", tarball)

	srcDir := filepath.Join(workDir, "src")
	if err = archive.ExtractTar(tarball, srcDir); err != nil {
		return err
	}

	srcRoot, err := archive.SourceRoot(srcDir)
	if err != nil {
		return err
	}

	installDir := filepath.Join(workDir, "install")
	if err = os.MkdirAll(installDir, 0o755); err != nil {
		return fmt.Errorf("create install directory: %w", err)
	}

	logger.InfoKV(ctx, "Building git", "source", srcRoot, "platform", b.desc.Platform)

	switch {
	case b.desc.Platform.IsDarwin():
		err = b.buildNative(ctx, srcRoot, installDir)
	default:
		err = b.buildContainer(ctx, srcRoot, installDir)
	}

	if err != nil {
		return err
	}

	prefixRoot := filepath.Join(installDir, filepath.FromSlash(installPrefix))

	if err = b.verifyLinkedLibraries(ctx, prefixRoot); err != nil {
		return err
	}

	if err = b.stageLicense(srcRoot, prefixRoot); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Normalizing install tree", "destination", b.outputDir)

	return layout.Normalize(installDir, b.outputDir, b.desc.Platform)
}

// verifyLinkedLibraries fails the build when the produced binary would
// not run standalone on user machines.
func (b *builder) verifyLinkedLibraries(ctx context.Context, prefixRoot string) error {
	gitPath := filepath.Join(prefixRoot, filepath.FromSlash(b.desc.Platform.GitExecutable()))

	if _, err := os.Stat(gitPath); err != nil {
		return fmt.Errorf("%w: %s not produced by the build", layout.ErrMissingArtifact, gitPath)
	}

	if b.desc.Platform.IsDarwin() {
		return b.verifyDarwinLibraries(ctx, gitPath)
	}

	return verifyStaticBinary(gitPath)
}

// stageLicense copies COPYING from the source tree into the install
// prefix root so normalization and packaging can see it.
func (b *builder) stageLicense(srcRoot, prefixRoot string) error {
	contents, err := os.ReadFile(filepath.Join(srcRoot, "COPYING"))
	if err != nil {
		return fmt.Errorf("read license from source tree: %w", err)
	}

	if err = os.WriteFile(filepath.Join(prefixRoot, "COPYING"), contents, 0o644); err != nil {
		return fmt.Errorf("stage license: %w", err)
	}

	return nil
}
