package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/git-wheelhouse/internal/checksum"
	"github.com/oshokin/git-wheelhouse/internal/config"
	"github.com/oshokin/git-wheelhouse/internal/domain/layout"
	"github.com/oshokin/git-wheelhouse/internal/domain/release"
	"github.com/oshokin/git-wheelhouse/internal/logger"
	"github.com/oshokin/git-wheelhouse/internal/repository/cache"
	"github.com/oshokin/git-wheelhouse/internal/service/fetcher"
	"github.com/oshokin/git-wheelhouse/internal/wheel"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the settings YAML file.
	ConfigPath string
	// Version is the git version to package, e.g. "2.47.1".
	Version string
	// Platforms are the requested platform tags; "all" expands to the
	// full supported set.
	Platforms []string
	// BinaryDir is the normalized binary layout root consumed for
	// macOS and Linux platforms. When it contains a per-platform
	// subdirectory named after the tag, that subdirectory is used.
	BinaryDir string
	// OutputDir overrides the configured wheel output directory.
	OutputDir string
	// CacheDir overrides the configured download cache directory.
	CacheDir string
	// BuildDate is the YYYYMMDD fourth version component; empty means
	// today in UTC.
	BuildDate string
}

var (
	// ErrMissingLicense is returned when the packaging input carries no
	// recognizable license text.
	ErrMissingLicense = errors.New("missing license")

	// errBinaryDirRequired is returned when a non-Windows platform is
	// requested without a binary layout to package.
	errBinaryDirRequired = errors.New("binary directory must be provided for non-windows platforms")
)

// packager assembles wheels for one version across platforms.
// It is unexported; callers use Run, which encapsulates setup and validation.
type packager struct {
	// cfg holds output, cache and download settings.
	cfg *config.Config
	// fetch serves MinGit archives through the download cache.
	fetch *fetcher.Service
	// binaryDir is the layout root for macOS/Linux platforms.
	binaryDir string
	// buildDate is the validated fourth version component.
	buildDate string
}

// Run executes the packaging workflow for every requested platform.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "wheelhouse-packager")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if opts.CacheDir != "" {
		cfg.CacheDir = opts.CacheDir
	}

	platforms, err := release.ExpandPlatforms(opts.Platforms)
	if err != nil {
		return err
	}

	buildDate, err := release.BuildDate(opts.BuildDate)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	p := &packager{
		cfg:       cfg,
		fetch:     fetcher.NewService(cfg, cache.NewFileRepository(cfg.CacheDir)),
		binaryDir: opts.BinaryDir,
		buildDate: buildDate,
	}

	for _, platform := range platforms {
		desc, descErr := release.NewDescriptor(opts.Version, platform.String())
		if descErr != nil {
			return descErr
		}

		if err = p.packageOne(ctx, desc); err != nil {
			return fmt.Errorf("package %s for %s: %w", desc.Version, desc.Platform, err)
		}
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// packageOne builds the wheel for a single descriptor.
func (p *packager) packageOne(ctx context.Context, desc release.Descriptor) error {
	wheelVersion := desc.WheelVersion(p.buildDate)
	manifest := wheel.NewGitManifest(wheelVersion, desc.Platform.WheelTag())

	logger.InfoKV(ctx, "Building wheel",
		"platform", desc.Platform, "wheel_version", wheelVersion)

	var (
		contents contentSource
		err      error
	)

	if desc.Platform.IsWindows() {
		contents, err = p.minGitContents(ctx, desc)
	} else {
		contents, err = p.layoutContents(ctx, desc)
	}

	if err != nil {
		return err
	}

	wheelPath, err := p.emit(ctx, manifest, contents)
	if err != nil {
		return err
	}

	sum, err := checksum.File(wheelPath)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Created wheel", "path", wheelPath, "sha256", checksum.Hex(sum))

	return nil
}

// layoutContents resolves and validates the binary layout for a
// non-Windows platform.
func (p *packager) layoutContents(_ context.Context, desc release.Descriptor) (contentSource, error) {
	if p.binaryDir == "" {
		return nil, fmt.Errorf("%s: %w", desc.Platform, errBinaryDirRequired)
	}

	dir := p.binaryDir

	// A per-platform subdirectory takes precedence when present.
	platformDir := filepath.Join(dir, desc.Platform.String())
	if info, err := os.Stat(platformDir); err == nil && info.IsDir() {
		dir = platformDir
	}

	if err := layout.Validate(dir, desc.Platform); err != nil {
		return nil, err
	}

	licenses := layout.Licenses(dir)
	if len(licenses) == 0 {
		return nil, fmt.Errorf("%w: no license file at %s", ErrMissingLicense, dir)
	}

	return &layoutSource{root: dir, licenses: licenses}, nil
}

// minGitContents fetches the MinGit archive for a Windows platform.
func (p *packager) minGitContents(ctx context.Context, desc release.Descriptor) (contentSource, error) {
	archivePath, err := p.fetch.MinGit(ctx, desc)
	if err != nil {
		return nil, err
	}

	source, err := newMinGitSource(archivePath)
	if err != nil {
		return nil, err
	}

	if len(source.licenses) == 0 {
		source.Close()

		return nil, fmt.Errorf("%w: no license file in %s", ErrMissingLicense, filepath.Base(archivePath))
	}

	return source, nil
}

// emit writes the wheel through a temporary file so a failure never
// leaves a partial archive in the output directory.
func (p *packager) emit(ctx context.Context, manifest *wheel.Manifest, contents contentSource) (path string, err error) {
	defer contents.Close()

	tmp, err := os.CreateTemp(p.cfg.OutputDir, ".wheel-*")
	if err != nil {
		return "", fmt.Errorf("create temporary wheel: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := wheel.NewWriter(tmp)

	if err = w.Add(wheel.PackageDir+"/__init__.py", 0o644, []byte(wheel.LauncherInit)); err != nil {
		return "", err
	}

	if err = w.Add(wheel.PackageDir+"/__main__.py", 0o644, []byte(wheel.LauncherMain)); err != nil {
		return "", err
	}

	if err = contents.addTo(ctx, w); err != nil {
		return "", err
	}

	if err = addLicenses(w, manifest, contents); err != nil {
		return "", err
	}

	if err = w.Finish(manifest); err != nil {
		return "", err
	}

	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temporary wheel: %w", err)
	}

	path = filepath.Join(p.cfg.OutputDir, manifest.Filename())
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move wheel into place: %w", err)
	}

	return path, nil
}

// addLicenses archives the license texts under dist-info/licenses/ and
// declares them in the manifest.
func addLicenses(w *wheel.Writer, manifest *wheel.Manifest, contents contentSource) error {
	for _, license := range contents.licenseFiles() {
		data, err := license.read()
		if err != nil {
			return fmt.Errorf("read license %s: %w", license.name, err)
		}

		relPath := "licenses/" + license.name
		manifest.LicenseFiles = append(manifest.LicenseFiles, relPath)

		if err = w.Add(manifest.DistInfo()+"/"+relPath, 0o644, data); err != nil {
			return err
		}
	}

	return nil
}
