package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/oshokin/git-wheelhouse/internal/checksum"
	"github.com/oshokin/git-wheelhouse/internal/config"
	"github.com/oshokin/git-wheelhouse/internal/domain/release"
	"github.com/oshokin/git-wheelhouse/internal/logger"
	"github.com/oshokin/git-wheelhouse/internal/repository/cache"
)

var (
	errReleaseNotFound  = errors.New("release not found for version")
	errAssetNotFound    = errors.New("no matching release asset")
	errBadHTTPStatus    = errors.New("unexpected http status")
	errNotFoundStatus   = errors.New("not found")
	errChecksumMismatch = errors.New("checksum mismatch")
)

const (
	// gitForWindowsRepo is the GitHub repository publishing MinGit archives.
	gitForWindowsRepo = "repos/git-for-windows/git"

	// githubAcceptHeader pins the GitHub REST API response format.
	githubAcceptHeader = "application/vnd.github.v3+json"

	// minGitFilename is the canonical cache filename for MinGit archives.
	// The upstream asset name varies with the release, the cache key
	// (version, platform) already disambiguates.
	minGitFilename = "mingit.zip"

	// sourcePlatform is the cache platform key for source tarballs,
	// which are shared by every non-Windows build.
	sourcePlatform = "source"
)

// githubRelease is the subset of the GitHub release payload we consume.
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

// githubAsset is one downloadable file attached to a release.
type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Service downloads upstream archives and stores them in the cache.
type Service struct {
	cfg    *config.Config
	repo   cache.Repository
	client *http.Client
}

// NewService creates a fetcher backed by the provided cache repository.
func NewService(cfg *config.Config, repo cache.Repository, opts ...Option) *Service {
	s := &Service{
		cfg:  cfg,
		repo: repo,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		s.client = &http.Client{Timeout: cfg.Timeout}
	}

	return s
}

// MinGit returns the path of the MinGit archive for the descriptor,
// downloading and verifying it on a cache miss.
func (s *Service) MinGit(ctx context.Context, desc release.Descriptor) (string, error) {
	platform := desc.Platform.String()

	if path, err := s.repo.Resolve(ctx, desc.Version, platform, minGitFilename); err == nil {
		logger.InfoKV(ctx, "Using cached MinGit archive", "path", path)

		return path, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		return "", err
	}

	rel, err := s.windowsRelease(ctx, desc)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Found Git for Windows release", "tag", rel.TagName)

	asset, sidecar, err := findMinGitAsset(rel, desc.Platform)
	if err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Downloading release asset", "asset", asset.Name)

	data, err := s.download(ctx, asset.BrowserDownloadURL, "")
	if err != nil {
		return "", fmt.Errorf("download %s: %w", asset.Name, err)
	}

	var sum []byte

	if sidecar != nil {
		raw, sidecarErr := s.download(ctx, sidecar.BrowserDownloadURL, "")
		if sidecarErr != nil {
			return "", fmt.Errorf("download %s: %w", sidecar.Name, sidecarErr)
		}

		sum, err = checksum.ParseHex(string(raw))
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", sidecar.Name, err)
		}

		if err = verify(data, sum); err != nil {
			return "", fmt.Errorf("%s: %w", asset.Name, err)
		}

		logger.InfoKV(ctx, "Verified archive checksum", "sha256", checksum.Hex(sum))
	} else {
		actual, sumErr := checksum.Bytes(data)
		if sumErr != nil {
			return "", sumErr
		}

		logger.InfoKV(ctx, "No checksum asset published, downloaded without verification",
			"sha256", checksum.Hex(actual))
	}

	return s.repo.Store(ctx, desc.Version, platform, minGitFilename, data, sum)
}

// Source returns the path of the git source tarball for the descriptor,
// downloading it from the configured mirror on a cache miss. Checksums
// pinned in the settings file are enforced; versions without a pinned
// checksum are downloaded without verification.
func (s *Service) Source(ctx context.Context, desc release.Descriptor) (string, error) {
	filename := desc.SourceTarball()

	if path, err := s.repo.Resolve(ctx, desc.Version, sourcePlatform, filename); err == nil {
		logger.InfoKV(ctx, "Using cached source tarball", "path", path)

		return path, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		return "", err
	}

	tarballURL, err := url.JoinPath(s.cfg.SourceMirror, filename)
	if err != nil {
		return "", fmt.Errorf("compose source URL: %w", err)
	}

	logger.InfoKV(ctx, "Downloading source tarball", "url", tarballURL)

	data, err := s.download(ctx, tarballURL, "")
	if err != nil {
		return "", fmt.Errorf("download %s: %w", filename, err)
	}

	var sum []byte

	if pinned, ok := s.cfg.SourceChecksums[desc.Version]; ok {
		sum, err = checksum.ParseHex(pinned)
		if err != nil {
			return "", fmt.Errorf("parse pinned checksum for %s: %w", desc.Version, err)
		}

		if err = verify(data, sum); err != nil {
			return "", fmt.Errorf("%s: %w", filename, err)
		}

		logger.InfoKV(ctx, "Verified tarball checksum", "sha256", checksum.Hex(sum))
	} else {
		actual, sumErr := checksum.Bytes(data)
		if sumErr != nil {
			return "", sumErr
		}

		logger.InfoKV(ctx, "No checksum pinned for this version, downloaded without verification",
			"sha256", checksum.Hex(actual))
	}

	return s.repo.Store(ctx, desc.Version, sourcePlatform, filename, data, sum)
}

// windowsRelease looks up the Git for Windows release for the version.
func (s *Service) windowsRelease(ctx context.Context, desc release.Descriptor) (*githubRelease, error) {
	releaseURL, err := url.JoinPath(s.cfg.GitHubAPIURL, gitForWindowsRepo, "releases", "tags", desc.WindowsReleaseTag())
	if err != nil {
		return nil, fmt.Errorf("compose release URL: %w", err)
	}

	data, err := s.download(ctx, releaseURL, githubAcceptHeader)
	if err != nil {
		if errors.Is(err, errNotFoundStatus) {
			return nil, fmt.Errorf("%w %s (tag %s)", errReleaseNotFound, desc.Version, desc.WindowsReleaseTag())
		}

		return nil, fmt.Errorf("fetch release info: %w", err)
	}

	var rel githubRelease
	if err = json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("decode release info: %w", err)
	}

	return &rel, nil
}

// findMinGitAsset selects the MinGit archive for the platform and its
// .sha256 sidecar when published.
func findMinGitAsset(rel *githubRelease, platform release.Platform) (archive, sidecar *githubAsset, err error) {
	pattern, ok := platform.MinGitAssetPattern()
	if !ok {
		return nil, nil, fmt.Errorf("%w: platform %s has no MinGit distribution", errAssetNotFound, platform)
	}

	for i := range rel.Assets {
		if !pattern.MatchString(rel.Assets[i].Name) {
			continue
		}

		archive = &rel.Assets[i]

		sidecarName := archive.Name + ".sha256"
		for j := range rel.Assets {
			if rel.Assets[j].Name == sidecarName {
				sidecar = &rel.Assets[j]

				break
			}
		}

		return archive, sidecar, nil
	}

	return nil, nil, fmt.Errorf("%w: no MinGit asset for platform %s in release %s",
		errAssetNotFound, platform, rel.TagName)
}

// download fetches a URL into memory with the configured User-Agent.
func (s *Service) download(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", s.cfg.UserAgent)

	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	response, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path.Base(rawURL), errNotFoundStatus)
	}

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	return io.ReadAll(response.Body)
}

// verify compares the data digest against the expected checksum.
func verify(data, expected []byte) error {
	actual, err := checksum.Bytes(data)
	if err != nil {
		return err
	}

	if !bytes.Equal(actual, expected) {
		return fmt.Errorf("%w: expected %s, got %s",
			errChecksumMismatch, checksum.Hex(expected), checksum.Hex(actual))
	}

	return nil
}
