package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the wheelhouse binaries.
type Config struct {
	// OutputDir is the directory where finished wheels are written.
	OutputDir string `yaml:"output_dir"`
	// CacheDir is the root of the download cache for upstream archives.
	CacheDir string `yaml:"cache_dir"`
	// GitHubAPIURL is the base URL for Git for Windows release lookups.
	GitHubAPIURL string `yaml:"github_api_url"`
	// SourceMirror is the base URL hosting git source tarballs.
	SourceMirror string `yaml:"source_mirror"`
	// Timeout is the per-request duration limit for HTTP downloads.
	Timeout time.Duration `yaml:"timeout"`
	// UserAgent identifies this tool to the GitHub API and mirrors.
	UserAgent string `yaml:"user_agent"`
	// BuildImage is the container image used for Linux builds.
	BuildImage string `yaml:"build_image"`
	// SourceChecksums maps git versions to the expected hex SHA-256
	// of their source tarballs. Versions absent from the map are
	// downloaded without verification.
	SourceChecksums map[string]string `yaml:"source_checksums,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for wheelhouse settings.
	DefaultConfigFilename = "wheelhouse-settings.yaml"

	// DefaultOutputDir is where wheels land when no output directory is set.
	DefaultOutputDir = "dist"

	// DefaultGitHubAPIURL is the public GitHub REST API endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"

	// DefaultSourceMirror is the kernel.org mirror hosting git release tarballs.
	DefaultSourceMirror = "https://mirrors.edge.kernel.org/pub/software/scm/git"

	// DefaultTimeout bounds a single archive download.
	// MinGit archives run to tens of megabytes, so this is generous.
	DefaultTimeout = 10 * time.Minute

	// DefaultUserAgent is sent with every outgoing request.
	// The GitHub API rejects requests without a User-Agent header.
	DefaultUserAgent = "git-wheelhouse (+https://github.com/oshokin/git-wheelhouse)"

	// DefaultBuildImage is a musl-based image suitable for static git builds.
	DefaultBuildImage = "alpine:3.20"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// cacheDirName is the per-user cache subdirectory under the XDG cache home.
	cacheDirName = "git-wheelhouse"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
)

// Default returns a configuration populated with every default value.
func Default() *Config {
	cfg := new(Config)
	fillDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// When path is empty and the default settings file does not exist,
// the defaults are returned so the binaries run without any file present.
// An explicitly provided path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for unset fields and checks URL formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	fillDefaults(cfg)

	if _, err := url.ParseRequestURI(cfg.GitHubAPIURL); err != nil {
		return fmt.Errorf("invalid GitHub API URL: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.SourceMirror); err != nil {
		return fmt.Errorf("invalid source mirror URL: %w", err)
	}

	return nil
}

// fillDefaults replaces every zero-valued field with its default.
func fillDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(xdg.CacheHome, cacheDirName)
	}

	if cfg.GitHubAPIURL == "" {
		cfg.GitHubAPIURL = DefaultGitHubAPIURL
	}

	if cfg.SourceMirror == "" {
		cfg.SourceMirror = DefaultSourceMirror
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.BuildImage == "" {
		cfg.BuildImage = DefaultBuildImage
	}
}
