package release

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Platform is a distribution platform tag, e.g. "linux_x86_64".
type Platform string

// Supported platforms. Const names follow GOARCH spellings,
// values keep the distribution tags used in wheel filenames and CLI flags.
const (
	PlatformWinAMD64   Platform = "win_amd64"
	PlatformWinARM64   Platform = "win_arm64"
	PlatformWin32      Platform = "win32"
	PlatformMacAMD64   Platform = "macos_x86_64"
	PlatformMacARM64   Platform = "macos_arm64"
	PlatformLinuxAMD64 Platform = "linux_x86_64"
	PlatformLinuxARM64 Platform = "linux_aarch64"
)

// PlatformAll is the CLI pseudo-tag expanding to every supported platform.
const PlatformAll = "all"

// buildDateLayout is the format of the fourth wheel version component.
const buildDateLayout = "20060102"

var (
	// ErrUnsupportedPlatform is returned for any platform tag outside the
	// supported set. It is fatal: unknown platforms are never skipped.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// errVersionRequired is returned when a descriptor is built without a version.
	errVersionRequired = errors.New("git version must be provided")
)

// wheelTags maps platforms to Python wheel platform tags.
// macOS targets follow python-build-standalone conventions:
// 10.15 (Catalina) for Intel, 11.0 (Big Sur) for Apple Silicon.
// Linux binaries are static, so each tag carries both manylinux and musllinux.
var wheelTags = map[Platform]string{
	PlatformWinAMD64:   "win_amd64",
	PlatformWinARM64:   "win_arm64",
	PlatformWin32:      "win32",
	PlatformMacAMD64:   "macosx_10_15_x86_64",
	PlatformMacARM64:   "macosx_11_0_arm64",
	PlatformLinuxAMD64: "manylinux_2_17_x86_64.musllinux_1_1_x86_64",
	PlatformLinuxARM64: "manylinux_2_17_aarch64.musllinux_1_1_aarch64",
}

// minGitPatterns maps Windows platforms to their MinGit asset name patterns
// in Git for Windows releases.
var minGitPatterns = map[Platform]*regexp.Regexp{
	PlatformWinAMD64: regexp.MustCompile(`MinGit-[\d.]+-64-bit\.zip$`),
	PlatformWinARM64: regexp.MustCompile(`MinGit-[\d.]+-arm64\.zip$`),
	PlatformWin32:    regexp.MustCompile(`MinGit-[\d.]+-32-bit\.zip$`),
}

// goArch maps platforms to GOARCH-style architecture names,
// used to pin container platforms for Linux builds.
var goArch = map[Platform]string{
	PlatformWinAMD64:   "amd64",
	PlatformWinARM64:   "arm64",
	PlatformWin32:      "386",
	PlatformMacAMD64:   "amd64",
	PlatformMacARM64:   "arm64",
	PlatformLinuxAMD64: "amd64",
	PlatformLinuxARM64: "arm64",
}

// AllPlatforms returns every supported platform in stable order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformWinAMD64,
		PlatformWinARM64,
		PlatformWin32,
		PlatformMacAMD64,
		PlatformMacARM64,
		PlatformLinuxAMD64,
		PlatformLinuxARM64,
	}
}

// ParsePlatform validates a raw platform tag.
// Unknown tags fail with ErrUnsupportedPlatform naming the supported set.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.TrimSpace(s))
	if _, ok := wheelTags[p]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedPlatform, s, supportedList())
	}

	return p, nil
}

// ExpandPlatforms parses a list of raw tags, expanding the "all" pseudo-tag
// to the full supported set. Duplicates are removed, order is preserved.
func ExpandPlatforms(raw []string) ([]Platform, error) {
	seen := make(map[Platform]struct{}, len(wheelTags))
	result := make([]Platform, 0, len(wheelTags))

	appendOne := func(p Platform) {
		if _, ok := seen[p]; ok {
			return
		}

		seen[p] = struct{}{}

		result = append(result, p)
	}

	for _, s := range raw {
		if strings.TrimSpace(s) == PlatformAll {
			for _, p := range AllPlatforms() {
				appendOne(p)
			}

			continue
		}

		p, err := ParsePlatform(s)
		if err != nil {
			return nil, err
		}

		appendOne(p)
	}

	return result, nil
}

// String returns the distribution tag.
func (p Platform) String() string {
	return string(p)
}

// IsWindows reports whether the platform is packaged from MinGit archives.
func (p Platform) IsWindows() bool {
	return strings.HasPrefix(string(p), "win")
}

// IsDarwin reports whether the platform is built natively on macOS.
func (p Platform) IsDarwin() bool {
	return strings.HasPrefix(string(p), "macos")
}

// IsLinux reports whether the platform is built inside a container.
func (p Platform) IsLinux() bool {
	return strings.HasPrefix(string(p), "linux")
}

// WheelTag returns the Python wheel platform tag for this platform.
func (p Platform) WheelTag() string {
	return wheelTags[p]
}

// MinGitAssetPattern returns the release asset name pattern for Windows
// platforms. ok is false for platforms that have no MinGit distribution.
func (p Platform) MinGitAssetPattern() (pattern *regexp.Regexp, ok bool) {
	pattern, ok = minGitPatterns[p]

	return pattern, ok
}

// GitExecutable returns the path of the main git executable
// relative to the packaged git tree.
func (p Platform) GitExecutable() string {
	if p.IsWindows() {
		return "cmd/git.exe"
	}

	return "bin/git"
}

// OS returns the GOOS-style operating system name of the platform.
func (p Platform) OS() string {
	switch {
	case p.IsWindows():
		return "windows"
	case p.IsDarwin():
		return "darwin"
	default:
		return "linux"
	}
}

// Arch returns the GOARCH-style architecture name of the platform.
func (p Platform) Arch() string {
	return goArch[p]
}

// Descriptor identifies one packaging target: a git version on a platform.
type Descriptor struct {
	// Version is the upstream git version, e.g. "2.47.1".
	Version string
	// Platform is the validated distribution platform tag.
	Platform Platform
}

// NewDescriptor validates the version and platform and builds a Descriptor.
func NewDescriptor(version, platform string) (Descriptor, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return Descriptor{}, errVersionRequired
	}

	p, err := ParsePlatform(platform)
	if err != nil {
		return Descriptor{}, err
	}

	return Descriptor{Version: version, Platform: p}, nil
}

// WheelVersion returns the four-component wheel version:
// the git version with '-' replaced by '.', then the build date,
// e.g. "2.47.1" + "20260118" -> "2.47.1.20260118".
// Prerelease versions like "2.48.0-rc1" become "2.48.0.rc1.<date>".
func (d Descriptor) WheelVersion(buildDate string) string {
	return strings.ReplaceAll(d.Version, "-", ".") + "." + buildDate
}

// WindowsReleaseTag returns the Git for Windows release tag for this version,
// e.g. "v2.47.1.windows.1".
func (d Descriptor) WindowsReleaseTag() string {
	return "v" + d.Version + ".windows.1"
}

// SourceTarball returns the upstream source archive filename for this version.
func (d Descriptor) SourceTarball() string {
	return "git-" + d.Version + ".tar.xz"
}

// BuildDate validates a YYYYMMDD build date string,
// returning today's UTC date when the input is empty.
func BuildDate(s string) (string, error) {
	if s == "" {
		return time.Now().UTC().Format(buildDateLayout), nil
	}

	if _, err := time.Parse(buildDateLayout, s); err != nil {
		return "", fmt.Errorf("invalid build date %q (want YYYYMMDD): %w", s, err)
	}

	return s, nil
}

// supportedList renders the supported tags for error messages.
func supportedList() string {
	tags := make([]string, 0, len(wheelTags))
	for p := range wheelTags {
		tags = append(tags, string(p))
	}

	sort.Strings(tags)

	return strings.Join(tags, ", ")
}
