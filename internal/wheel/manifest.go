package wheel

import (
	"fmt"
	"sort"
	"strings"
)

// Manifest is the metadata record embedded in a wheel. It is synthesized
// once per build and rendered into the dist-info files at emission time.
type Manifest struct {
	// Name is the distribution name, e.g. "python_git_bin".
	Name string
	// Version is the full wheel version including the build date component.
	Version string
	// Tag is the compressed wheel tag, e.g. "py3-none-win_amd64".
	Tag string
	// Summary is the one-line project description.
	Summary string
	// Description is the long description body appended to METADATA.
	Description string
	// DescriptionContentType declares the markup of Description.
	DescriptionContentType string
	// LicenseExpression is the SPDX license expression.
	LicenseExpression string
	// LicenseFiles are paths relative to the dist-info directory where
	// license texts are archived, e.g. "licenses/COPYING".
	LicenseFiles []string
	// Classifiers are trove classifiers, rendered in order.
	Classifiers []string
	// ProjectURLs are "Label, URL" pairs, rendered in order.
	ProjectURLs []string
	// RequiresPython constrains compatible interpreter versions.
	RequiresPython string
	// ConsoleScripts maps entry point names to their targets.
	ConsoleScripts map[string]string
}

// generator identifies the producer in the WHEEL file.
const generator = "git-wheelhouse"

// NewGitManifest returns the manifest for a git binary wheel with the
// given version and platform tag.
func NewGitManifest(version, platformTag string) *Manifest {
	return &Manifest{
		Name:                   "python_git_bin",
		Version:                version,
		Tag:                    "py3-none-" + platformTag,
		Summary:                "Git - fast, scalable, distributed revision control system",
		Description:            "Git distributed as a Python package.",
		DescriptionContentType: "text/markdown",
		LicenseExpression:      "GPL-2.0-only",
		Classifiers: []string{
			"Development Status :: 5 - Production/Stable",
			"Intended Audience :: Developers",
			"Topic :: Software Development :: Version Control :: Git",
			"Programming Language :: C",
			"License :: OSI Approved :: GNU General Public License v2 (GPLv2)",
		},
		ProjectURLs: []string{
			"Homepage, https://git-scm.com",
			"Source Code, https://github.com/git/git",
		},
		RequiresPython: ">=3.8",
		ConsoleScripts: map[string]string{
			"git": "python_git_bin:main",
		},
	}
}

// Filename returns the wheel filename: <name>-<version>-<tag>.whl.
func (m *Manifest) Filename() string {
	return fmt.Sprintf("%s-%s-%s.whl", m.Name, m.Version, m.Tag)
}

// DistInfo returns the dist-info directory name inside the archive.
func (m *Manifest) DistInfo() string {
	return fmt.Sprintf("%s-%s.dist-info", m.Name, m.Version)
}

// ExpandedTags expands the compressed tag into its full tag set.
// Each dot-separated component of the python, ABI and platform parts is
// crossed with the others, one WHEEL Tag line per combination.
func (m *Manifest) ExpandedTags() []string {
	return ExpandTag(m.Tag)
}

// ExpandTag expands a compressed wheel tag such as
// "py3-none-manylinux_2_17_x86_64.musllinux_1_1_x86_64" into
// its individual tags.
func ExpandTag(tag string) []string {
	parts := strings.SplitN(tag, "-", 3)
	if len(parts) != 3 {
		return []string{tag}
	}

	var expanded []string

	for _, platform := range strings.Split(parts[2], ".") {
		for _, abi := range strings.Split(parts[1], ".") {
			for _, python := range strings.Split(parts[0], ".") {
				expanded = append(expanded, python+"-"+abi+"-"+platform)
			}
		}
	}

	return expanded
}

// RenderMetadata renders the METADATA file: RFC 822 style headers,
// a blank line, then the long description.
func (m *Manifest) RenderMetadata() []byte {
	var b strings.Builder

	writeHeader(&b, "Metadata-Version", "2.4")
	writeHeader(&b, "Name", m.Name)
	writeHeader(&b, "Version", m.Version)

	if m.Summary != "" {
		writeHeader(&b, "Summary", m.Summary)
	}

	if m.DescriptionContentType != "" {
		writeHeader(&b, "Description-Content-Type", m.DescriptionContentType)
	}

	if m.LicenseExpression != "" {
		writeHeader(&b, "License-Expression", m.LicenseExpression)
	}

	for _, file := range m.LicenseFiles {
		writeHeader(&b, "License-File", file)
	}

	for _, classifier := range m.Classifiers {
		writeHeader(&b, "Classifier", classifier)
	}

	for _, projectURL := range m.ProjectURLs {
		writeHeader(&b, "Project-URL", projectURL)
	}

	if m.RequiresPython != "" {
		writeHeader(&b, "Requires-Python", m.RequiresPython)
	}

	b.WriteString("\n")
	b.WriteString(m.Description)

	return []byte(b.String())
}

// RenderWheel renders the WHEEL file with one Tag line per expanded tag.
func (m *Manifest) RenderWheel() []byte {
	var b strings.Builder

	writeHeader(&b, "Wheel-Version", "1.0")
	writeHeader(&b, "Generator", generator)
	writeHeader(&b, "Root-Is-Purelib", "false")

	for _, tag := range m.ExpandedTags() {
		writeHeader(&b, "Tag", tag)
	}

	return []byte(b.String())
}

// RenderEntryPoints renders entry_points.txt with the console scripts.
func (m *Manifest) RenderEntryPoints() []byte {
	var b strings.Builder

	b.WriteString("[console_scripts]\n")

	for _, name := range sortedKeys(m.ConsoleScripts) {
		fmt.Fprintf(&b, "%s = %s\n", name, m.ConsoleScripts[name])
	}

	return []byte(b.String())
}

func writeHeader(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\n")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
