// Package config defines the settings used by the wheelhouse binaries and
// provides helpers to load, validate and save them in YAML format.
//
// The Config type holds output and cache directories, upstream download
// endpoints, and build parameters. Every field has a default, so all
// binaries run without a settings file present.
package config
