package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/git-wheelhouse/internal/config"
	"github.com/oshokin/git-wheelhouse/internal/service/packager"
	"github.com/oshokin/git-wheelhouse/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// gitVersion is the git release to package.
	gitVersion string

	// platforms are the requested platform tags.
	platforms []string

	// binaryDir is the normalized binary layout for macOS/Linux wheels.
	binaryDir string

	// outputDir overrides the configured wheel output directory.
	outputDir string

	// cacheDir overrides the configured download cache directory.
	cacheDir string

	// buildDate pins the YYYYMMDD version component for reproducible runs.
	buildDate string

	// rootCmd represents the base command for assembling git wheels.
	rootCmd = &cobra.Command{
		Use:   "wheelhouse-packager",
		Short: "Package git binaries into Python wheels",
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ConfigPath: configPath,
				Version:    gitVersion,
				Platforms:  platforms,
				BinaryDir:  binaryDir,
				OutputDir:  outputDir,
				CacheDir:   cacheDir,
				BuildDate:  buildDate,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the wheelhouse-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" when present)")
	rootCmd.Flags().StringVar(&gitVersion, "version", "", "git version to package, e.g. 2.47.1")
	rootCmd.Flags().StringSliceVar(&platforms, "platform", nil,
		"platform tag to package, repeatable; \"all\" selects every supported platform")
	rootCmd.Flags().StringVar(&binaryDir, "binary-dir", "", "normalized binary layout consumed for macOS and Linux wheels")
	rootCmd.Flags().StringVar(&outputDir, "outdir", "", "wheel output directory, overrides the configured one")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "download cache directory, overrides the configured one")
	rootCmd.Flags().StringVar(&buildDate, "build-date", "", "YYYYMMDD version component, defaults to today in UTC")

	_ = rootCmd.MarkFlagRequired("version")
	_ = rootCmd.MarkFlagRequired("platform")
}
