package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/git-wheelhouse/internal/config"
	"github.com/oshokin/git-wheelhouse/internal/service/builder"
	"github.com/oshokin/git-wheelhouse/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// outputDir is the root under which the per-platform layout is written.
	outputDir string

	// keepWork preserves the temporary build directory for debugging.
	keepWork bool

	// rootCmd represents the base command for building git from source.
	rootCmd = &cobra.Command{
		Use:   "wheelhouse-builder [git-version] [platform]",
		Short: "Build git binaries for one platform from source",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &builder.Options{
				ConfigPath: configPath,
				Version:    args[0],
				Platform:   args[1],
				OutputDir:  outputDir,
				KeepWork:   keepWork,
			}

			return builder.Run(ctx, options)
		},
	}
)

// Execute runs the wheelhouse-builder CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVar(&outputDir, "output", "build/output", "root directory for the normalized binary layout")
	rootCmd.Flags().BoolVar(&keepWork, "keep-work", false, "keep the temporary build directory after the build")
}
