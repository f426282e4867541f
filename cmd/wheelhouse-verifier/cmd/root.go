package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/git-wheelhouse/internal/service/verifier"
	"github.com/oshokin/git-wheelhouse/internal/version"
)

// rootCmd represents the base command for checking emitted wheels.
var rootCmd = &cobra.Command{
	Use:   "wheelhouse-verifier [wheel]...",
	Short: "Verify wheel archives against their RECORD and metadata",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return verifier.Run(ctx, &verifier.Options{WheelPaths: args})
	},
}

// Execute runs the wheelhouse-verifier CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
