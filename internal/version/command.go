package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand registers a `version` subcommand on root
// that prints the full build metadata.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print the version, commit hash, and build timestamp stamped into this binary at build time.",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	})
}
