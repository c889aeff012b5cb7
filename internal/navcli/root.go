// Package navcli implements the codenav command line interface.
package navcli

import (
	"github.com/spf13/cobra"

	"codenav/internal/version"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codenav",
		Short: "Code navigation server and index tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version.String()
	cmd.Flags().BoolP("version", "v", false, "version for codenav")

	cmd.PersistentFlags().String("config", "", "path to a YAML config file")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newIndexCommand())
	cmd.AddCommand(newSymbolsCommand())
	return cmd
}
