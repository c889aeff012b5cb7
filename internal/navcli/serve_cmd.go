package navcli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"codenav/internal/config"
	"codenav/internal/navd"
)

func newServeCommand() *cobra.Command {
	var (
		listen string
		stdio  bool
	)
	cmd := &cobra.Command{
		Use:   "serve [root]",
		Short: "Serve navigation requests for a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confPath, _ := cmd.Flags().GetString("config")
			conf, err := config.Load(confPath)
			if err != nil {
				return err
			}
			if listen != "" {
				conf.Listen = listen
			}

			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			root, err = filepath.Abs(root)
			if err != nil {
				return err
			}

			rt, err := navd.NewRuntime(conf, root)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.Indexer.IndexAll(); err != nil {
				return err
			}

			if stdio {
				return rt.Server.RunStdio(os.Stdin, os.Stdout)
			}
			return rt.Server.Run()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (tcp), overrides config")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve a single session on stdin/stdout")
	return cmd
}
