package navcli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"codenav/internal/config"
	"codenav/internal/search"
)

func newSymbolsCommand() *cobra.Command {
	var (
		root  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "symbols <query>",
		Short: "Search indexed symbols by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confPath, _ := cmd.Flags().GetString("config")
			conf, err := config.Load(confPath)
			if err != nil {
				return err
			}

			searchPath := conf.Index.SearchPath
			if searchPath == "" {
				abs, err := filepath.Abs(root)
				if err != nil {
					return err
				}
				searchPath = filepath.Join(abs, ".codenav", "search")
			}

			se, err := search.Open(searchPath)
			if err != nil {
				return err
			}
			defer se.Close()

			hits, err := se.Search(args[0], limit)
			if err != nil {
				return err
			}
			for _, h := range hits {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s:%d\t%s\t%s\n",
					h.Path, h.Line+1, h.Kind, h.Detailed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "workspace root (used when config has no search path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of results")
	return cmd
}
