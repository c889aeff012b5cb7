package navcli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"codenav/internal/config"
	"codenav/internal/core/indexer"
	"codenav/internal/core/walk"
	"codenav/internal/index/sqlite"
	"codenav/internal/search"
)

func newIndexCommand() *cobra.Command {
	var (
		workers  int
		scanAll  bool
		includes []string
		excludes []string
	)
	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Build (or refresh) the workspace index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confPath, _ := cmd.Flags().GetString("config")
			conf, err := config.Load(confPath)
			if err != nil {
				return err
			}

			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			root, err = filepath.Abs(root)
			if err != nil {
				return err
			}

			dbPath := conf.Index.DBPath
			if dbPath == "" {
				dbPath = filepath.Join(root, ".codenav", "index.db")
			}
			searchPath := conf.Index.SearchPath
			if searchPath == "" {
				searchPath = filepath.Join(root, ".codenav", "search")
			}

			st, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.ApplyBuildPragmas(); err != nil {
				return err
			}

			se, err := search.Open(searchPath)
			if err != nil {
				return err
			}
			defer se.Close()

			if workers <= 0 {
				workers = conf.Index.Workers
			}
			if scanAll {
				conf.Index.ScanAll = true
			}
			if len(includes) > 0 {
				conf.Index.IncludeGlobs = includes
			}
			if len(excludes) > 0 {
				conf.Index.ExcludeGlobs = excludes
			}

			ix, err := indexer.New(indexer.Options{
				Root:        root,
				WorkspaceID: root,
				Workers:     workers,
				Walk: walk.Options{
					IncludeGlobs: conf.Index.IncludeGlobs,
					ExcludeGlobs: conf.Index.ExcludeGlobs,
					ScanAll:      conf.Index.ScanAll,
				},
				Store:  st,
				Search: se,
			})
			if err != nil {
				return err
			}
			n, err := ix.IndexAll()
			if err != nil {
				return err
			}
			ix.Close()

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files\n", n)
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "j", 0, "number of parallel index workers")
	cmd.Flags().BoolVar(&scanAll, "scan-all", false, "ignore .gitignore and hidden-file rules")
	cmd.Flags().StringSliceVarP(&includes, "include", "i", nil, "include globs")
	cmd.Flags().StringSliceVarP(&excludes, "exclude", "x", nil, "exclude globs")
	return cmd
}
