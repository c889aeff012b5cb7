package navd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"codenav/internal/config"
	"codenav/internal/core/indexer"
	"codenav/internal/core/walk"
	"codenav/internal/core/watch"
	"codenav/internal/index/sqlite"
	"codenav/internal/search"
)

// Runtime wires the server to its indexing pipeline: the SQLite index,
// the bleve symbol search, the background indexer and the filesystem
// watcher.
type Runtime struct {
	Server  *Server
	Indexer *indexer.Indexer

	root    string
	store   *sqlite.Store
	search  *search.Store
	watcher *watch.Watcher
	cancel  context.CancelFunc
}

// NewRuntime assembles everything around a workspace root. Previously
// indexed files are loaded back into the query database before the
// server accepts its first request.
func NewRuntime(conf *config.Config, root string) (*Runtime, error) {
	if conf == nil {
		conf = config.Default()
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	root = filepath.Clean(root)
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", root)
	}

	dbPath := strings.TrimSpace(conf.Index.DBPath)
	if dbPath == "" {
		dbPath = filepath.Join(root, ".codenav", "index.db")
	}
	searchPath := strings.TrimSpace(conf.Index.SearchPath)
	if searchPath == "" {
		searchPath = filepath.Join(root, ".codenav", "search")
	}

	rt := &Runtime{root: root}

	rt.store, err = sqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	rt.search, err = search.Open(searchPath)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.Server = NewServer(Options{Conf: conf, Search: rt.search})

	walkOpts := walk.Options{
		IncludeGlobs: conf.Index.IncludeGlobs,
		ExcludeGlobs: conf.Index.ExcludeGlobs,
		ScanAll:      conf.Index.ScanAll,
	}
	rt.Indexer, err = indexer.New(indexer.Options{
		Root:        root,
		WorkspaceID: root,
		Workers:     conf.Index.Workers,
		Walk:        walkOpts,
		Store:       rt.store,
		Search:      rt.search,
		Deliver:     rt.Server.PostUpdate,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Server.Handler().Index = rt.Indexer.Enqueue

	if err := rt.loadPersisted(); err != nil {
		log.Printf("load persisted index: %v", err)
	}

	rt.watcher, err = watch.NewWatcher(root, watch.Options{
		Walk:        walkOpts,
		IgnorePaths: ignoreRels(root, dbPath, searchPath),
		OnChange: func(paths []string) {
			for _, rel := range paths {
				rt.Indexer.Enqueue(filepath.Join(root, filepath.FromSlash(rel)))
			}
		},
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	go func() {
		if err := rt.watcher.Run(ctx); err != nil {
			log.Printf("watch: %v", err)
		}
	}()

	return rt, nil
}

// loadPersisted replays every stored file contribution into the query
// database. Runs before the dispatch loop starts, so direct application
// is safe.
func (rt *Runtime) loadPersisted() error {
	files, err := rt.store.ListFiles(rt.root)
	if err != nil {
		return err
	}
	db := rt.Server.Handler().DB
	for _, rel := range files {
		u, err := rt.store.LoadFileIndex(rt.root, rel)
		if err != nil {
			return err
		}
		full := filepath.Join(rt.root, filepath.FromSlash(rel))
		u.Path = full
		if b, err := os.ReadFile(full); err == nil {
			u.Content = string(b)
		}
		db.ApplyFileUpdate(u)
	}
	return nil
}

func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	if rt.cancel != nil {
		rt.cancel()
	}
	if rt.watcher != nil {
		_ = rt.watcher.Close()
	}
	if rt.Server != nil {
		_ = rt.Server.Close()
	}
	if rt.Indexer != nil {
		rt.Indexer.Close()
	}
	if rt.search != nil {
		_ = rt.search.Close()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

func ignoreRels(root string, paths ...string) []string {
	var rels []string
	for _, p := range paths {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			rels = append(rels, filepath.ToSlash(rel))
		}
	}
	return rels
}
