// Package indexer reads workspace files, extracts their symbols, and
// fans the resulting file updates out to the persistent stores and the
// running server.
package indexer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codenav/internal/core/treesitter"
	"codenav/internal/core/walk"
	"codenav/internal/index/sqlite"
	"codenav/internal/querydb"
	"codenav/internal/search"
)

// Extractor produces symbol declarations for one file. Satisfied by
// *treesitter.Provider.
type Extractor interface {
	Extract(path string, src []byte) (*treesitter.Result, error)
}

type Options struct {
	Root        string
	WorkspaceID string
	Workers     int
	Walk        walk.Options

	Provider Extractor
	Store    *sqlite.Store
	Search   *search.Store

	// Deliver receives every finished update, typically Server.PostUpdate.
	Deliver func(*querydb.FileUpdate)
}

type Indexer struct {
	opts  Options
	queue chan string

	wg      sync.WaitGroup // workers
	pending sync.WaitGroup // queued files
	once    sync.Once
}

func New(opts Options) (*Indexer, error) {
	if strings.TrimSpace(opts.Root) == "" {
		return nil, fmt.Errorf("root is required")
	}
	opts.Root = filepath.Clean(opts.Root)
	if opts.WorkspaceID == "" {
		opts.WorkspaceID = opts.Root
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Provider == nil {
		opts.Provider = treesitter.NewProvider()
	}

	ix := &Indexer{
		opts:  opts,
		queue: make(chan string, 256),
	}
	for i := 0; i < opts.Workers; i++ {
		ix.wg.Add(1)
		go ix.worker()
	}
	return ix, nil
}

// Enqueue schedules one file for (re)indexing. Safe from any goroutine.
func (ix *Indexer) Enqueue(path string) {
	if ix == nil || strings.TrimSpace(path) == "" {
		return
	}
	ix.pending.Add(1)
	ix.queue <- path
}

// Wait blocks until every queued file has been processed.
func (ix *Indexer) Wait() { ix.pending.Wait() }

// Close stops the workers after the queue drains.
func (ix *Indexer) Close() {
	ix.once.Do(func() {
		ix.pending.Wait()
		close(ix.queue)
	})
	ix.wg.Wait()
}

// IndexAll walks the workspace and enqueues every source file whose size
// or mtime changed since it was last persisted. Returns the number of
// files scheduled.
func (ix *Indexer) IndexAll() (int, error) {
	files, err := walk.ListFiles(ix.opts.Root, ix.opts.Walk)
	if err != nil {
		return 0, err
	}

	if ix.opts.Store != nil {
		if err := ix.opts.Store.EnsureWorkspace(ix.opts.WorkspaceID, ix.opts.Root); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, rel := range files {
		full := filepath.Join(ix.opts.Root, filepath.FromSlash(rel))
		if ix.opts.Store != nil {
			st, err := os.Stat(full)
			if err != nil {
				continue
			}
			size, mtime, known, err := ix.opts.Store.FileMeta(ix.opts.WorkspaceID, rel)
			if err == nil && known && size == st.Size() && mtime == st.ModTime().Unix() {
				continue
			}
		}
		ix.Enqueue(full)
		n++
	}
	return n, nil
}

func (ix *Indexer) worker() {
	defer ix.wg.Done()
	for path := range ix.queue {
		if err := ix.indexFile(path); err != nil {
			log.Printf("index %s: %v", path, err)
		}
		ix.pending.Done()
	}
}

func (ix *Indexer) indexFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if isBinary(src) {
		return nil
	}

	res, err := ix.opts.Provider.Extract(path, src)
	switch err {
	case nil:
	case treesitter.ErrDisabled, treesitter.ErrUnsupported:
		// Still produce an (empty) update so requests stop waiting on
		// this file.
		res = &treesitter.Result{}
	default:
		return err
	}

	u, err := BuildUpdate(path, src, res)
	if err != nil {
		return err
	}

	if err := ix.persist(path, src, u); err != nil {
		return err
	}
	if ix.opts.Deliver != nil {
		ix.opts.Deliver(u)
	}
	return nil
}

func (ix *Indexer) persist(path string, src []byte, u *querydb.FileUpdate) error {
	rel := relPath(ix.opts.Root, path)

	if ix.opts.Store != nil {
		st, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := ix.opts.Store.UpsertFile(ix.opts.WorkspaceID, rel, st.Size(), st.ModTime().Unix()); err != nil {
			return err
		}
		stored := *u
		stored.Path = rel
		stored.Content = ""
		if err := ix.opts.Store.ReplaceFileIndex(ix.opts.WorkspaceID, &stored); err != nil {
			return err
		}
	}

	if ix.opts.Search != nil {
		docs := make([]search.SymbolDoc, 0, len(u.Symbols))
		for _, sym := range u.Symbols {
			docs = append(docs, search.SymbolDoc{
				Name:     sym.Name,
				Detailed: sym.Detailed,
				Path:     u.Path,
				Kind:     sym.Kind.String(),
				Line:     int(sym.Spell.Start.Line),
			})
		}
		if err := ix.opts.Search.ReplaceFileSymbols(u.Path, docs); err != nil {
			return err
		}
	}
	return nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func isBinary(b []byte) bool {
	for _, c := range b {
		if c == 0 {
			return true
		}
	}
	return false
}
