// Package search maintains the bleve index behind workspace/symbol. Symbol
// names are indexed per file with replace semantics; a small bbolt sidecar
// keeps the per-file document ids and the index version.
package search

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"go.etcd.io/bbolt"
)

const (
	bucketFiles = "files"
	bucketMeta  = "meta"
	keyVersion  = "version"
)

type SymbolDoc struct {
	Name     string `json:"name"`
	Detailed string `json:"detailed"`
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Line     int    `json:"line"`
	Char     int    `json:"char"`
}

type Hit struct {
	Name     string
	Detailed string
	Path     string
	Kind     string
	Line     int
	Char     int
	Score    float64
}

type Store struct {
	mu       sync.Mutex
	path     string
	metaPath string
	idx      bleve.Index
	meta     *bbolt.DB
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("search path is required")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	var idx bleve.Index
	if _, err := os.Stat(filepath.Join(path, "index_meta.json")); err == nil {
		idx, err = bleve.Open(path)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		idx, err = bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return nil, err
		}
	}

	metaPath := filepath.Join(path, "codenav-meta.db")
	meta, err := bbolt.Open(metaPath, 0o600, nil)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}

	s := &Store{path: path, metaPath: metaPath, idx: idx, meta: meta}
	if err := s.ensureBuckets(); err != nil {
		_ = meta.Close()
		_ = idx.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBuckets() error {
	return s.meta.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketFiles, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if s.meta != nil {
		if err := s.meta.Close(); err != nil {
			firstErr = err
		}
		s.meta = nil
	}
	if s.idx != nil {
		if err := s.idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.idx = nil
	}
	return firstErr
}

// ReplaceFileSymbols swaps the indexed symbols of one file in a single
// bleve batch.
func (s *Store) ReplaceFileSymbols(path string, docs []SymbolDoc) error {
	if s == nil || s.idx == nil {
		return fmt.Errorf("search store is not open")
	}
	path = filepath.ToSlash(strings.TrimSpace(path))
	if path == "" {
		return fmt.Errorf("path is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var oldCount int
	if err := s.meta.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketFiles)).Get([]byte(path))
		if len(raw) > 0 {
			return json.Unmarshal(raw, &oldCount)
		}
		return nil
	}); err != nil {
		return err
	}

	batch := s.idx.NewBatch()
	for i := 0; i < oldCount; i++ {
		batch.Delete(docID(path, i))
	}
	for i, doc := range docs {
		if err := batch.Index(docID(path, i), doc); err != nil {
			return err
		}
	}
	if err := s.idx.Batch(batch); err != nil {
		return err
	}

	return s.meta.Update(func(tx *bbolt.Tx) error {
		raw, err := json.Marshal(len(docs))
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(bucketFiles)).Put([]byte(path), raw); err != nil {
			return err
		}
		return bumpVersion(tx)
	})
}

func docID(path string, i int) string {
	return fmt.Sprintf("%s#%d", path, i)
}

func bumpVersion(tx *bbolt.Tx) error {
	b := tx.Bucket([]byte(bucketMeta))
	var v int64
	if raw := b.Get([]byte(keyVersion)); len(raw) > 0 {
		_ = json.Unmarshal(raw, &v)
	}
	raw, err := json.Marshal(v + 1)
	if err != nil {
		return err
	}
	return b.Put([]byte(keyVersion), raw)
}

func (s *Store) Version() (int64, error) {
	if s == nil || s.meta == nil {
		return 0, fmt.Errorf("search store is not open")
	}
	var v int64
	err := s.meta.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket([]byte(bucketMeta)).Get([]byte(keyVersion)); len(raw) > 0 {
			return json.Unmarshal(raw, &v)
		}
		return nil
	})
	return v, err
}

// Search runs a fuzzy-ish name lookup: exact matches score ahead of prefix
// matches.
func (s *Store) Search(q string, limit int) ([]Hit, error) {
	if s == nil || s.idx == nil {
		return nil, fmt.Errorf("search store is not open")
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		limit = 50
	}

	match := bleve.NewMatchQuery(q)
	match.SetField("name")
	prefix := bleve.NewPrefixQuery(strings.ToLower(q))
	prefix.SetField("name")
	query := bleve.NewDisjunctionQuery(match, prefix)

	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.Fields = []string{"name", "detailed", "path", "kind", "line", "char"}
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, dm := range res.Hits {
		h := Hit{Score: dm.Score}
		if v, ok := dm.Fields["name"].(string); ok {
			h.Name = v
		}
		if v, ok := dm.Fields["detailed"].(string); ok {
			h.Detailed = v
		}
		if v, ok := dm.Fields["path"].(string); ok {
			h.Path = v
		}
		if v, ok := dm.Fields["kind"].(string); ok {
			h.Kind = v
		}
		if v, ok := dm.Fields["line"].(float64); ok {
			h.Line = int(v)
		}
		if v, ok := dm.Fields["char"].(float64); ok {
			h.Char = int(v)
		}
		hits = append(hits, h)
	}
	return hits, nil
}
