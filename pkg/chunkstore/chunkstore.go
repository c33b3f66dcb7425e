package chunkstore

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// metaKey is the sentinel chunk key CreateTree writes so a tree shows up
// in Trees() before it has ever been flushed.
const metaKey = ".meta"

var bucketChunks = []byte("chunks")

// Store is the durable backing store for flushed LSM chunk payloads. A
// chunk's key is "<tree>/<chunk-id>"; the value is whatever opaque byte
// payload pkg/engine hands it (the chunk's newline-joined keys, or a
// serialized Bloom filter under "<tree>/<chunk-id>.bloom").
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the chunk database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "cellardb.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("chunkstore: open %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChunks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("chunkstore: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func chunkKey(tree, chunkID string) []byte {
	return []byte(tree + "/" + chunkID)
}

// Write durably stores data under (tree, chunkID), overwriting any
// existing payload. Called once per chunk, by Checkpoint; once per
// merged output chunk, by Merge; once per built filter, by BuildBloom;
// and by CreateTree for its sentinel key.
func (s *Store) Write(tree, chunkID string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		return b.Put(chunkKey(tree, chunkID), data)
	})
}

// Read returns the payload stored for (tree, chunkID). Returns an error
// if no such chunk has ever been written.
func (s *Store) Read(tree, chunkID string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		v := b.Get(chunkKey(tree, chunkID))
		if v == nil {
			return fmt.Errorf("chunkstore: no payload for %s/%s", tree, chunkID)
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Delete removes the stored payload for (tree, chunkID), used once a
// merge has folded a chunk's data into a new output chunk.
func (s *Store) Delete(tree, chunkID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		return b.Delete(chunkKey(tree, chunkID))
	})
}

// CreateTree records tree's existence so it appears in Trees() even
// before anything has been flushed for it.
func (s *Store) CreateTree(tree string) error {
	return s.Write(tree, metaKey, nil)
}

// Trees returns the distinct tree names with at least one key in the
// store (via CreateTree, Write, or a completed merge), sorted.
func (s *Store) Trees() ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChunks)
		return b.ForEach(func(k, _ []byte) error {
			name, _, found := strings.Cut(string(k), "/")
			if found {
				seen[name] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("chunkstore: list trees: %w", err)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
