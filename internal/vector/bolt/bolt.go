// Package bolt persists the vector index in a single bbolt file.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/efebarandurmaz/courtside/internal/vector"
)

var (
	bucketMeta   = []byte("meta")
	bucketIndex  = []byte("index")
	bucketChunks = []byte("chunks")

	keyMeta = []byte("meta")
)

// Store writes snapshots to a bbolt file. The file is opened per operation;
// bbolt's file lock keeps a second process from writing concurrently.
type Store struct {
	path    string
	timeout time.Duration
}

// New returns a Store backed by the file at path.
func New(path string) *Store {
	return &Store{path: path, timeout: 5 * time.Second}
}

func (s *Store) Path() string { return s.path }

// Save replaces all three buckets in one transaction.
func (s *Store) Save(ctx context.Context, snap *vector.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	db, err := bbolt.Open(s.path, 0600, &bbolt.Options{Timeout: s.timeout})
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer db.Close()

	meta, err := json.Marshal(snap.Meta)
	if err != nil {
		return err
	}

	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketIndex, bucketChunks} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		mb, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		ib, err := tx.CreateBucket(bucketIndex)
		if err != nil {
			return err
		}
		cb, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}

		for _, c := range snap.Chunks {
			key := ordinalKey(c.Ordinal)
			if err := ib.Put(key, encodeVector(c.Embedding)); err != nil {
				return err
			}
			data, err := json.Marshal(c)
			if err != nil {
				return err
			}
			if err := cb.Put(key, data); err != nil {
				return err
			}
		}
		// meta last: a reader that sees it sees everything
		return mb.Put(keyMeta, meta)
	})
}

// Load reads the snapshot back. A missing file or bucket is
// vector.ErrNotBuilt.
func (s *Store) Load(ctx context.Context) (*vector.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, vector.ErrNotBuilt
	}
	db, err := bbolt.Open(s.path, 0600, &bbolt.Options{Timeout: s.timeout, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer db.Close()

	snap := &vector.Snapshot{}
	err = db.View(func(tx *bbolt.Tx) error {
		mb, ib, cb := tx.Bucket(bucketMeta), tx.Bucket(bucketIndex), tx.Bucket(bucketChunks)
		if mb == nil || ib == nil || cb == nil {
			return vector.ErrNotBuilt
		}
		raw := mb.Get(keyMeta)
		if raw == nil {
			return vector.ErrNotBuilt
		}
		if err := json.Unmarshal(raw, &snap.Meta); err != nil {
			return fmt.Errorf("decoding meta: %w", err)
		}

		if n, m := ib.Stats().KeyN, cb.Stats().KeyN; n != m {
			return fmt.Errorf("%w: %d vectors, %d chunks", vector.ErrInconsistentIndex, n, m)
		}
		snap.Chunks = make([]vector.Chunk, 0, snap.Meta.Count)
		return cb.ForEach(func(k, v []byte) error {
			var c vector.Chunk
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decoding chunk %x: %w", k, err)
			}
			vec := ib.Get(k)
			if vec == nil {
				return fmt.Errorf("%w: chunk %d has no vector", vector.ErrInconsistentIndex, c.Ordinal)
			}
			c.Embedding = decodeVector(vec)
			snap.Chunks = append(snap.Chunks, c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func ordinalKey(n int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(n))
	return k
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

var _ vector.Store = (*Store)(nil)
