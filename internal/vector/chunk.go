package vector

import (
	"context"
	"time"
)

// Chunk is an embedded window of a source document. Ordinal is its position
// in the index and never changes after a build.
type Chunk struct {
	ID        string    `json:"id"`
	Ordinal   int       `json:"ordinal"`
	Source    string    `json:"source"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
}

// Meta describes a persisted index.
type Meta struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Count     int       `json:"count"`
	BuiltAt   time.Time `json:"built_at"`
}

// Snapshot is everything a Store persists: the vectors travel inside the
// chunks so the two artifacts cannot drift apart in memory.
type Snapshot struct {
	Meta   Meta
	Chunks []Chunk
}

// Store persists snapshots. Save must be all-or-nothing. Load returns
// ErrNotBuilt when nothing (or only part of a snapshot) has been saved.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
}

// Embedder computes one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is one search result.
type Hit struct {
	Chunk    Chunk
	Rank     int // 1-based
	Distance float64
}

// Check verifies a snapshot's internal consistency.
func (s *Snapshot) Check() error {
	if s.Meta.Count != len(s.Chunks) {
		return fmtInconsistent("meta count %d, %d chunks", s.Meta.Count, len(s.Chunks))
	}
	for i, c := range s.Chunks {
		if c.Ordinal != i {
			return fmtInconsistent("chunk at %d has ordinal %d", i, c.Ordinal)
		}
		if len(c.Embedding) != s.Meta.Dimension {
			return fmtInconsistent("chunk %d has %d dimensions, want %d", i, len(c.Embedding), s.Meta.Dimension)
		}
	}
	return nil
}
