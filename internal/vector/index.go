// Package vector holds the embedding index over document chunks: batched
// builds, transactional persistence through a Store, and exact
// nearest-neighbour search.
package vector

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/efebarandurmaz/courtside/internal/ingest"
	"github.com/efebarandurmaz/courtside/internal/observability"
)

// DefaultBatchSize is the number of chunks sent per embedding request.
const DefaultBatchSize = 32

// Index is safe for concurrent Search calls. Builds are serialized.
type Index struct {
	embedder  Embedder
	store     Store
	chunker   ingest.Chunker
	batchSize int
	model     string
	logger    *slog.Logger

	buildMu sync.Mutex

	mu     sync.RWMutex
	chunks []Chunk
	meta   Meta
}

// Option configures an Index.
type Option func(*Index)

func WithChunker(c ingest.Chunker) Option { return func(ix *Index) { ix.chunker = c } }
func WithModel(model string) Option       { return func(ix *Index) { ix.model = model } }
func WithLogger(l *slog.Logger) Option    { return func(ix *Index) { ix.logger = l } }

// WithBatchSize sets the embedding batch size. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// NewIndex creates an empty index. Call Load or Build before searching.
func NewIndex(embedder Embedder, store Store, opts ...Option) *Index {
	ix := &Index{
		embedder:  embedder,
		store:     store,
		chunker:   ingest.DefaultChunker(),
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// BuildReport summarizes a successful build.
type BuildReport struct {
	Documents int
	Chunks    int
	Batches   int
	Dimension int
	Duration  time.Duration
}

// Build replaces the index with one built from docs. The in-memory index
// changes only after the store has committed the new snapshot; on any
// error both stay as they were.
func (ix *Index) Build(ctx context.Context, docs []ingest.Document) (report BuildReport, err error) {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	start := time.Now()
	ctx, span := observability.StartIndexSpan(ctx, "build")
	defer func() {
		report.Duration = time.Since(start)
		observability.Metrics().RecordIndexBuild(report.Duration, report.Chunks, err)
		if err != nil {
			observability.RecordError(span, err)
		} else {
			observability.RecordIndexBuild(span, report.Documents, report.Chunks, report.Batches)
		}
		span.End()
	}()

	report.Documents = len(docs)
	segs, err := ix.chunker.SplitAll(docs)
	if err != nil {
		return report, &BuildError{Reason: "segmenting documents", Err: err}
	}
	if len(segs) == 0 {
		return report, &BuildError{Reason: "no chunks produced"}
	}

	chunks := make([]Chunk, len(segs))
	for i, s := range segs {
		chunks[i] = Chunk{ID: s.ID, Ordinal: i, Source: s.Source, Text: s.Text}
	}

	dim := 0
	for lo := 0; lo < len(chunks); lo += ix.batchSize {
		hi := min(lo+ix.batchSize, len(chunks))
		batch := lo/ix.batchSize + 1
		texts := make([]string, 0, hi-lo)
		for _, c := range chunks[lo:hi] {
			texts = append(texts, c.Text)
		}

		vecs, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return report, &BuildError{Reason: "embedding", Batch: batch, Err: err}
		}
		if len(vecs) != len(texts) {
			return report, &BuildError{Reason: fmt.Sprintf("got %d embeddings for %d chunks", len(vecs), len(texts)), Batch: batch}
		}
		for j, v := range vecs {
			if dim == 0 {
				dim = len(v)
			}
			if len(v) == 0 || len(v) != dim {
				return report, &BuildError{Reason: fmt.Sprintf("embedding dimension %d, want %d", len(v), dim), Batch: batch}
			}
			chunks[lo+j].Embedding = v
		}
		report.Batches = batch
		ix.logger.Debug("embedded batch", "batch", batch, "chunks", len(texts))
	}

	snap := &Snapshot{
		Meta: Meta{
			Model:     ix.model,
			Dimension: dim,
			Count:     len(chunks),
			BuiltAt:   time.Now().UTC(),
		},
		Chunks: chunks,
	}
	if err := ix.store.Save(ctx, snap); err != nil {
		return report, &BuildError{Reason: "persisting index", Err: err}
	}

	ix.swap(snap)
	report.Chunks = len(chunks)
	report.Dimension = dim
	ix.logger.Info("index built", "documents", report.Documents, "chunks", report.Chunks, "batches", report.Batches)
	return report, nil
}

// Load restores the index from the store. On error the in-memory index is
// left untouched.
func (ix *Index) Load(ctx context.Context) error {
	ctx, span := observability.StartIndexSpan(ctx, "load")
	defer span.End()

	snap, err := ix.store.Load(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	if err := snap.Check(); err != nil {
		observability.RecordError(span, err)
		return err
	}
	ix.swap(snap)
	observability.Metrics().IndexChunks.Set(float64(len(snap.Chunks)))
	ix.logger.Info("index loaded", "chunks", len(snap.Chunks), "dimension", snap.Meta.Dimension)
	return nil
}

func (ix *Index) swap(snap *Snapshot) {
	ix.mu.Lock()
	ix.chunks = snap.Chunks
	ix.meta = snap.Meta
	ix.mu.Unlock()
}

// Search returns up to k chunks closest to query by squared Euclidean
// distance. Ties keep index order. An empty index or k <= 0 returns an
// empty result without calling the embedder.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	ix.mu.RLock()
	chunks := ix.chunks
	dim := ix.meta.Dimension
	ix.mu.RUnlock()

	if len(chunks) == 0 || k <= 0 {
		return []Hit{}, nil
	}

	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != dim {
		return nil, fmt.Errorf("query embedding does not match index dimension %d", dim)
	}
	q := vecs[0]

	type scored struct {
		ordinal int
		dist    float64
	}
	all := make([]scored, len(chunks))
	for i, c := range chunks {
		all[i] = scored{ordinal: i, dist: SquaredL2(q, c.Embedding)}
	}
	slices.SortFunc(all, func(a, b scored) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.ordinal, b.ordinal)
	})

	k = min(k, len(all))
	hits := make([]Hit, k)
	for i := range hits {
		hits[i] = Hit{Chunk: chunks[all[i].ordinal], Rank: i + 1, Distance: all[i].dist}
	}
	return hits, nil
}

// SquaredL2 is the squared Euclidean distance between equal-length vectors.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Size is the number of chunks currently searchable.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Stats describes the loaded index.
type Stats struct {
	Size      int       `json:"size"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
	BuiltAt   time.Time `json:"built_at"`
}

func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return Stats{
		Size:      len(ix.chunks),
		Dimension: ix.meta.Dimension,
		Model:     ix.meta.Model,
		BuiltAt:   ix.meta.BuiltAt,
	}
}
