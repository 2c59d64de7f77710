package ingest

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 150
)

// Segment is a window of one document's text.
type Segment struct {
	ID      string
	Source  string
	Ordinal int // position within the source document
	Offset  int // rune offset of the first character
	Text    string
}

// Chunker cuts documents into fixed-size rune windows. Consecutive windows
// of the same document share exactly Overlap runes; the last window may be
// shorter than Size.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker validates the window parameters.
func NewChunker(size, overlap int) (Chunker, error) {
	c := Chunker{Size: size, Overlap: overlap}
	if err := c.validate(); err != nil {
		return Chunker{}, err
	}
	return c, nil
}

// DefaultChunker returns a 1500/150 chunker.
func DefaultChunker() Chunker {
	return Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

func (c Chunker) validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Size, c.Overlap)
	}
	return nil
}

// Split segments a single document. An empty document yields no segments.
func (c Chunker) Split(doc Document) ([]Segment, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := c.Size - c.Overlap
	var segs []Segment
	for start := 0; ; start += step {
		end := min(start+c.Size, len(runes))
		ord := len(segs)
		segs = append(segs, Segment{
			ID:      SegmentID(doc.Source, ord),
			Source:  doc.Source,
			Ordinal: ord,
			Offset:  start,
			Text:    string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return segs, nil
}

// SplitAll segments every document in order. Segments never span documents.
func (c Chunker) SplitAll(docs []Document) ([]Segment, error) {
	var out []Segment
	for _, d := range docs {
		segs, err := c.Split(d)
		if err != nil {
			return nil, fmt.Errorf("splitting %s: %w", d.Source, err)
		}
		out = append(out, segs...)
	}
	return out, nil
}

// SegmentID is the deterministic identifier of the n-th segment of source.
func SegmentID(source string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+strconv.Itoa(n))).String()
}
