package retrieval

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/logtriage/logtriage-ai/internal/vecmath"
)

// SimilarityIndex is a flat inner-product index over L2-normalized
// vectors: exact search, no approximation. Immutable once built; the
// engine swaps whole indexes under its own lock.
type SimilarityIndex struct {
	dimension int
	vectors   [][]float32
}

// NewSimilarityIndex creates an empty index for vectors of the given
// dimension.
func NewSimilarityIndex(dimension int) *SimilarityIndex {
	return &SimilarityIndex{dimension: dimension}
}

// Add appends vectors to the index. Every vector must match the index
// dimension and be unit length already.
func (ix *SimilarityIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != ix.dimension {
			return fmt.Errorf("vector dimension %d does not match index dimension %d", len(v), ix.dimension)
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Len returns the number of indexed vectors.
func (ix *SimilarityIndex) Len() int { return len(ix.vectors) }

// Dimension returns the vector dimension.
func (ix *SimilarityIndex) Dimension() int { return ix.dimension }

// Hit is one search result: a vector's position in insertion order and
// its inner-product score against the query.
type Hit struct {
	Position int
	Score    float64
}

// Search returns the k highest-scoring vectors for the query, best
// first. Fewer than k indexed vectors yields fewer hits, never padding.
func (ix *SimilarityIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), ix.dimension)
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = Hit{Position: i, Score: vecmath.Dot(query, v)}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

const indexMagic uint32 = 0x4c544149 // "LTAI"

// WriteFile persists the index to path atomically: write a temp file in
// the same directory, then rename over the target.
func (ix *SimilarityIndex) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	header := []uint32{indexMagic, uint32(ix.dimension), uint32(len(ix.vectors))}
	if err := binary.Write(tmp, binary.LittleEndian, header); err != nil {
		tmp.Close()
		return fmt.Errorf("write index header: %w", err)
	}
	for _, v := range ix.vectors {
		if err := binary.Write(tmp, binary.LittleEndian, v); err != nil {
			tmp.Close()
			return fmt.Errorf("write index vectors: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// ReadIndexFile loads an index written by WriteFile.
func ReadIndexFile(path string) (*SimilarityIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	var header [3]uint32
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if header[0] != indexMagic {
		return nil, fmt.Errorf("not an index file: %s", path)
	}

	dimension := int(header[1])
	count := int(header[2])
	if dimension <= 0 {
		return nil, fmt.Errorf("index file has invalid dimension %d", dimension)
	}

	ix := NewSimilarityIndex(dimension)
	ix.vectors = make([][]float32, count)
	for i := range ix.vectors {
		v := make([]float32, dimension)
		if err := binary.Read(f, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		ix.vectors[i] = v
	}
	return ix, nil
}
