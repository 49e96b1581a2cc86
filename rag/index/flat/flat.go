// Package flat implements an append-only flat vector index with exact
// k-nearest-neighbor search by squared Euclidean distance.
//
// The index is positional: vector i is the i-th vector ever inserted, so
// callers can keep an external record list parallel to it. Search is a
// full scan; conversations are small enough that exactness beats any
// approximate structure here.
package flat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	magic   = "RAGF"
	version = 1
)

// Hit is one search result: the vector's insertion position and its
// squared Euclidean distance to the query.
type Hit struct {
	Position int
	Distance float32
}

// Index holds fixed-dimension vectors in insertion order.
type Index struct {
	dim  int
	data []float32 // row-major, Count()*dim entries
}

// New creates an empty index for vectors of the given dimension.
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dim returns the vector dimension.
func (ix *Index) Dim() int {
	return ix.dim
}

// Count returns the number of stored vectors.
func (ix *Index) Count() int {
	if ix.dim == 0 {
		return 0
	}
	return len(ix.data) / ix.dim
}

// Insert appends vectors in order. Positions are assigned consecutively
// from the current count. All vectors are validated before any is stored,
// so a dimension mismatch leaves the index untouched.
func (ix *Index) Insert(vecs [][]float32) error {
	for i, v := range vecs {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), ix.dim)
		}
	}
	for _, v := range vecs {
		ix.data = append(ix.data, v...)
	}
	return nil
}

// Truncate discards vectors from position n onward. Used to roll back an
// append whose persistence failed.
func (ix *Index) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < ix.Count() {
		ix.data = ix.data[:n*ix.dim]
	}
}

// Search returns up to k nearest vectors to query, ascending by distance,
// ties broken by position. k is clamped to the current count; searching
// an empty index returns an empty result.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), ix.dim)
	}
	n := ix.Count()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		row := ix.data[i*ix.dim : (i+1)*ix.dim]
		var d float32
		for j, q := range query {
			diff := row[j] - q
			d += diff * diff
		}
		hits[i] = Hit{Position: i, Distance: d}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})

	if k > n {
		k = n
	}
	return hits[:k], nil
}

// Relevance converts a squared Euclidean distance to a bounded score in
// (0, 1]: identical vectors score 1.0 and the score decreases
// monotonically with distance. No corpus statistics are involved.
func Relevance(distance float32) float64 {
	return 1.0 / (1.0 + float64(distance))
}

// Marshal serializes the index: magic, version byte, uint32 dimension,
// uint32 count, then the little-endian float32 payload.
func (ix *Index) Marshal() []byte {
	buf := make([]byte, 0, 4+1+4+4+len(ix.data)*4)
	buf = append(buf, magic...)
	buf = append(buf, version)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ix.dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ix.Count()))
	for _, v := range ix.data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// Unmarshal reconstructs an index from Marshal output. Truncated or
// foreign payloads are errors, never a silently shortened index.
func Unmarshal(data []byte) (*Index, error) {
	const header = 4 + 1 + 4 + 4
	if len(data) < header || string(data[:4]) != magic {
		return nil, errors.New("not a flat index payload")
	}
	if data[4] != version {
		return nil, fmt.Errorf("unsupported flat index version %d", data[4])
	}
	dim := int(binary.LittleEndian.Uint32(data[5:9]))
	count := int(binary.LittleEndian.Uint32(data[9:13]))
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dim)
	}
	want := header + dim*count*4
	if len(data) != want {
		return nil, fmt.Errorf("flat index payload is %d bytes, expected %d", len(data), want)
	}

	ix := &Index{dim: dim, data: make([]float32, dim*count)}
	for i := range ix.data {
		ix.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[header+i*4:]))
	}
	return ix, nil
}
