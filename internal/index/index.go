// Package index implements the ANN index family (C3-C6): brute-force Flat,
// HNSW, the IVF family (IVF-Flat, IVF-PQ, LSH), and the sparse inverted
// index. Every implementation is a tagged variant behind the Index
// interface per Design Note 9 ("opaque handles and casts via void-pointer
// in the source become tagged index variants ... behind a polymorphic
// interface").
package index

import (
	"io"

	"github.com/gigavector/gigavector/internal/distance"
)

// Kind identifies an index variant, used both as the facade's
// configuration tag and as the u32 index-kind tag in the on-disk format.
type Kind uint32

const (
	KindFlat Kind = iota
	KindHNSW
	KindIVFFlat
	KindIVFPQ
	KindLSH
	KindSparse
	KindIVFSQ
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindHNSW:
		return "hnsw"
	case KindIVFFlat:
		return "ivf_flat"
	case KindIVFPQ:
		return "ivf_pq"
	case KindLSH:
		return "lsh"
	case KindSparse:
		return "sparse"
	case KindIVFSQ:
		return "ivf_sq"
	default:
		return "unknown"
	}
}

// Result is a single (row, distance) hit, returned in place of the
// view-then-copy-out pattern the teacher's C ancestor needed when the
// public handle returned raw pointers (Design Note 9).
type Result struct {
	Row      int
	Distance float32
}

// VectorFetcher borrows a row's vector data from the Vector Store without
// copying. Every dense index is built against this instead of owning its
// own vector copies, so that indexes hold Design-Note-9 "borrowed views"
// rather than duplicating the store's data.
type VectorFetcher func(row int) ([]float32, error)

// LiveChecker reports whether a row is tombstoned. Dense indexes consult
// it to skip tombstoned rows from final results while still allowing them
// to be traversed internally (relevant to HNSW graph walks).
type LiveChecker func(row int) (bool, error)

// Index is the polymorphic interface every dense ANN variant implements.
type Index interface {
	// Add inserts a row (already present in the Vector Store) into the
	// index structure.
	Add(row int, vec []float32) error
	// Delete removes the row's structural references from the index
	// (tombstoning is the store's job; some indexes, like IVF, also need
	// to know a row is gone so they can skip it during list scans).
	Delete(row int) error
	// Search returns the top-k nearest rows to query in ascending
	// distance order.
	Search(query []float32, k int, dist distance.Kind) ([]Result, error)
	// RangeSearch returns all rows within radius of query, up to
	// maxResults, in ascending distance order.
	RangeSearch(query []float32, radius float32, dist distance.Kind, maxResults int) ([]Result, error)
	// Count returns the number of rows known to the index (including
	// tombstoned ones still present in internal structures).
	Count() int
	// Kind identifies the index variant for persistence framing.
	Kind() Kind
	// Save serializes index-specific state (not the raw vectors/metadata,
	// which the Vector Store already persists).
	Save(w io.Writer) error
	// Load deserializes index-specific state written by Save. count is the
	// Vector Store's row count (read from the outer database header),
	// needed because some payloads (e.g. HNSW's) don't repeat it.
	Load(r io.Reader, count int) error
}

// ApplyPermutation is implemented by indexes that hold row references and
// must rewrite them after a Vector Store Compact call (Design Note 9: "On
// compact, the index walks its structures and applies the permutation map
// ... no dangling references"). perm[oldRow] is the new row index, or -1
// if the row was removed.
type ApplyPermutation interface {
	ApplyPermutation(perm []int) error
}
