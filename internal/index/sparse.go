package index

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/gigavector/gigavector/internal/binformat"
	"github.com/gigavector/gigavector/internal/distance"
)

// SparseTerm is one non-zero (term, weight) pair of a sparse vector, the
// shape callers pass to Add/Search instead of a dense []float32.
type SparseTerm struct {
	Term   uint32
	Weight float32
}

// Sparse implements the per-term inverted index of §4.6: an ordered list
// of (row, weight) postings per term, queried by walking each query term's
// posting list and accumulating partial dot products. Grounded on the
// teacher's pkg/index inverted-list shape (same bucket-of-rows structure
// as IVF's lists, here keyed by term id instead of centroid id).
type Sparse struct {
	mu       sync.RWMutex
	postings map[uint32][]sparsePosting
	rowTerms map[int][]uint32 // row -> terms it appears in, for Delete/ApplyPermutation

	isLive LiveChecker
}

type sparsePosting struct {
	row    int
	weight float32
}

// NewSparse constructs an empty sparse index. isLive lets Search skip
// tombstoned rows the same way the dense indexes do.
func NewSparse(isLive LiveChecker) *Sparse {
	return &Sparse{
		postings: make(map[uint32][]sparsePosting),
		rowTerms: make(map[int][]uint32),
		isLive:   isLive,
	}
}

func (s *Sparse) Kind() Kind { return KindSparse }

// AddTerms indexes row under the given sparse (term, weight) pairs. This
// is Sparse's analogue of the dense Index.Add but takes a sparse vector
// instead of a dense one.
func (s *Sparse) AddTerms(row int, terms []SparseTerm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	termIDs := make([]uint32, 0, len(terms))
	for _, t := range terms {
		s.postings[t.Term] = append(s.postings[t.Term], sparsePosting{row: row, weight: t.Weight})
		termIDs = append(termIDs, t.Term)
	}
	s.rowTerms[row] = termIDs
	return nil
}

// Add satisfies the dense Index interface shape for uniform handling in
// the facade, but Sparse has no dense vector representation; callers must
// use AddTerms instead.
func (s *Sparse) Add(row int, vec []float32) error {
	return fmt.Errorf("sparse: use AddTerms with (term, weight) postings, not a dense vector")
}

// Delete removes row from every posting list it appeared in.
func (s *Sparse) Delete(row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	terms, ok := s.rowTerms[row]
	if !ok {
		return nil
	}
	for _, term := range terms {
		postings := s.postings[term]
		for i, p := range postings {
			if p.row == row {
				s.postings[term] = append(postings[:i], postings[i+1:]...)
				break
			}
		}
	}
	delete(s.rowTerms, row)
	return nil
}

func (s *Sparse) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rowTerms)
}

// SearchTerms accumulates partial dot products across each non-zero query
// term's posting list and returns the top-k rows by score descending,
// per §4.6.
func (s *Sparse) SearchTerms(query []SparseTerm, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores := make(map[int]float32)
	for _, qt := range query {
		for _, p := range s.postings[qt.Term] {
			scores[p.row] += qt.Weight * p.weight
		}
	}
	results := make([]Result, 0, len(scores))
	for row, score := range scores {
		live, err := s.isLive(row)
		if err != nil {
			return nil, err
		}
		if !live {
			continue
		}
		results = append(results, Result{Row: row, Distance: -score})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Search and RangeSearch satisfy the dense Index interface shape but are
// not meaningful for a sparse term index; callers must use SearchTerms.
func (s *Sparse) Search(query []float32, k int, dist distance.Kind) ([]Result, error) {
	return nil, fmt.Errorf("sparse: use SearchTerms with (term, weight) postings, not a dense query")
}

func (s *Sparse) RangeSearch(query []float32, radius float32, dist distance.Kind, maxResults int) ([]Result, error) {
	return nil, fmt.Errorf("sparse: range search is not defined for term postings")
}

// Save writes u32 term count, then per term a u32 term id, u32 posting
// count, and that many (u64 row, f32 weight) pairs.
func (s *Sparse) Save(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := binformat.WriteU32(w, uint32(len(s.postings))); err != nil {
		return err
	}
	for term, postings := range s.postings {
		if err := binformat.WriteU32(w, term); err != nil {
			return err
		}
		if err := binformat.WriteU32(w, uint32(len(postings))); err != nil {
			return err
		}
		for _, p := range postings {
			if err := binformat.WriteU64(w, uint64(p.row)); err != nil {
				return err
			}
			if err := binformat.WriteF32(w, p.weight); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads the payload written by Save. count is unused: every term's
// posting list already carries its own count.
func (s *Sparse) Load(r io.Reader, count int) error {
	termCount, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	postings := make(map[uint32][]sparsePosting, termCount)
	rowTerms := make(map[int][]uint32)
	for i := uint32(0); i < termCount; i++ {
		term, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		n, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		list := make([]sparsePosting, n)
		for j := range list {
			row, err := binformat.ReadU64(r)
			if err != nil {
				return err
			}
			weight, err := binformat.ReadF32(r)
			if err != nil {
				return err
			}
			list[j] = sparsePosting{row: int(row), weight: weight}
			rowTerms[int(row)] = append(rowTerms[int(row)], term)
		}
		postings[term] = list
	}
	s.mu.Lock()
	s.postings = postings
	s.rowTerms = rowTerms
	s.mu.Unlock()
	return nil
}

// ApplyPermutation rewrites row references in every posting list after a
// Vector Store Compact.
func (s *Sparse) ApplyPermutation(perm []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	newRowTerms := make(map[int][]uint32, len(s.rowTerms))
	for term, postings := range s.postings {
		newPostings := make([]sparsePosting, 0, len(postings))
		for _, p := range postings {
			if p.row < 0 || p.row >= len(perm) || perm[p.row] == -1 {
				continue
			}
			newRow := perm[p.row]
			newPostings = append(newPostings, sparsePosting{row: newRow, weight: p.weight})
			newRowTerms[newRow] = append(newRowTerms[newRow], term)
		}
		s.postings[term] = newPostings
	}
	s.rowTerms = newRowTerms
	return nil
}
