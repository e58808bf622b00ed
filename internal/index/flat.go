package index

import (
	"container/heap"
	"sync"

	"github.com/gigavector/gigavector/internal/distance"
)

// FlatConfig configures a brute-force Flat index.
type FlatConfig struct {
	// UseSIMD is recorded but not consulted: every search uses the scalar
	// distance kernels of internal/distance.
	UseSIMD bool
}

// DefaultFlatConfig returns the conservative default (no SIMD).
func DefaultFlatConfig() FlatConfig {
	return FlatConfig{UseSIMD: false}
}

// FilterFunc evaluates an optional (metadata_key, metadata_value) equality
// predicate against a row before the distance call, matching §4.3's
// "optional equality filter evaluated per row before the distance call".
type FilterFunc func(row int) (bool, error)

// Flat implements the brute-force max-heap k-NN and linear-scan range
// search over the Vector Store (C3), grounded on the teacher's
// pkg/index/flat.go, generalized from a string-ID map to row-index
// borrowed views per Design Note 9.
type Flat struct {
	mu sync.RWMutex

	config    FlatConfig
	fetch     VectorFetcher
	isLive    LiveChecker
	rows      []int // row indices known to the index, in insertion order
	deletedAt map[int]bool
}

// NewFlat creates a Flat index over rows fetched via fetch, consulting
// isLive to skip tombstoned rows in results.
func NewFlat(config FlatConfig, fetch VectorFetcher, isLive LiveChecker) *Flat {
	return &Flat{
		config:    config,
		fetch:     fetch,
		isLive:    isLive,
		deletedAt: make(map[int]bool),
	}
}

func (f *Flat) Kind() Kind { return KindFlat }

func (f *Flat) Add(row int, _ []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	delete(f.deletedAt, row)
	return nil
}

func (f *Flat) Delete(row int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedAt[row] = true
	return nil
}

func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rows) - len(f.deletedAt)
}

type flatHeapItem struct {
	row  int
	dist float32
}

// flatMaxHeap is a max-heap on distance so the worst of the current top-k
// sits at the root and can be evicted in O(log k).
type flatMaxHeap []flatHeapItem

func (h flatMaxHeap) Len() int            { return len(h) }
func (h flatMaxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h flatMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *flatMaxHeap) Push(x interface{}) { *h = append(*h, x.(flatHeapItem)) }
func (h *flatMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (f *Flat) eachLiveRow(fn func(row int) error) error {
	f.mu.RLock()
	rows := make([]int, 0, len(f.rows))
	for _, row := range f.rows {
		if f.deletedAt[row] {
			continue
		}
		rows = append(rows, row)
	}
	f.mu.RUnlock()

	for _, row := range rows {
		if f.isLive != nil {
			live, err := f.isLive(row)
			if err != nil {
				return err
			}
			if !live {
				continue
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// Search performs exact brute-force k-NN, returning results in ascending
// distance order.
func (f *Flat) Search(query []float32, k int, dist distance.Kind) ([]Result, error) {
	return f.SearchFiltered(query, k, dist, nil)
}

// SearchFiltered performs brute-force k-NN, additionally requiring filter
// to pass for each candidate row before the distance call.
func (f *Flat) SearchFiltered(query []float32, k int, dist distance.Kind, filter FilterFunc) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	h := &flatMaxHeap{}
	heap.Init(h)

	err := f.eachLiveRow(func(row int) error {
		if filter != nil {
			ok, err := filter(row)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		vec, err := f.fetch(row)
		if err != nil {
			return err
		}
		d, err := distance.Distance(query, vec, dist)
		if err != nil {
			return err
		}
		if h.Len() < k {
			heap.Push(h, flatHeapItem{row: row, dist: d})
		} else if d < (*h)[0].dist {
			heap.Pop(h)
			heap.Push(h, flatHeapItem{row: row, dist: d})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		item := heap.Pop(h).(flatHeapItem)
		results[i] = Result{Row: item.row, Distance: item.dist}
	}
	return results, nil
}

// RangeSearch is a linear scan that stops once maxResults have been found,
// matching §4.3.
func (f *Flat) RangeSearch(query []float32, radius float32, dist distance.Kind, maxResults int) ([]Result, error) {
	return f.RangeSearchFiltered(query, radius, dist, maxResults, nil)
}

// RangeSearchFiltered is RangeSearch with an optional equality filter.
func (f *Flat) RangeSearchFiltered(query []float32, radius float32, dist distance.Kind, maxResults int, filter FilterFunc) ([]Result, error) {
	var results []Result
	err := f.eachLiveRow(func(row int) error {
		if maxResults > 0 && len(results) >= maxResults {
			return errStopScan
		}
		if filter != nil {
			ok, err := filter(row)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		vec, err := f.fetch(row)
		if err != nil {
			return err
		}
		d, err := distance.Distance(query, vec, dist)
		if err != nil {
			return err
		}
		if d <= radius {
			results = append(results, Result{Row: row, Distance: d})
		}
		return nil
	})
	if err != nil && err != errStopScan {
		return nil, err
	}

	// ascending order
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && results[j-1].Distance > results[j].Distance {
			results[j-1], results[j] = results[j], results[j-1]
			j--
		}
	}
	return results, nil
}

var errStopScan = stopScanError{}

type stopScanError struct{}

func (stopScanError) Error() string { return "flat: scan stopped at max_results" }
