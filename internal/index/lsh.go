package index

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/gigavector/gigavector/internal/distance"
)

// LSHConfig configures the L hash tables of k-bit signed random
// hyperplanes described in §4.5 ("a degenerate member of this family").
type LSHConfig struct {
	L    int // number of hash tables
	K    int // bits per table (hyperplanes per table)
	Dist distance.Kind
	Seed int64
}

// DefaultLSHConfig returns a modest table/bit configuration suitable for
// moderate-dimensional embeddings.
func DefaultLSHConfig() LSHConfig {
	return LSHConfig{L: 4, K: 12, Dist: distance.Euclidean}
}

// LSH implements random-hyperplane locality-sensitive hashing, sharing the
// IVF family's VectorFetcher/LiveChecker borrowing pattern instead of
// owning vector copies, per Design Note 9. Grounded on the teacher's
// pkg/index/ivf.go inverted-list shape (bucket -> rows is the same data
// structure as list -> rows) generalized from centroid lists to
// hyperplane-sign buckets.
type LSH struct {
	mu sync.RWMutex

	cfg    LSHConfig
	dim    int
	planes [][][]float32 // [table][bit] hyperplane normal vectors
	tables []map[uint64][]int

	fetch  VectorFetcher
	isLive LiveChecker
}

// NewLSH builds L tables of K random signed hyperplanes each, generated
// once at construction time (no training phase is needed for LSH).
func NewLSH(cfg LSHConfig, dim int, fetch VectorFetcher, isLive LiveChecker) (*LSH, error) {
	if cfg.K > 64 {
		return nil, fmt.Errorf("lsh: k=%d exceeds 64-bit bucket key capacity", cfg.K)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	planes := make([][][]float32, cfg.L)
	tables := make([]map[uint64][]int, cfg.L)
	for t := 0; t < cfg.L; t++ {
		bits := make([][]float32, cfg.K)
		for b := 0; b < cfg.K; b++ {
			hp := make([]float32, dim)
			for d := 0; d < dim; d++ {
				hp[d] = float32(rng.NormFloat64())
			}
			bits[b] = hp
		}
		planes[t] = bits
		tables[t] = make(map[uint64][]int)
	}
	return &LSH{cfg: cfg, dim: dim, planes: planes, tables: tables, fetch: fetch, isLive: isLive}, nil
}

func (l *LSH) Kind() Kind { return KindLSH }

func (l *LSH) prepare(vec []float32) []float32 {
	if l.cfg.Dist == distance.Cosine {
		return distance.Normalize(vec)
	}
	return vec
}

func (l *LSH) bucketKey(table int, vec []float32) uint64 {
	var key uint64
	for b, hp := range l.planes[table] {
		var dot float32
		for d, v := range vec {
			dot += v * hp[d]
		}
		if dot > 0 {
			key |= 1 << uint(b)
		}
	}
	return key
}

// Add hashes row into every table's bucket for the row's vector.
func (l *LSH) Add(row int, vec []float32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	prepared := l.prepare(vec)
	for t := 0; t < l.cfg.L; t++ {
		key := l.bucketKey(t, prepared)
		l.tables[t][key] = append(l.tables[t][key], row)
	}
	return nil
}

// Delete removes row from every table's bucket. Since LSH has no
// per-row reverse index, this re-hashes the row's vector to find its
// buckets.
func (l *LSH) Delete(row int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	vec, err := l.fetch(row)
	if err != nil {
		return err
	}
	prepared := l.prepare(vec)
	for t := 0; t < l.cfg.L; t++ {
		key := l.bucketKey(t, prepared)
		bucket := l.tables[t][key]
		for i, r := range bucket {
			if r == row {
				l.tables[t][key] = append(bucket[:i], bucket[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (l *LSH) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seen := make(map[int]bool)
	for _, table := range l.tables {
		for _, bucket := range table {
			for _, row := range bucket {
				seen[row] = true
			}
		}
	}
	return len(seen)
}

// Search probes the query's bucket in every table and deduplicates
// candidates before scoring, per §4.5.
func (l *LSH) Search(query []float32, k int, dist distance.Kind) ([]Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if dist != l.cfg.Dist {
		return nil, fmt.Errorf("lsh: search distance kind %v does not match index distance kind %v", dist, l.cfg.Dist)
	}
	prepared := l.prepare(query)
	candidateRows := make(map[int]bool)
	for t := 0; t < l.cfg.L; t++ {
		key := l.bucketKey(t, prepared)
		for _, row := range l.tables[t][key] {
			candidateRows[row] = true
		}
	}

	results := make([]Result, 0, len(candidateRows))
	for row := range candidateRows {
		live, err := l.isLive(row)
		if err != nil {
			return nil, err
		}
		if !live {
			continue
		}
		vec, err := l.fetch(row)
		if err != nil {
			return nil, err
		}
		d, err := distance.Distance(prepared, l.prepare(vec), dist)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Row: row, Distance: d})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// RangeSearch probes the same deduplicated bucket union as Search and
// filters by radius; like HNSW and IVF this is an approximation since LSH
// gives no exhaustive guarantee outside the hashed buckets.
func (l *LSH) RangeSearch(query []float32, radius float32, dist distance.Kind, maxResults int) ([]Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if dist != l.cfg.Dist {
		return nil, fmt.Errorf("lsh: search distance kind %v does not match index distance kind %v", dist, l.cfg.Dist)
	}
	prepared := l.prepare(query)
	candidateRows := make(map[int]bool)
	for t := 0; t < l.cfg.L; t++ {
		key := l.bucketKey(t, prepared)
		for _, row := range l.tables[t][key] {
			candidateRows[row] = true
		}
	}

	var results []Result
	for row := range candidateRows {
		live, err := l.isLive(row)
		if err != nil {
			return nil, err
		}
		if !live {
			continue
		}
		vec, err := l.fetch(row)
		if err != nil {
			return nil, err
		}
		d, err := distance.Distance(prepared, l.prepare(vec), dist)
		if err != nil {
			return nil, err
		}
		if d <= radius {
			results = append(results, Result{Row: row, Distance: d})
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
