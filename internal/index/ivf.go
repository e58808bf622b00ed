package index

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/gigavector/gigavector/internal/distance"
	"github.com/gigavector/gigavector/internal/quantization"
)

// IVFMode selects between exact in-list scoring (IVF-Flat) and PQ-coded
// in-list scoring (IVF-PQ), per §4.5: both are "a single configurable
// index" sharing coarse-quantization and probing machinery.
type IVFMode int

const (
	// IVFModeFlat stores exact raw vectors per list and scores candidates
	// directly against the Vector Store.
	IVFModeFlat IVFMode = iota
	// IVFModePQ stores a PQ-encoded residual per row and scores candidates
	// with an Asymmetric Distance Computation table, optionally reranking
	// the top RerankTop candidates on exact Euclidean distance.
	IVFModePQ
	// IVFModeSQ stores a per-dimension scalar-quantized code per row, a
	// cheaper alternative to PQ (no per-subspace k-means, one min/max
	// training pass) that scores candidates by approximate squared
	// Euclidean distance against the reconstructed code, optionally
	// reranking the top RerankTop candidates on exact distance.
	IVFModeSQ
)

// IVFConfig configures coarse quantization and, for IVF-PQ, the product
// quantizer shape.
type IVFConfig struct {
	Mode IVFMode

	NList int // number of coarse centroids (training clusters)
	NProbe int // number of lists probed per search

	// PQ-only fields.
	PQSubspaces int // m
	PQNBits     int // nbits per subcode, codebook has 2^nbits entries
	RerankTop   int // 0 disables exact rerank of PQ/SQ candidates

	// SQ-only field.
	SQNBits int // bits per component, 1-8

	Dist distance.Kind // Euclidean or Cosine; cosine normalizes at insert/query time
	Seed int64

	TrainIters int // k-means iteration cap; 0 defaults to 50
}

// DefaultIVFConfig returns IVF-Flat defaults suitable for moderate corpus
// sizes, matching the teacher's IVFIndex default shape before PQ existed.
func DefaultIVFConfig() IVFConfig {
	return IVFConfig{
		Mode:   IVFModeFlat,
		NList:  100,
		NProbe: 8,
		Dist:   distance.Euclidean,
	}
}

// IVF implements both IVF-Flat and IVF-PQ (§4.5), adapted from the
// teacher's pkg/index/ivf.go: the coarse-quantization / inverted-list
// structure and its k-means++ training are kept, but centroid training now
// goes through the shared quantization.KMeans trainer, list membership is
// tracked by store row instead of string ID, and IVF-PQ's ADC scoring and
// optional exact rerank are new on top of the teacher's IVF-Flat-only
// design.
type IVF struct {
	mu sync.RWMutex

	cfg       IVFConfig
	dim       int
	trained   bool
	centroids [][]float32   // NList x dim
	lists     [][]int       // NList lists of store rows
	pq        *quantization.ProductQuantizer
	sq        *quantization.ScalarQuantizer
	codes     map[int][]byte // row -> PQ or SQ code, IVF-PQ/IVF-SQ only
	rowList   map[int]int    // row -> list index, for Delete/ApplyPermutation

	fetch  VectorFetcher
	isLive LiveChecker
}

// NewIVF constructs an untrained IVF index. Train must be called with a
// representative sample before any Add.
func NewIVF(cfg IVFConfig, dim int, fetch VectorFetcher, isLive LiveChecker) (*IVF, error) {
	if cfg.Mode == IVFModePQ {
		if cfg.PQSubspaces <= 0 || cfg.PQNBits <= 0 {
			return nil, fmt.Errorf("ivf: pq mode requires PQSubspaces and PQNBits")
		}
		pq, err := quantization.NewProductQuantizer(dim, cfg.PQSubspaces, cfg.PQNBits)
		if err != nil {
			return nil, fmt.Errorf("ivf: %w", err)
		}
		return &IVF{cfg: cfg, dim: dim, pq: pq, codes: make(map[int][]byte), rowList: make(map[int]int), fetch: fetch, isLive: isLive}, nil
	}
	if cfg.Mode == IVFModeSQ {
		if cfg.SQNBits <= 0 {
			return nil, fmt.Errorf("ivf: sq mode requires SQNBits")
		}
		sq, err := quantization.NewScalarQuantizer(dim, cfg.SQNBits)
		if err != nil {
			return nil, fmt.Errorf("ivf: %w", err)
		}
		return &IVF{cfg: cfg, dim: dim, sq: sq, codes: make(map[int][]byte), rowList: make(map[int]int), fetch: fetch, isLive: isLive}, nil
	}
	return &IVF{cfg: cfg, dim: dim, rowList: make(map[int]int), fetch: fetch, isLive: isLive}, nil
}

func (idx *IVF) Kind() Kind {
	switch idx.cfg.Mode {
	case IVFModePQ:
		return KindIVFPQ
	case IVFModeSQ:
		return KindIVFSQ
	default:
		return KindIVFFlat
	}
}

// Train runs k-means++ to produce NList coarse centroids and, for IVF-PQ,
// additionally trains the product quantizer's subcodebooks on the same
// sample, per §4.5's Train operation.
func (idx *IVF) Train(vectors [][]float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	prepared := vectors
	if idx.cfg.Dist == distance.Cosine {
		prepared = make([][]float32, len(vectors))
		for i, v := range vectors {
			prepared[i] = distance.Normalize(v)
		}
	}

	maxIters := idx.cfg.TrainIters
	if maxIters <= 0 {
		maxIters = 50
	}
	rng := rand.New(rand.NewSource(idx.cfg.Seed))
	result, err := quantization.KMeans(prepared, idx.cfg.NList, maxIters, 1e-4, rng)
	if err != nil {
		return fmt.Errorf("ivf: coarse training: %w", err)
	}
	if !result.Converged {
		return fmt.Errorf("ivf: coarse training: %w", quantization.ErrNotConverged)
	}
	idx.centroids = result.Centroids
	idx.lists = make([][]int, idx.cfg.NList)

	switch idx.cfg.Mode {
	case IVFModePQ:
		if err := idx.pq.Train(prepared, rng); err != nil {
			return fmt.Errorf("ivf: pq training: %w", err)
		}
	case IVFModeSQ:
		if err := idx.sq.Train(prepared); err != nil {
			return fmt.Errorf("ivf: sq training: %w", err)
		}
	}
	idx.trained = true
	return nil
}

func (idx *IVF) prepare(vec []float32) []float32 {
	if idx.cfg.Dist == distance.Cosine {
		return distance.Normalize(vec)
	}
	return vec
}

func (idx *IVF) nearestCentroids(query []float32, n int) []int {
	type scored struct {
		list int
		dist float32
	}
	scores := make([]scored, len(idx.centroids))
	for i, c := range idx.centroids {
		scores[i] = scored{i, distance.SquaredEuclidean(query, c)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].dist < scores[j].dist })
	if n > len(scores) {
		n = len(scores)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = scores[i].list
	}
	return out
}

// Add assigns row to the nearest centroid's list, per §4.5's Insert
// operation. For IVF-PQ it additionally stores the PQ code for the row.
func (idx *IVF) Add(row int, vec []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.trained {
		return fmt.Errorf("ivf: index must be trained before insert")
	}
	prepared := idx.prepare(vec)
	list := idx.nearestCentroids(prepared, 1)[0]
	idx.lists[list] = append(idx.lists[list], row)
	idx.rowList[row] = list

	switch idx.cfg.Mode {
	case IVFModePQ:
		code, err := idx.pq.Encode(prepared)
		if err != nil {
			return fmt.Errorf("ivf: encode row %d: %w", row, err)
		}
		idx.codes[row] = code
	case IVFModeSQ:
		code, err := idx.sq.Encode(prepared)
		if err != nil {
			return fmt.Errorf("ivf: encode row %d: %w", row, err)
		}
		idx.codes[row] = code
	}
	return nil
}

// Delete removes row from its list; §4.5 notes deletion is logical at the
// Vector Store level, but IVF additionally drops the row from its
// inverted list so future scans don't walk tombstoned rows forever.
func (idx *IVF) Delete(row int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	list, ok := idx.rowList[row]
	if !ok {
		return nil
	}
	rows := idx.lists[list]
	for i, r := range rows {
		if r == row {
			idx.lists[list] = append(rows[:i], rows[i+1:]...)
			break
		}
	}
	delete(idx.rowList, row)
	delete(idx.codes, row)
	return nil
}

func (idx *IVF) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.rowList)
}

type ivfCandidate struct {
	row  int
	dist float32
}

// rerankCoded sorts coded candidates (PQ's ADC or SQ's approximate
// distance), truncates to RerankTop, and optionally replaces each
// surviving candidate's distance with an exact computation against the
// Vector Store before truncating to k, per §4.5's optional exact rerank.
func (idx *IVF) rerankCoded(candidates []ivfCandidate, prepared []float32, dist distance.Kind, k int) ([]ivfCandidate, error) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	rerankTop := idx.cfg.RerankTop
	if rerankTop > 0 && rerankTop < len(candidates) {
		candidates = candidates[:rerankTop]
	}
	if rerankTop > 0 {
		for i := range candidates {
			vec, err := idx.fetch(candidates[i].row)
			if err != nil {
				return nil, err
			}
			d, err := distance.Distance(prepared, idx.prepare(vec), dist)
			if err != nil {
				return nil, err
			}
			candidates[i].dist = d
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	}
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Search scores all NList centroids against the query, probes the top
// NProbe lists, and within each list scores candidates either exactly
// (IVF-Flat) or via an ADC table (IVF-PQ), optionally reranking the top
// RerankTop PQ candidates on exact distance, per §4.5.
func (idx *IVF) Search(query []float32, k int, dist distance.Kind) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if dist != idx.cfg.Dist {
		return nil, fmt.Errorf("ivf: search distance kind %v does not match index distance kind %v", dist, idx.cfg.Dist)
	}
	if !idx.trained {
		return nil, fmt.Errorf("ivf: index must be trained before search")
	}
	prepared := idx.prepare(query)
	probeLists := idx.nearestCentroids(prepared, idx.cfg.NProbe)

	var candidates []ivfCandidate
	switch idx.cfg.Mode {
	case IVFModeFlat:
		for _, list := range probeLists {
			for _, row := range idx.lists[list] {
				live, err := idx.isLive(row)
				if err != nil {
					return nil, err
				}
				if !live {
					continue
				}
				vec, err := idx.fetch(row)
				if err != nil {
					return nil, err
				}
				d, err := distance.Distance(prepared, idx.prepare(vec), dist)
				if err != nil {
					return nil, err
				}
				candidates = append(candidates, ivfCandidate{row, d})
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		if k < len(candidates) {
			candidates = candidates[:k]
		}

	case IVFModePQ:
		table, err := idx.pq.BuildDistanceTable(prepared)
		if err != nil {
			return nil, err
		}
		for _, list := range probeLists {
			for _, row := range idx.lists[list] {
				live, err := idx.isLive(row)
				if err != nil {
					return nil, err
				}
				if !live {
					continue
				}
				code, ok := idx.codes[row]
				if !ok {
					continue
				}
				candidates = append(candidates, ivfCandidate{row, table.ADC(code)})
			}
		}
		candidates, err = idx.rerankCoded(candidates, prepared, dist, k)
		if err != nil {
			return nil, err
		}

	case IVFModeSQ:
		for _, list := range probeLists {
			for _, row := range idx.lists[list] {
				live, err := idx.isLive(row)
				if err != nil {
					return nil, err
				}
				if !live {
					continue
				}
				code, ok := idx.codes[row]
				if !ok {
					continue
				}
				candidates = append(candidates, ivfCandidate{row, idx.sq.ApproxSquaredEuclidean(prepared, code)})
			}
		}
		var err error
		candidates, err = idx.rerankCoded(candidates, prepared, dist, k)
		if err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Row: c.row, Distance: c.dist}
	}
	return results, nil
}

// RangeSearch probes every list, nearest centroid first, and keeps rows
// within radius of the query, up to maxResults.
func (idx *IVF) RangeSearch(query []float32, radius float32, dist distance.Kind, maxResults int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if dist != idx.cfg.Dist {
		return nil, fmt.Errorf("ivf: search distance kind %v does not match index distance kind %v", dist, idx.cfg.Dist)
	}
	if !idx.trained {
		return nil, fmt.Errorf("ivf: index must be trained before search")
	}
	prepared := idx.prepare(query)
	probeLists := idx.nearestCentroids(prepared, len(idx.centroids))

	var results []Result
	for _, list := range probeLists {
		for _, row := range idx.lists[list] {
			live, err := idx.isLive(row)
			if err != nil {
				return nil, err
			}
			if !live {
				continue
			}
			vec, err := idx.fetch(row)
			if err != nil {
				return nil, err
			}
			d, err := distance.Distance(prepared, idx.prepare(vec), dist)
			if err != nil {
				return nil, err
			}
			if d <= radius {
				results = append(results, Result{Row: row, Distance: d})
				if maxResults > 0 && len(results) >= maxResults {
					goto done
				}
			}
		}
	}
done:
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	return results, nil
}
