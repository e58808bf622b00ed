package index

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gigavector/gigavector/internal/distance"
)

// HNSWConfig configures a Hierarchical Navigable Small World index (C4).
type HNSWConfig struct {
	M              int // max bidirectional links per node above layer 0
	EfConstruction int // candidate list width during Insert
	EfSearch       int // candidate list width during Search
	Dist           distance.Kind
	Seed           int64 // 0 means "seed from time.Now()"
}

// DefaultHNSWConfig returns commonly-used parameters (§8 cites M>=8,
// efSearch>=64 as the recall-bearing floor).
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 64, Dist: distance.Euclidean}
}

type hnswNode struct {
	row       int
	level     int
	neighbors [][]int // neighbors[l] = neighbor rows at layer l, l in [0, level]
	incomplete bool   // set if neighbor pruning failed to allocate (§4.4 OOM mode)
}

// HNSW implements the hierarchical proximity graph described in §4.4,
// grounded on the teacher's pkg/index/hnsw.go, generalized from
// string-keyed nodes storing owned vector copies to row-indexed nodes
// that borrow vectors from the Vector Store (Design Note 9), and with the
// neighbor-selection heuristic implemented per the paper's "extend by
// second nearest" rule (the teacher's version fell back to a plain
// top-m-by-distance sort) since §4.4 calls for the heuristic explicitly.
type HNSW struct {
	mu sync.RWMutex

	m              int
	maxM0          int
	efConstruction int
	efSearch       int
	mL             float64
	dist           distance.Kind
	rng            *rand.Rand

	nodes      map[int]*hnswNode
	entryPoint int
	maxLevel   int
	hasEntry   bool

	fetch  VectorFetcher
	isLive LiveChecker
}

// NewHNSW constructs an empty HNSW index.
func NewHNSW(config HNSWConfig, fetch VectorFetcher, isLive LiveChecker) *HNSW {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m := config.M
	if m <= 0 {
		m = 16
	}
	return &HNSW{
		m:              m,
		maxM0:          2 * m,
		efConstruction: config.EfConstruction,
		efSearch:       config.EfSearch,
		mL:             1.0 / math.Log(float64(m)),
		dist:           config.Dist,
		rng:            rand.New(rand.NewSource(seed)),
		nodes:          make(map[int]*hnswNode),
		fetch:          fetch,
		isLive:         isLive,
	}
}

func (h *HNSW) Kind() Kind { return KindHNSW }

func (h *HNSW) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// selectLevel draws L = floor(-ln(U) * mL) with U in (0,1], per §3.
func (h *HNSW) selectLevel() int {
	u := 1.0 - h.rng.Float64() // rand.Float64() is [0,1); shift to (0,1]
	level := int(math.Floor(-math.Log(u) * h.mL))
	if level > 32 {
		level = 32 // pathological-U safety cap; astronomically unlikely
	}
	return level
}

type hnswCandidate struct {
	row  int
	dist float32
}

// candMinHeap orders ascending by distance (exploration frontier).
type candMinHeap []hnswCandidate

func (h candMinHeap) Len() int            { return len(h) }
func (h candMinHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h candMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candMinHeap) Push(x interface{}) { *h = append(*h, x.(hnswCandidate)) }
func (h *candMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// candMaxHeap orders descending by distance (bounded "best so far" list).
type candMaxHeap []hnswCandidate

func (h candMaxHeap) Len() int            { return len(h) }
func (h candMaxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h candMaxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candMaxHeap) Push(x interface{}) { *h = append(*h, x.(hnswCandidate)) }
func (h *candMaxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h *HNSW) distTo(query []float32, row int) (float32, error) {
	vec, err := h.fetch(row)
	if err != nil {
		return 0, err
	}
	return distance.Distance(query, vec, h.dist)
}

// searchLayer runs the greedy/priority-queue search of width ef at layer,
// starting from entryPoints, and returns up to ef nearest candidates in
// ascending distance order.
func (h *HNSW) searchLayer(query []float32, entryPoints []int, ef int, layer int) ([]hnswCandidate, error) {
	visited := make(map[int]bool, ef*2)
	candidates := &candMinHeap{}
	best := &candMaxHeap{}

	for _, row := range entryPoints {
		if visited[row] {
			continue
		}
		visited[row] = true
		d, err := h.distTo(query, row)
		if err != nil {
			return nil, err
		}
		heap.Push(candidates, hnswCandidate{row, d})
		heap.Push(best, hnswCandidate{row, d})
	}

	for candidates.Len() > 0 {
		if best.Len() >= ef && (*candidates)[0].dist > (*best)[0].dist {
			break
		}
		current := heap.Pop(candidates).(hnswCandidate)
		node := h.nodes[current.row]
		if node == nil || layer >= len(node.neighbors) {
			continue
		}
		for _, neighbor := range node.neighbors[layer] {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			d, err := h.distTo(query, neighbor)
			if err != nil {
				return nil, err
			}
			if best.Len() < ef || d < (*best)[0].dist {
				heap.Push(candidates, hnswCandidate{neighbor, d})
				heap.Push(best, hnswCandidate{neighbor, d})
				if best.Len() > ef {
					heap.Pop(best)
				}
			}
		}
	}

	out := make([]hnswCandidate, best.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(best).(hnswCandidate)
	}
	return out, nil
}

// selectNeighborsHeuristic implements the "extend by second nearest" rule:
// a candidate is kept only if no already-selected neighbor is closer to it
// than the query is; rejected candidates backfill the result up to m.
// candidates must already be sorted ascending by distance to query.
func (h *HNSW) selectNeighborsHeuristic(candidates []hnswCandidate, m int) ([]int, error) {
	if len(candidates) <= m {
		rows := make([]int, len(candidates))
		for i, c := range candidates {
			rows[i] = c.row
		}
		return rows, nil
	}

	selected := make([]hnswCandidate, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		good := true
		for _, s := range selected {
			sv, err := h.fetch(s.row)
			if err != nil {
				return nil, err
			}
			cv, err := h.fetch(c.row)
			if err != nil {
				return nil, err
			}
			d, err := distance.Distance(sv, cv, h.dist)
			if err != nil {
				return nil, err
			}
			if d < c.dist {
				good = false
				break
			}
		}
		if good {
			selected = append(selected, c)
		}
	}
	// Backfill if the heuristic pruned too aggressively, so neighbor lists
	// stay near their cap instead of thinning the graph.
	if len(selected) < m {
		chosen := make(map[int]bool, len(selected))
		for _, s := range selected {
			chosen[s.row] = true
		}
		for _, c := range candidates {
			if len(selected) >= m {
				break
			}
			if !chosen[c.row] {
				selected = append(selected, c)
			}
		}
	}

	rows := make([]int, len(selected))
	for i, s := range selected {
		rows[i] = s.row
	}
	return rows, nil
}

func (h *HNSW) addConnection(target, row, layer int) {
	node := h.nodes[target]
	if node == nil || layer >= len(node.neighbors) {
		return
	}
	node.neighbors[layer] = append(node.neighbors[layer], row)
}

// Add inserts row into the graph following §4.4's construction algorithm.
func (h *HNSW) Add(row int, vec []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[row]; exists {
		return fmt.Errorf("hnsw: row %d already present", row)
	}

	level := h.selectLevel()
	node := &hnswNode{row: row, level: level, neighbors: make([][]int, level+1)}
	h.nodes[row] = node

	if !h.hasEntry {
		h.entryPoint = row
		h.maxLevel = level
		h.hasEntry = true
		return nil
	}

	currNearest := []int{h.entryPoint}
	for lc := h.maxLevel; lc > level; lc-- {
		cands, err := h.searchLayer(vec, currNearest, 1, lc)
		if err != nil {
			return err
		}
		currNearest = rowsOf(cands)
	}

	top := level
	if h.maxLevel < top {
		top = h.maxLevel
	}
	for lc := top; lc >= 0; lc-- {
		m := h.m
		if lc == 0 {
			m = h.maxM0
		}
		cands, err := h.searchLayer(vec, currNearest, h.efConstruction, lc)
		if err != nil {
			return err
		}
		neighbors, err := h.selectNeighborsHeuristic(cands, m)
		if err != nil {
			node.incomplete = true
			continue
		}
		node.neighbors[lc] = neighbors

		for _, nb := range neighbors {
			h.addConnection(nb, row, lc)
			nbNode := h.nodes[nb]
			maxConn := h.m
			if lc == 0 {
				maxConn = h.maxM0
			}
			if nbNode != nil && lc < len(nbNode.neighbors) && len(nbNode.neighbors[lc]) > maxConn {
				nbVec, err := h.fetch(nb)
				if err != nil {
					nbNode.incomplete = true
					continue
				}
				cands, err := h.candidatesFromRows(nbVec, nbNode.neighbors[lc])
				if err != nil {
					nbNode.incomplete = true
					continue
				}
				pruned, err := h.selectNeighborsHeuristic(cands, maxConn)
				if err != nil {
					nbNode.incomplete = true
					continue
				}
				nbNode.neighbors[lc] = pruned
			}
		}
		currNearest = neighbors
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entryPoint = row
	}
	return nil
}

func (h *HNSW) candidatesFromRows(query []float32, rows []int) ([]hnswCandidate, error) {
	out := make([]hnswCandidate, 0, len(rows))
	for _, r := range rows {
		d, err := h.distTo(query, r)
		if err != nil {
			return nil, err
		}
		out = append(out, hnswCandidate{r, d})
	}
	sortCandidatesAscending(out)
	return out, nil
}

func sortCandidatesAscending(c []hnswCandidate) {
	for i := 1; i < len(c); i++ {
		j := i
		for j > 0 && c[j-1].dist > c[j].dist {
			c[j-1], c[j] = c[j], c[j-1]
			j--
		}
	}
}

func rowsOf(cands []hnswCandidate) []int {
	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.row
	}
	return out
}

// Delete is a no-op at the graph level: tombstoning lives in the Vector
// Store, and §4.4 requires tombstoned rows to remain traversable (they are
// only filtered from the final result set via isLive). Removing a node's
// edges outright would disconnect neighbors that still route through it.
func (h *HNSW) Delete(row int) error {
	return nil
}

// Search returns the top-k nearest rows per §4.4's descend-then-beam-search
// algorithm. dist must match the index's configured distance kind.
func (h *HNSW) Search(query []float32, k int, dist distance.Kind) ([]Result, error) {
	if dist != h.dist {
		return nil, fmt.Errorf("hnsw: index built with distance %v, searched with %v", h.dist, dist)
	}
	if k <= 0 {
		return nil, nil
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.hasEntry {
		return nil, nil
	}
	entry := h.entryPoint
	maxLevel := h.maxLevel

	currNearest := []int{entry}
	for lc := maxLevel; lc > 0; lc-- {
		cands, err := h.searchLayer(query, currNearest, 1, lc)
		if err != nil {
			return nil, err
		}
		currNearest = rowsOf(cands)
	}

	ef := h.efSearch
	if ef < k {
		ef = k
	}
	cands, err := h.searchLayer(query, currNearest, ef, 0)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, k)
	for _, c := range cands {
		if len(results) >= k {
			break
		}
		if h.isLive != nil {
			live, err := h.isLive(c.row)
			if err != nil {
				return nil, err
			}
			if !live {
				continue
			}
		}
		results = append(results, Result{Row: c.row, Distance: c.dist})
	}
	return results, nil
}

// RangeSearch retrieves a wide k-NN beam and filters to radius; HNSW does
// not support an unbounded radius scan the way Flat's linear pass does, so
// this approximates §4.3's contract using the graph's beam search.
func (h *HNSW) RangeSearch(query []float32, radius float32, dist distance.Kind, maxResults int) ([]Result, error) {
	k := maxResults
	if k <= 0 || k > h.Count() {
		k = h.Count()
	}
	if k == 0 {
		return nil, nil
	}
	results, err := h.Search(query, k, dist)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Distance <= radius {
			out = append(out, r)
		}
	}
	return out, nil
}
