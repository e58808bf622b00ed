// Package pipeline implements the phased ranking pipeline (C8, §4.8): an
// ordered list of up to eight phases (ANN, RerankExpr, RerankMMR,
// RerankCallback, Filter) that progressively narrow and reorder a
// candidate set. Grounded on the teacher's pkg/core reranker.go shape
// (a pipeline of named stages over scored candidates), generalized from a
// single reranking stage into a configurable multi-phase executor with
// its own expression language (internal/pipeline/expr).
package pipeline

import (
	"fmt"
	"time"

	"github.com/gigavector/gigavector/internal/distance"
	"github.com/gigavector/gigavector/internal/pipeline/expr"
)

// MaxPhases is the hard cap from §4.8 ("up to eight PhaseConfig entries").
const MaxPhases = 8

// PhaseKind identifies one of the five phase behaviors.
type PhaseKind int

const (
	PhaseANN PhaseKind = iota
	PhaseRerankExpr
	PhaseRerankMMR
	PhaseRerankCallback
	PhaseFilter
)

func (k PhaseKind) String() string {
	switch k {
	case PhaseANN:
		return "ann"
	case PhaseRerankExpr:
		return "rerank_expr"
	case PhaseRerankMMR:
		return "rerank_mmr"
	case PhaseRerankCallback:
		return "rerank_callback"
	case PhaseFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// PhaseConfig describes one pipeline stage. Which fields are meaningful
// depends on Kind.
type PhaseConfig struct {
	Kind     PhaseKind
	OutputK  int
	Dist     distance.Kind // ANN
	Expr     string        // RerankExpr, Filter
	Lambda   float64       // RerankMMR
	Callback func(row int, score float32, metadata map[string]string) float32 // RerankCallback
}

// Candidate is one row carried through the pipeline, per §4.8's
// `Candidate{row, score, phase_reached}`.
type Candidate struct {
	Row          int
	Score        float32
	PhaseReached int
}

// PhaseStat records per-phase input/output counts and latency, per §4.8
// ("Record per-phase input count, output count, and wall-clock latency").
type PhaseStat struct {
	Kind          PhaseKind
	InputCount    int
	OutputCount   int
	LatencyMillis float64
}

// ANNSearcher is the primary index's k-NN entry point the ANN phase calls.
type ANNSearcher func(k int, dist distance.Kind) ([]Candidate, error)

// VectorFetcher borrows a row's vector for RerankMMR's cosine similarity
// computations.
type VectorFetcher func(row int) ([]float32, error)

// MetadataFetcher borrows a row's metadata for expression evaluation.
type MetadataFetcher func(row int) (map[string]string, error)

// Pipeline is a compiled, ready-to-execute phase sequence.
type Pipeline struct {
	phases   []PhaseConfig
	compiled []*expr.Expr // parallel to phases; nil for non-expression phases
}

// New validates and compiles a phase list: at most MaxPhases entries, the
// first must be ANN (§4.8), and every RerankExpr/Filter phase's
// expression is parsed once up front.
func New(phases []PhaseConfig) (*Pipeline, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("pipeline: phase list must not be empty")
	}
	if len(phases) > MaxPhases {
		return nil, fmt.Errorf("pipeline: %d phases exceeds the cap of %d", len(phases), MaxPhases)
	}
	if phases[0].Kind != PhaseANN {
		return nil, fmt.Errorf("pipeline: first phase must be ANN")
	}
	compiled := make([]*expr.Expr, len(phases))
	for i, p := range phases {
		if p.Kind == PhaseRerankExpr || p.Kind == PhaseFilter {
			e, err := expr.Parse(p.Expr)
			if err != nil {
				return nil, fmt.Errorf("pipeline: phase %d: %w", i, err)
			}
			compiled[i] = e
		}
	}
	return &Pipeline{phases: phases, compiled: compiled}, nil
}

// candidateContext adapts one candidate to the expr.Context interface.
type candidateContext struct {
	score    float64
	metadata map[string]string
}

func (c candidateContext) Score() float64 { return c.score }
func (c candidateContext) Metadata(key string) (string, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// Execute runs every phase in order, truncating (or sorting-and-
// truncating) the candidate list to each phase's output_k, per §4.8's
// per-execution flow. query is needed for the ANN and RerankMMR phases.
func (p *Pipeline) Execute(query []float32, ann ANNSearcher, fetchVector VectorFetcher, fetchMetadata MetadataFetcher) ([]Candidate, []PhaseStat, error) {
	var candidates []Candidate
	stats := make([]PhaseStat, 0, len(p.phases))

	for i, phase := range p.phases {
		start := time.Now()
		inputCount := len(candidates)
		var err error
		switch phase.Kind {
		case PhaseANN:
			candidates, err = ann(phase.OutputK, phase.Dist)
			for j := range candidates {
				candidates[j].PhaseReached = i
			}
		case PhaseRerankExpr:
			candidates, err = runRerankExpr(candidates, p.compiled[i], fetchMetadata, i, phase.OutputK)
		case PhaseRerankMMR:
			candidates, err = runRerankMMR(candidates, query, phase.Lambda, phase.OutputK, fetchVector, i)
		case PhaseRerankCallback:
			candidates, err = runRerankCallback(candidates, phase.Callback, fetchMetadata, i, phase.OutputK)
		case PhaseFilter:
			candidates, err = runFilter(candidates, p.compiled[i], fetchMetadata)
		default:
			err = fmt.Errorf("pipeline: unknown phase kind %v", phase.Kind)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("pipeline: phase %d (%v): %w", i, phase.Kind, err)
		}
		stats = append(stats, PhaseStat{
			Kind:          phase.Kind,
			InputCount:    inputCount,
			OutputCount:   len(candidates),
			LatencyMillis: float64(time.Since(start).Microseconds()) / 1000.0,
		})
	}
	return candidates, stats, nil
}
