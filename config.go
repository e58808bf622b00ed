package gigavector

import (
	"github.com/gigavector/gigavector/internal/distance"
	"github.com/gigavector/gigavector/internal/fulltext"
	"github.com/gigavector/gigavector/internal/index"
	"github.com/gigavector/gigavector/internal/pipeline"
)

// IndexKind selects which ANN index variant backs a Database, re-exporting
// internal/index's Kind tag at the facade boundary.
type IndexKind = index.Kind

const (
	IndexFlat    = index.KindFlat
	IndexHNSW    = index.KindHNSW
	IndexIVFFlat = index.KindIVFFlat
	IndexIVFPQ   = index.KindIVFPQ
	IndexLSH     = index.KindLSH
	IndexSparse  = index.KindSparse
	IndexIVFSQ   = index.KindIVFSQ
)

// DistanceKind re-exports internal/distance's Kind tag at the facade
// boundary, so callers never import an internal package directly.
type DistanceKind = distance.Kind

const (
	Euclidean = distance.Euclidean
	Cosine    = distance.Cosine
	Dot       = distance.Dot
	Hamming   = distance.Hamming
)

// HNSWConfig configures a C4 HNSW index. Zero value is invalid; use
// DefaultHNSWConfig.
type HNSWConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
	Dist           DistanceKind
	Seed           int64
}

// DefaultHNSWConfig returns §8's recall-bearing floor (M>=8, efSearch>=64).
func DefaultHNSWConfig() HNSWConfig {
	d := index.DefaultHNSWConfig()
	return HNSWConfig{M: d.M, EfConstruction: d.EfConstruction, EfSearch: d.EfSearch, Dist: d.Dist, Seed: d.Seed}
}

func (c HNSWConfig) toInternal() index.HNSWConfig {
	return index.HNSWConfig{M: c.M, EfConstruction: c.EfConstruction, EfSearch: c.EfSearch, Dist: c.Dist, Seed: c.Seed}
}

// FlatConfig configures a C3 brute-force index.
type FlatConfig struct {
	UseSIMD bool
}

// DefaultFlatConfig returns the conservative, always-correct default.
func DefaultFlatConfig() FlatConfig {
	return FlatConfig{UseSIMD: index.DefaultFlatConfig().UseSIMD}
}

func (c FlatConfig) toInternal() index.FlatConfig {
	return index.FlatConfig{UseSIMD: c.UseSIMD}
}

// IVFConfig configures the IVF family (§4.5). toInternal picks IVF-PQ when
// PQSubspaces is set, IVF-SQ when SQNBits is set instead, and IVF-Flat
// otherwise; a Database overrides that choice with the mode named by
// Config.Index (IndexIVFFlat, IndexIVFPQ, or IndexIVFSQ). PQSubspaces and
// PQNBits configure IVF-PQ (ADC scoring), SQNBits configures IVF-SQ
// (approximate scalar-code scoring). Both coded modes support an optional
// exact RerankTop.
type IVFConfig struct {
	NList          int
	NProbe         int
	PQSubspaces    int
	PQNBits        int
	SQNBits        int
	RerankTop      int
	UseCosine      bool
	TrainIters     int // k-means iteration cap for Train; 0 defaults to 50
	Dist           DistanceKind
	Seed           int64
}

// DefaultIVFConfig returns a reasonable IVF-Flat starting point (no PQ).
func DefaultIVFConfig() IVFConfig {
	d := index.DefaultIVFConfig()
	return IVFConfig{NList: d.NList, NProbe: d.NProbe, Dist: d.Dist, Seed: d.Seed}
}

func (c IVFConfig) toInternal() index.IVFConfig {
	mode := index.IVFModeFlat
	switch {
	case c.PQSubspaces > 0:
		mode = index.IVFModePQ
	case c.SQNBits > 0:
		mode = index.IVFModeSQ
	}
	dist := c.Dist
	if c.UseCosine {
		dist = distance.Cosine
	}
	return index.IVFConfig{
		Mode:        mode,
		NList:       c.NList,
		NProbe:      c.NProbe,
		PQSubspaces: c.PQSubspaces,
		PQNBits:     c.PQNBits,
		SQNBits:     c.SQNBits,
		RerankTop:   c.RerankTop,
		Dist:        dist,
		Seed:        c.Seed,
		TrainIters:  c.TrainIters,
	}
}

// LSHConfig configures the locality-sensitive-hashing index, a member of
// the IVF family per §4.5.
type LSHConfig struct {
	L, K int
	Dist DistanceKind
	Seed int64
}

// DefaultLSHConfig returns a small, conservative table/plane count.
func DefaultLSHConfig() LSHConfig {
	d := index.DefaultLSHConfig()
	return LSHConfig{L: d.L, K: d.K, Dist: d.Dist, Seed: d.Seed}
}

func (c LSHConfig) toInternal() index.LSHConfig {
	return index.LSHConfig{L: c.L, K: c.K, Dist: c.Dist, Seed: c.Seed}
}

// FullTextConfig configures the BM25 + BlockMax-WAND full-text index (C7).
type FullTextConfig struct {
	Language          fulltext.Language
	EnableStemming    bool
	EnablePhraseMatch bool
	UseBlockMaxWAND   bool
	BlockSize         int
}

// DefaultFullTextConfig returns English with stemming and BlockMax-WAND
// enabled, §8's default operating point.
func DefaultFullTextConfig() FullTextConfig {
	return FullTextConfig{
		Language:          fulltext.English,
		EnableStemming:    true,
		EnablePhraseMatch: true,
		UseBlockMaxWAND:   true,
		BlockSize:         fulltext.DefaultBlockSize,
	}
}

// PipelinePhase re-exports internal/pipeline's phase configuration shape,
// letting callers build an 8-phase ranking pipeline (§4.8) from the facade
// package alone.
type PipelinePhase = pipeline.PhaseConfig

const (
	PhaseANN             = pipeline.PhaseANN
	PhaseRerankExpr      = pipeline.PhaseRerankExpr
	PhaseRerankMMR       = pipeline.PhaseRerankMMR
	PhaseRerankCallback  = pipeline.PhaseRerankCallback
	PhaseFilter          = pipeline.PhaseFilter
)

// Config configures a Database at Open/Create time.
type Config struct {
	Dimension int
	Index     IndexKind

	HNSW     HNSWConfig
	Flat     FlatConfig
	IVF      IVFConfig
	LSH      LSHConfig
	FullText FullTextConfig

	// Logger receives structured log lines; Reindex logs its completion
	// through it. Defaults to NopLogger if nil.
	Logger Logger
}

// DefaultConfig returns a Flat-indexed configuration for dimension dim,
// the safest default since Flat needs no training.
func DefaultConfig(dim int) Config {
	return Config{
		Dimension: dim,
		Index:     IndexFlat,
		HNSW:      DefaultHNSWConfig(),
		Flat:      DefaultFlatConfig(),
		IVF:       DefaultIVFConfig(),
		LSH:       DefaultLSHConfig(),
		FullText:  DefaultFullTextConfig(),
	}
}
