package gigavector

// Embedding is a single row as the caller sees it: a vector plus its
// ordered string metadata. The Vector Store itself holds metadata as
// internal/vstore.Metadata; Embedding is the facade's copying view of the
// same data.
type Embedding struct {
	Row      int
	Vector   []float32
	Metadata map[string]string
}

// ScoredEmbedding is an Embedding annotated with a search result's
// distance or ranking-pipeline score.
type ScoredEmbedding struct {
	Embedding
	Score float32
}

// SearchOptions configures a Database.SearchFiltered call.
type SearchOptions struct {
	TopK      int
	Dist      DistanceKind
	Filter    map[string]string // exact-match metadata equality, ANDed
	Threshold float32           // 0 disables; otherwise keeps only results with Score <= Threshold, for every distance kind
}
