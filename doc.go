// Package gigavector provides an embeddable, pure-Go vector database for
// approximate and exact nearest-neighbor search over dense and sparse
// vectors, combined with BM25 full-text retrieval and a multi-phase
// ranking pipeline.
//
// GigaVector keeps vectors in a structure-of-arrays Vector Store, indexes
// them with one of several ANN variants (brute-force Flat, HNSW, the IVF
// family including IVF-PQ and LSH, or a sparse inverted index), and
// supports layering a ranking pipeline of up to eight phases (ANN search,
// expression-based rerank, Maximal Marginal Relevance rerank, a caller
// callback, or a metadata filter) on top of any index.
//
// # Quick Start
//
//	cfg := gigavector.DefaultConfig(128)
//	cfg.Index = gigavector.IndexHNSW
//	db, err := gigavector.Open(cfg)
//	if err != nil { ... }
//	defer db.Close()
//
//	row, err := db.Add(vector, map[string]string{"lang": "en"})
//	results, err := db.Search(query, 10, gigavector.Euclidean)
//
// # Persistence
//
// A Database serializes to a single file: a structure-of-arrays vector
// payload, an ordered metadata section, a tombstone bitmap, and an
// index-specific payload, framed by an 8-byte magic and version header.
//
//	if err := db.Save(path); err != nil { ... }
//	db2, err := gigavector.Load(path)
//
// # Full-text and hybrid search
//
// Documents added with text are tokenized, stemmed, and indexed for BM25
// scoring via BlockMax-WAND. SearchText and SearchTextPhrase rank by BM25
// alone; the ranking pipeline's RerankExpr and Filter phases see only the
// ANN score and row metadata. No operation combines vector and lexical
// scores into one ranking.
package gigavector
