package gigavector

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gigavector/gigavector/internal/binformat"
	"github.com/gigavector/gigavector/internal/fulltext"
	"github.com/gigavector/gigavector/internal/index"
	"github.com/gigavector/gigavector/internal/migration"
	"github.com/gigavector/gigavector/internal/pipeline"
	"github.com/gigavector/gigavector/internal/vstore"
)

// dbMagic is the 8-byte database file magic of §6.
const dbMagic = "GIGAVDB1"

// dbVersion is the on-disk format version written to every database file.
const dbVersion = 1

// Database is the embeddable vector database facade: a Vector Store (C1)
// paired with one ANN index (C3-C6), an optional full-text index (C7),
// and the machinery to run multi-phase ranking pipelines (C8) over either.
// Grounded on the teacher's SQLiteStore (store.go) shape — a single
// guarded handle exposing Add/Search/Delete/Close — generalized from a
// SQL-backed store to the in-memory Vector Store plus pluggable index
// family this spec requires.
type Database struct {
	mu sync.RWMutex // serializes operations that touch both store and idx together

	cfg    Config
	store  *vstore.Store
	idx    index.Index
	ft     *fulltext.Index
	logger Logger
	closed bool
}

// Open creates a new, empty Database for the given configuration.
func Open(cfg Config) (*Database, error) {
	if cfg.Dimension <= 0 {
		return nil, wrapError("open", KindInvalidArgument, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig))
	}
	store, err := vstore.New(cfg.Dimension)
	if err != nil {
		return nil, wrapError("open", KindInvalidArgument, err)
	}
	idx, err := newIndex(cfg, store)
	if err != nil {
		return nil, wrapError("open", KindInvalidArgument, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger()
	}
	return &Database{
		cfg:    cfg,
		store:  store,
		idx:    idx,
		ft:     fulltext.New(cfg.FullText.Language, cfg.FullText.BlockSize, cfg.FullText.EnableStemming),
		logger: logger,
	}, nil
}

func newIndex(cfg Config, store *vstore.Store) (index.Index, error) {
	fetch := func(row int) ([]float32, error) { return store.View(row) }
	isLive := func(row int) (bool, error) {
		deleted, err := store.IsDeleted(row)
		if err != nil {
			return false, err
		}
		return !deleted, nil
	}

	switch cfg.Index {
	case IndexFlat:
		return index.NewFlat(cfg.Flat.toInternal(), fetch, isLive), nil
	case IndexHNSW:
		return index.NewHNSW(cfg.HNSW.toInternal(), fetch, isLive), nil
	case IndexIVFFlat:
		ivfCfg := cfg.IVF.toInternal()
		ivfCfg.Mode = index.IVFModeFlat
		return index.NewIVF(ivfCfg, cfg.Dimension, fetch, isLive)
	case IndexIVFPQ:
		ivfCfg := cfg.IVF.toInternal()
		ivfCfg.Mode = index.IVFModePQ
		return index.NewIVF(ivfCfg, cfg.Dimension, fetch, isLive)
	case IndexIVFSQ:
		ivfCfg := cfg.IVF.toInternal()
		ivfCfg.Mode = index.IVFModeSQ
		return index.NewIVF(ivfCfg, cfg.Dimension, fetch, isLive)
	case IndexLSH:
		return index.NewLSH(cfg.LSH.toInternal(), cfg.Dimension, fetch, isLive)
	case IndexSparse:
		return index.NewSparse(isLive), nil
	default:
		return nil, fmt.Errorf("%w: unknown index kind %v", ErrInvalidConfig, cfg.Index)
	}
}

func (db *Database) requireOpen() error {
	if db.closed {
		return wrapError("", KindInvalidArgument, ErrDatabaseClosed)
	}
	return nil
}

// Add validates and inserts vector with optional metadata, returning its
// row index. Metadata may be nil.
func (db *Database) Add(vector []float32, metadata map[string]string) (int, error) {
	if err := validateVector(vector); err != nil {
		return 0, wrapError("add", KindInvalidArgument, err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return 0, err
	}

	md := vstore.NewMetadata()
	for k, v := range metadata {
		md.Set(k, v)
	}
	row, err := db.store.AddWithMetadata(vector, md)
	if err != nil {
		return 0, wrapError("add", classify(err), err)
	}
	if err := db.idx.Add(row, vector); err != nil {
		return row, wrapError("add", KindInvalidArgument, err)
	}
	return row, nil
}

// Update overwrites row's vector in place. The index must be rebuilt to
// see the new position; callers that mutate heavily should prefer
// Delete+Add or Reindex instead, since most index variants do not support
// cheap in-place moves.
func (db *Database) Update(row int, vector []float32) error {
	if err := validateVector(vector); err != nil {
		return wrapError("update", KindInvalidArgument, err)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return err
	}
	if err := db.store.UpdateData(row, vector); err != nil {
		return wrapError("update", classify(err), err)
	}
	return nil
}

// SetMetadata sets a single metadata key/value pair on row.
func (db *Database) SetMetadata(row int, key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return err
	}
	if err := db.store.SetMetadata(row, key, value); err != nil {
		return wrapError("set_metadata", classify(err), err)
	}
	return nil
}

// Delete tombstones row in the Vector Store and removes its structural
// references from the index.
func (db *Database) Delete(row int) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return err
	}
	if err := db.store.Delete(row); err != nil {
		return wrapError("delete", classify(err), err)
	}
	if err := db.idx.Delete(row); err != nil {
		return wrapError("delete", KindInvalidArgument, err)
	}
	if db.ft != nil {
		_ = db.ft.Delete(row)
	}
	return nil
}

// Count returns the number of logical rows, including tombstoned ones.
func (db *Database) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.Count()
}

// Dimension returns the fixed vector dimension.
func (db *Database) Dimension() int {
	return db.cfg.Dimension
}

func (db *Database) toEmbedding(row int, dist float32) (ScoredEmbedding, error) {
	vec, err := db.store.GetData(row)
	if err != nil {
		return ScoredEmbedding{}, err
	}
	md, err := db.store.GetMetadata(row)
	if err != nil {
		return ScoredEmbedding{}, err
	}
	out := make(map[string]string, md.Len())
	md.Each(func(k, v string) { out[k] = v })
	return ScoredEmbedding{
		Embedding: Embedding{Row: row, Vector: vec, Metadata: out},
		Score:     dist,
	}, nil
}

// Search returns the top-k nearest rows to query under dist.
func (db *Database) Search(query []float32, k int, dist DistanceKind) ([]ScoredEmbedding, error) {
	if err := validateVector(query); err != nil {
		return nil, wrapError("search", KindInvalidArgument, err)
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.requireOpen(); err != nil {
		return nil, err
	}

	results, err := db.idx.Search(query, k, dist)
	if err != nil {
		return nil, wrapError("search", KindInvalidArgument, err)
	}
	out := make([]ScoredEmbedding, 0, len(results))
	for _, r := range results {
		emb, err := db.toEmbedding(r.Row, r.Distance)
		if err != nil {
			return nil, wrapError("search", classify(err), err)
		}
		out = append(out, emb)
	}
	return out, nil
}

// SearchFiltered runs Search and then drops rows that don't satisfy
// opts.Filter and opts.Threshold, per §4.3's post-distance metadata
// filter.
func (db *Database) SearchFiltered(query []float32, opts SearchOptions) ([]ScoredEmbedding, error) {
	candidates, err := db.Search(query, opts.TopK, opts.Dist)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredEmbedding, 0, len(candidates))
	for _, c := range candidates {
		if len(opts.Filter) > 0 && !matchesFilter(c.Metadata, opts.Filter) {
			continue
		}
		if opts.Threshold > 0 && c.Score > opts.Threshold {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// RangeSearch returns every row within radius of query, up to maxResults.
func (db *Database) RangeSearch(query []float32, radius float32, dist DistanceKind, maxResults int) ([]ScoredEmbedding, error) {
	if err := validateVector(query); err != nil {
		return nil, wrapError("range_search", KindInvalidArgument, err)
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.requireOpen(); err != nil {
		return nil, err
	}
	results, err := db.idx.RangeSearch(query, radius, dist, maxResults)
	if err != nil {
		return nil, wrapError("range_search", KindInvalidArgument, err)
	}
	out := make([]ScoredEmbedding, 0, len(results))
	for _, r := range results {
		emb, err := db.toEmbedding(r.Row, r.Distance)
		if err != nil {
			return nil, wrapError("range_search", classify(err), err)
		}
		out = append(out, emb)
	}
	return out, nil
}

// Train trains the index, required before Add for the IVF-Flat/IVF-PQ
// variants that need coarse centroids (and, for IVF-PQ, subcodebooks).
// vectors should be a representative sample of the data to be inserted.
// Flat, HNSW, LSH, and Sparse need no training and Train is a no-op for
// them.
func (db *Database) Train(vectors [][]float32) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return err
	}
	trainer, ok := db.idx.(interface{ Train(vectors [][]float32) error })
	if !ok {
		return nil // index variant needs no training (Flat, HNSW, Sparse)
	}
	if err := trainer.Train(vectors); err != nil {
		return wrapError("train", KindTrainingFailed, err)
	}
	return nil
}

// AddSparse indexes row under a sparse (term, weight) posting list; valid
// only when Config.Index is IndexSparse.
func (db *Database) AddSparse(row int, terms []index.SparseTerm) error {
	sp, ok := db.idx.(*index.Sparse)
	if !ok {
		return wrapError("add_sparse", KindInvalidArgument, fmt.Errorf("database is not configured with a sparse index"))
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := sp.AddTerms(row, terms); err != nil {
		return wrapError("add_sparse", KindInvalidArgument, err)
	}
	return nil
}

// SearchSparse queries a sparse index by (term, weight) postings.
func (db *Database) SearchSparse(query []index.SparseTerm, k int) ([]Result, error) {
	sp, ok := db.idx.(*index.Sparse)
	if !ok {
		return nil, wrapError("search_sparse", KindInvalidArgument, fmt.Errorf("database is not configured with a sparse index"))
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	results, err := sp.SearchTerms(query, k)
	if err != nil {
		return nil, wrapError("search_sparse", KindInvalidArgument, err)
	}
	return results, nil
}

// Result is a raw (row, distance) hit, re-exported for sparse search
// callers that don't want the Vector Store's metadata lookups.
type Result = index.Result

// IndexText tokenizes and indexes text under row's full-text entry (C7).
// Re-adding an existing row replaces its prior postings.
func (db *Database) IndexText(row int, text string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return err
	}
	if err := db.ft.AddDocument(row, text); err != nil {
		return wrapError("index_text", KindInvalidArgument, err)
	}
	return nil
}

// SearchText runs BM25 + BlockMax-WAND full-text search (§4.7) and
// returns the matching rows with their original vector and metadata.
func (db *Database) SearchText(query string, k int) ([]ScoredEmbedding, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.requireOpen(); err != nil {
		return nil, err
	}
	var (
		results []fulltext.Result
		err     error
	)
	if db.cfg.FullText.UseBlockMaxWAND {
		results, err = db.ft.Search(query, k)
	} else {
		results, err = db.ft.NaiveSearch(query, k)
	}
	if err != nil {
		return nil, wrapError("search_text", KindInvalidArgument, err)
	}
	out := make([]ScoredEmbedding, 0, len(results))
	for _, r := range results {
		emb, err := db.toEmbedding(r.Row, r.Score)
		if err != nil {
			return nil, wrapError("search_text", classify(err), err)
		}
		out = append(out, emb)
	}
	return out, nil
}

// SearchTextPhrase runs exact phrase matching, per §4.7's phrase search.
// Returns ErrInvalidConfig if Config.FullText.EnablePhraseMatch is false.
func (db *Database) SearchTextPhrase(query string, k int) ([]ScoredEmbedding, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.requireOpen(); err != nil {
		return nil, err
	}
	if !db.cfg.FullText.EnablePhraseMatch {
		return nil, wrapError("search_text_phrase", KindInvalidArgument, ErrInvalidConfig)
	}
	results, err := db.ft.PhraseSearch(query, k)
	if err != nil {
		return nil, wrapError("search_text_phrase", KindInvalidArgument, err)
	}
	out := make([]ScoredEmbedding, 0, len(results))
	for _, r := range results {
		emb, err := db.toEmbedding(r.Row, r.Score)
		if err != nil {
			return nil, wrapError("search_text_phrase", classify(err), err)
		}
		out = append(out, emb)
	}
	return out, nil
}

// RunPipeline executes the given phases (§4.8) starting from this
// Database's index for the ANN phase, and its Vector Store for vector and
// metadata lookups in later phases.
func (db *Database) RunPipeline(query []float32, phases []PipelinePhase) ([]ScoredEmbedding, []pipeline.PhaseStat, error) {
	p, err := pipeline.New(phases)
	if err != nil {
		return nil, nil, wrapError("run_pipeline", KindInvalidArgument, err)
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.requireOpen(); err != nil {
		return nil, nil, err
	}

	ann := func(k int, dist DistanceKind) ([]pipeline.Candidate, error) {
		results, err := db.idx.Search(query, k, dist)
		if err != nil {
			return nil, err
		}
		out := make([]pipeline.Candidate, len(results))
		for i, r := range results {
			out[i] = pipeline.Candidate{Row: r.Row, Score: r.Distance}
		}
		return out, nil
	}
	fetchVector := func(row int) ([]float32, error) { return db.store.GetData(row) }
	fetchMetadata := func(row int) (map[string]string, error) {
		md, err := db.store.GetMetadata(row)
		if err != nil {
			return nil, err
		}
		out := make(map[string]string, md.Len())
		md.Each(func(k, v string) { out[k] = v })
		return out, nil
	}

	candidates, stats, err := p.Execute(query, ann, fetchVector, fetchMetadata)
	if err != nil {
		return nil, nil, wrapError("run_pipeline", KindInvalidArgument, err)
	}
	out := make([]ScoredEmbedding, 0, len(candidates))
	for _, c := range candidates {
		emb, err := db.toEmbedding(c.Row, c.Score)
		if err != nil {
			return nil, nil, wrapError("run_pipeline", classify(err), err)
		}
		out = append(out, emb)
	}
	return out, stats, nil
}

// Compact rewrites the Vector Store in ascending non-deleted row order and
// applies the resulting permutation to the index and full-text index, per
// §3's "compaction is explicit" contract.
func (db *Database) Compact() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return err
	}
	perm, err := db.store.Compact()
	if err != nil {
		return wrapError("compact", classify(err), err)
	}
	if ap, ok := db.idx.(index.ApplyPermutation); ok {
		if err := ap.ApplyPermutation(perm); err != nil {
			return wrapError("compact", KindIoError, err)
		}
	}
	return nil
}

// Reindex rebuilds the Database with a fresh index of kind newKind,
// replaying every live row via the migration subsystem (§5), checking for
// cancellation every 100 rows. The old index is discarded only after the
// new one has fully ingested every live row.
func (db *Database) Reindex(ctx context.Context, newCfg Config) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.requireOpen(); err != nil {
		return err
	}
	newCfg.Dimension = db.cfg.Dimension

	freshIdx, err := newIndex(newCfg, db.store)
	if err != nil {
		return wrapError("reindex", KindInvalidArgument, err)
	}
	if trainer, ok := freshIdx.(interface{ Train(vectors [][]float32) error }); ok {
		var sample [][]float32
		db.store.EachLive(func(row int, vec []float32) {
			cp := make([]float32, len(vec))
			copy(cp, vec)
			sample = append(sample, cp)
		})
		if len(sample) > 0 {
			if err := trainer.Train(sample); err != nil {
				return wrapError("reindex", KindTrainingFailed, err)
			}
		}
	}

	m := migration.New()
	source := func(fn func(row int, vec []float32) error) error {
		var firstErr error
		db.store.EachLive(func(row int, vec []float32) {
			if firstErr != nil {
				return
			}
			firstErr = fn(row, vec)
		})
		return firstErr
	}
	build := func(row int, vec []float32) error { return freshIdx.Add(row, vec) }
	if err := m.Run(ctx, source, build); err != nil {
		return wrapError("reindex", KindIoError, err)
	}

	db.idx = freshIdx
	db.cfg.Index = newCfg.Index
	db.logger.Info("reindex complete", "kind", newCfg.Index.String(), "rows", m.Processed())
	return nil
}

// Close releases the Database. It is safe to call multiple times.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
	return nil
}

// Save serializes the full database file (§6): magic, version,
// index-kind tag, count, dimension, the Vector Store payload, the
// index-specific payload, and finally the full-text payload (empty when
// no rows were ever indexed via IndexText).
func (db *Database) Save(path string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if err := db.requireOpen(); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return wrapError("save", KindIoError, err)
	}
	defer f.Close()

	if _, err := f.WriteString(dbMagic); err != nil {
		return wrapError("save", KindIoError, err)
	}
	if err := binformat.WriteU32(f, dbVersion); err != nil {
		return wrapError("save", KindIoError, err)
	}
	if err := binformat.WriteU32(f, uint32(db.idx.Kind())); err != nil {
		return wrapError("save", KindIoError, err)
	}
	if err := binformat.WriteU64(f, uint64(db.store.Count())); err != nil {
		return wrapError("save", KindIoError, err)
	}
	if err := binformat.WriteU64(f, uint64(db.store.Dimension())); err != nil {
		return wrapError("save", KindIoError, err)
	}
	if err := db.store.WritePayload(f); err != nil {
		return wrapError("save", KindIoError, err)
	}
	if err := db.idx.Save(f); err != nil {
		return wrapError("save", KindIoError, err)
	}

	if err := db.ft.Save(f); err != nil {
		return wrapError("save", KindIoError, err)
	}
	return nil
}

// Load reads a database file written by Save and reconstructs the
// Database, including its index and, if present, its full-text index.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError("load", KindIoError, err)
	}
	defer f.Close()

	if err := binformat.ExpectMagic(f, dbMagic); err != nil {
		return nil, wrapError("load", KindIoError, err)
	}
	version, err := binformat.ReadU32(f)
	if err != nil {
		return nil, wrapError("load", KindIoError, err)
	}
	if version != dbVersion {
		return nil, wrapError("load", KindIoError, fmt.Errorf("unsupported database version %d", version))
	}
	kindTag, err := binformat.ReadU32(f)
	if err != nil {
		return nil, wrapError("load", KindIoError, err)
	}
	count, err := binformat.ReadU64(f)
	if err != nil {
		return nil, wrapError("load", KindIoError, err)
	}
	dimension, err := binformat.ReadU64(f)
	if err != nil {
		return nil, wrapError("load", KindIoError, err)
	}

	store, err := vstore.ReadPayload(f, int(count), int(dimension))
	if err != nil {
		return nil, wrapError("load", KindCorruption, err)
	}

	cfg := DefaultConfig(int(dimension))
	cfg.Index = index.Kind(kindTag)
	idx, err := newIndex(cfg, store)
	if err != nil {
		return nil, wrapError("load", KindCorruption, err)
	}
	if err := idx.Load(f, int(count)); err != nil {
		return nil, wrapError("load", KindCorruption, err)
	}

	ft, err := fulltext.Load(f)
	if err != nil {
		return nil, wrapError("load", KindCorruption, err)
	}

	return &Database{
		cfg:    cfg,
		store:  store,
		idx:    idx,
		ft:     ft,
		logger: NopLogger(),
	}, nil
}
