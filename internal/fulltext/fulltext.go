package fulltext

import (
	"fmt"
	"sort"
	"sync"
)

// Result is a single (row, score) hit, highest score first.
type Result struct {
	Row   int
	Score float32
}

// Index is the BM25 + BlockMax-WAND full-text index of §4.7, keyed by
// store row instead of an opaque doc handle, consistent with every other
// index in the package (Design Note 9).
type Index struct {
	mu sync.RWMutex

	lang      Language
	blockSize int
	stemming  bool

	terms    map[string]*postingList
	docTerms map[int]map[string]bool
	docLen   map[int]int

	docCount       int
	totalDocLength int
}

// New constructs an empty full-text index for the given language and
// block size (0 selects DefaultBlockSize). enableStemming controls whether
// tokens are reduced to their stem before indexing/querying, per §4.7's
// configurable stemming stage.
func New(lang Language, blockSize int, enableStemming bool) *Index {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Index{
		lang:      lang,
		blockSize: blockSize,
		stemming:  enableStemming,
		terms:     make(map[string]*postingList),
		docTerms:  make(map[int]map[string]bool),
		docLen:    make(map[int]int),
	}
}

func (ix *Index) avgDocLength() float64 {
	if ix.docCount == 0 {
		return 0
	}
	return float64(ix.totalDocLength) / float64(ix.docCount)
}

// AddDocument tokenizes text and indexes it under row, per §4.7's
// indexing step. Re-adding an existing row replaces its prior postings.
func (ix *Index) AddDocument(row int, text string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.docTerms[row]; exists {
		ix.removeLocked(row)
	}

	tokens := ix.lang.tokenize(text, ix.stemming)
	seen := make(map[string]bool, len(tokens))
	for pos, tok := range tokens {
		pl, ok := ix.terms[tok]
		if !ok {
			pl = newPostingList(ix.blockSize)
			ix.terms[tok] = pl
		}
		pl.upsert(row, pos)
		seen[tok] = true
	}
	ix.docTerms[row] = seen
	ix.docLen[row] = len(tokens)
	ix.docCount++
	ix.totalDocLength += len(tokens)
	return nil
}

// Delete removes row from every term it was indexed under.
func (ix *Index) Delete(row int) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.docTerms[row]; !exists {
		return nil
	}
	ix.removeLocked(row)
	return nil
}

func (ix *Index) removeLocked(row int) {
	for term := range ix.docTerms[row] {
		if pl, ok := ix.terms[term]; ok {
			pl.remove(row)
		}
	}
	ix.totalDocLength -= ix.docLen[row]
	ix.docCount--
	delete(ix.docTerms, row)
	delete(ix.docLen, row)
}

// NaiveSearch scores every candidate document (any doc containing at
// least one query term) by summing BM25 across matching terms, with no
// block-skipping. It exists primarily to verify BlockMax-WAND's
// equivalence per §8 ("BlockMax-WAND and naive scoring produce identical
// top-k doc sets and scores on any corpus and query").
func (ix *Index) NaiveSearch(query string, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tokens := ix.lang.tokenize(query, ix.stemming)
	scores := make(map[int]float32)
	for _, tok := range tokens {
		pl, ok := ix.terms[tok]
		if !ok {
			continue
		}
		idfVal := idf(ix.docCount, pl.df())
		avgLen := ix.avgDocLength()
		for _, p := range pl.postings {
			scores[p.row] += bm25Score(idfVal, p.tf, ix.docLen[p.row], avgLen)
		}
	}
	return topK(scores, k), nil
}

// Search runs the BlockMax-WAND algorithm of §4.7.
func (ix *Index) Search(query string, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 {
		return nil, fmt.Errorf("fulltext: k must be positive")
	}
	tokens := ix.lang.tokenize(query, ix.stemming)
	return ix.blockMaxWAND(tokens, k)
}

// PhraseSearch finds documents containing the exact token sequence of
// query (after tokenization), scored by summed BM25 across the matching
// terms, per §4.7's phrase search step.
func (ix *Index) PhraseSearch(query string, k int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	tokens := ix.lang.tokenize(query, ix.stemming)
	if len(tokens) == 0 {
		return nil, nil
	}

	rarestIdx, rarestDF := 0, -1
	lists := make([]*postingList, len(tokens))
	for i, tok := range tokens {
		pl, ok := ix.terms[tok]
		if !ok {
			return nil, nil // a missing term means no document can match the phrase
		}
		lists[i] = pl
		if rarestDF == -1 || pl.df() < rarestDF {
			rarestDF = pl.df()
			rarestIdx = i
		}
	}

	avgLen := ix.avgDocLength()
	scores := make(map[int]float32)
	for _, candidate := range lists[rarestIdx].postings {
		row := candidate.row
		basePositions := lists[rarestIdx].positionsFor(row)
		for _, p0 := range basePositions {
			matched := true
			for i := range tokens {
				if i == rarestIdx {
					continue
				}
				offset := p0 + (i - rarestIdx)
				if !containsPosition(lists[i].positionsFor(row), offset) {
					matched = false
					break
				}
			}
			if matched {
				var score float32
				for _, tok := range tokens {
					pl := ix.terms[tok]
					idfVal := idf(ix.docCount, pl.df())
					score += bm25Score(idfVal, tfOf(pl, row), ix.docLen[row], avgLen)
				}
				scores[row] = score
				break
			}
		}
	}
	return topK(scores, k), nil
}

func tfOf(pl *postingList, row int) int {
	i := sort.Search(len(pl.postings), func(i int) bool { return pl.postings[i].row >= row })
	if i < len(pl.postings) && pl.postings[i].row == row {
		return pl.postings[i].tf
	}
	return 0
}

func containsPosition(positions []int, target int) bool {
	i := sort.SearchInts(positions, target)
	return i < len(positions) && positions[i] == target
}

func topK(scores map[int]float32, k int) []Result {
	results := make([]Result, 0, len(scores))
	for row, score := range scores {
		results = append(results, Result{Row: row, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Row < results[j].Row
		}
		return results[i].Score > results[j].Score
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results
}
