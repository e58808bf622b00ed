package fulltext

import "sort"

// DefaultBlockSize is the configurable block size from §3 ("block size is
// configurable (default 128)").
const DefaultBlockSize = 128

// posting is one (doc, term_freq, positions) entry in a term's posting
// list, per §3's "Inverted Posting (C7)".
type posting struct {
	row       int
	tf        int
	positions []int
}

// postingList is a per-term sorted array of postings plus its derived,
// lazily-recomputed block_maxes array.
type postingList struct {
	postings   []posting
	blockMaxes []float32
	blockSize  int
	dirty      bool
}

func newPostingList(blockSize int) *postingList {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &postingList{blockSize: blockSize, dirty: true}
}

// upsert appends doc (sorted by row) or increments its term frequency and
// positions if already present, per §4.7's indexing step, and invalidates
// block_maxes.
func (pl *postingList) upsert(row int, position int) {
	i := sort.Search(len(pl.postings), func(i int) bool { return pl.postings[i].row >= row })
	if i < len(pl.postings) && pl.postings[i].row == row {
		pl.postings[i].tf++
		pl.postings[i].positions = append(pl.postings[i].positions, position)
		pl.dirty = true
		return
	}
	p := posting{row: row, tf: 1, positions: []int{position}}
	pl.postings = append(pl.postings, posting{})
	copy(pl.postings[i+1:], pl.postings[i:])
	pl.postings[i] = p
	pl.dirty = true
}

// remove deletes row's posting entirely, used when a document is deleted
// from the index.
func (pl *postingList) remove(row int) {
	i := sort.Search(len(pl.postings), func(i int) bool { return pl.postings[i].row >= row })
	if i < len(pl.postings) && pl.postings[i].row == row {
		pl.postings = append(pl.postings[:i], pl.postings[i+1:]...)
		pl.dirty = true
	}
}

func (pl *postingList) df() int {
	return len(pl.postings)
}

// ensureBlockMaxes recomputes block_maxes lazily on first use after any
// invalidating mutation, per §4.7 ("lazily computing block_maxes on first
// use").
func (pl *postingList) ensureBlockMaxes(scorer func(tf, docLen int) float32, docLength func(row int) int) {
	if !pl.dirty {
		return
	}
	numBlocks := (len(pl.postings) + pl.blockSize - 1) / pl.blockSize
	maxes := make([]float32, numBlocks)
	for b := 0; b < numBlocks; b++ {
		start := b * pl.blockSize
		end := start + pl.blockSize
		if end > len(pl.postings) {
			end = len(pl.postings)
		}
		var max float32
		for _, p := range pl.postings[start:end] {
			s := scorer(p.tf, docLength(p.row))
			if s > max {
				max = s
			}
		}
		maxes[b] = max
	}
	pl.blockMaxes = maxes
	pl.dirty = false
}

// positionsFor returns the stored positions for row, or nil if absent.
func (pl *postingList) positionsFor(row int) []int {
	i := sort.Search(len(pl.postings), func(i int) bool { return pl.postings[i].row >= row })
	if i < len(pl.postings) && pl.postings[i].row == row {
		return pl.postings[i].positions
	}
	return nil
}
