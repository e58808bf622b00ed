package fulltext

import (
	"container/heap"
	"sort"
)

// wandCursor walks one term's posting list for BlockMax-WAND.
type wandCursor struct {
	term string
	pl   *postingList
	idf  float64
	pos  int
}

func (c *wandCursor) exhausted() bool { return c.pos >= len(c.pl.postings) }

func (c *wandCursor) docID() int {
	if c.exhausted() {
		return int(^uint(0) >> 1) // max int, sorts last
	}
	return c.pl.postings[c.pos].row
}

func (c *wandCursor) blockIndex() int { return c.pos / c.pl.blockSize }

func (c *wandCursor) advanceToDoc(doc int) {
	for !c.exhausted() && c.docID() < doc {
		c.pos++
	}
}

func (c *wandCursor) advancePastBlock() {
	nextBlockStart := (c.blockIndex() + 1) * c.pl.blockSize
	if nextBlockStart > c.pos {
		c.pos = nextBlockStart
	} else {
		c.pos++
	}
}

// scoreHeap is a min-heap over (row, score), the bounded top-k result set
// that BlockMax-WAND's threshold check compares the bound against.
type scoreHeap []Result

func (h scoreHeap) Len() int            { return len(h) }
func (h scoreHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h scoreHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x interface{}) { *h = append(*h, x.(Result)) }
func (h *scoreHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// blockMaxWAND implements §4.7's five-step loop.
func (ix *Index) blockMaxWAND(tokens []string, k int) ([]Result, error) {
	uniqueTerms := make(map[string]bool)
	var cursors []*wandCursor
	avgLen := ix.avgDocLength()
	for _, tok := range tokens {
		if uniqueTerms[tok] {
			continue
		}
		uniqueTerms[tok] = true
		pl, ok := ix.terms[tok]
		if !ok || pl.df() == 0 {
			continue
		}
		idfVal := idf(ix.docCount, pl.df())
		pl.ensureBlockMaxes(func(tf, docLen int) float32 {
			return bm25Score(idfVal, tf, docLen, avgLen)
		}, func(row int) int { return ix.docLen[row] })
		cursors = append(cursors, &wandCursor{term: tok, pl: pl, idf: idfVal})
	}
	if len(cursors) == 0 {
		return nil, nil
	}

	results := &scoreHeap{}
	heap.Init(results)

	for {
		anyExhausted := false
		for _, c := range cursors {
			if c.exhausted() {
				anyExhausted = true
			}
		}
		if anyExhausted {
			break
		}

		sort.Slice(cursors, func(i, j int) bool { return cursors[i].docID() < cursors[j].docID() })

		var bound float32
		for _, c := range cursors {
			bound += rawBlockMax(c)
		}

		threshold := float32(0)
		haveFullHeap := results.Len() >= k
		if haveFullHeap {
			threshold = (*results)[0].Score
		}
		if haveFullHeap && bound <= threshold {
			cursors[0].advancePastBlock()
			continue
		}

		var cumulative float32
		pivotIdx := -1
		for i, c := range cursors {
			cumulative += rawBlockMax(c)
			if cumulative > threshold {
				pivotIdx = i
				break
			}
		}
		if pivotIdx == -1 {
			pivotIdx = len(cursors) - 1
		}
		pivotDoc := cursors[pivotIdx].docID()

		for i := 0; i < pivotIdx; i++ {
			cursors[i].advanceToDoc(pivotDoc)
		}

		allAtPivot := true
		for i := 0; i <= pivotIdx; i++ {
			if cursors[i].exhausted() || cursors[i].docID() != pivotDoc {
				allAtPivot = false
				break
			}
		}
		if !allAtPivot {
			continue
		}

		var score float32
		for i := 0; i < len(cursors); i++ {
			c := cursors[i]
			if c.docID() == pivotDoc {
				tf := c.pl.postings[c.pos].tf
				score += bm25Score(c.idf, tf, ix.docLen[pivotDoc], avgLen)
			}
		}
		if results.Len() < k {
			heap.Push(results, Result{Row: pivotDoc, Score: score})
		} else if score > (*results)[0].Score {
			heap.Pop(results)
			heap.Push(results, Result{Row: pivotDoc, Score: score})
		}
		for i := 0; i < len(cursors); i++ {
			if cursors[i].docID() == pivotDoc {
				cursors[i].pos++
			}
		}
	}

	out := make([]Result, len(*results))
	copy(out, *results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Row < out[j].Row
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// rawBlockMax returns the precomputed BM25 upper bound for the cursor's
// current block (already BM25-scaled, since ensureBlockMaxes's scorer
// closure applies idf).
func rawBlockMax(c *wandCursor) float32 {
	if c.exhausted() {
		return 0
	}
	bi := c.blockIndex()
	if bi >= len(c.pl.blockMaxes) {
		return 0
	}
	return c.pl.blockMaxes[bi]
}
