package fulltext

import (
	"io"
	"sort"

	"github.com/gigavector/gigavector/internal/binformat"
)

// Magic is the 7-byte full-text payload prefix from §6.
const Magic = "GV_FT01"

// flagNoStem is the one bit currently defined in the full-text payload's
// flags u32: set when the index was built with stemming disabled. All
// other bits stay reserved at 0, per §6.
const flagNoStem = 1 << 0

// Save writes the exact §6 full-text payload: magic, u32 language,
// u32 flags (bit 0 = stemming disabled, remaining bits reserved at 0),
// u64 block_size, stats (u64 doc_count, u64 term_count, u64
// total_doc_length), the doc length table terminated by the sentinel
// UINT64_MAX, then posting lists each (u32 term_len, bytes, u64
// posting_count, postings), terminated by u32 0.
func (ix *Index) Save(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if _, err := w.Write([]byte(Magic)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(ix.lang)); err != nil {
		return err
	}
	var flags uint32
	if !ix.stemming {
		flags |= flagNoStem
	}
	if err := binformat.WriteU32(w, flags); err != nil {
		return err
	}
	if err := binformat.WriteU64(w, uint64(ix.blockSize)); err != nil {
		return err
	}
	if err := binformat.WriteU64(w, uint64(ix.docCount)); err != nil {
		return err
	}
	if err := binformat.WriteU64(w, uint64(len(ix.terms))); err != nil {
		return err
	}
	if err := binformat.WriteU64(w, uint64(ix.totalDocLength)); err != nil {
		return err
	}

	rows := make([]int, 0, len(ix.docLen))
	for row := range ix.docLen {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	for _, row := range rows {
		if err := binformat.WriteU64(w, uint64(row)); err != nil {
			return err
		}
		if err := binformat.WriteU64(w, uint64(ix.docLen[row])); err != nil {
			return err
		}
	}
	sentinel := ^uint64(0)
	if err := binformat.WriteU64(w, sentinel); err != nil {
		return err
	}

	terms := make([]string, 0, len(ix.terms))
	for term := range ix.terms {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	for _, term := range terms {
		pl := ix.terms[term]
		if err := binformat.WriteString(w, term); err != nil {
			return err
		}
		if err := binformat.WriteU64(w, uint64(len(pl.postings))); err != nil {
			return err
		}
		for _, p := range pl.postings {
			if err := binformat.WriteU64(w, uint64(p.row)); err != nil {
				return err
			}
			if err := binformat.WriteU32(w, uint32(p.tf)); err != nil {
				return err
			}
			if err := binformat.WriteU32(w, uint32(len(p.positions))); err != nil {
				return err
			}
			for _, pos := range p.positions {
				if err := binformat.WriteU32(w, uint32(pos)); err != nil {
					return err
				}
			}
		}
	}
	return binformat.WriteU32(w, 0)
}

// Load reads the payload written by Save. Posting lists are marked dirty
// so block_maxes are recomputed lazily on first query, matching §4.7's
// "lazily computing block_maxes on first use".
func Load(r io.Reader) (*Index, error) {
	if err := binformat.ExpectMagic(r, Magic); err != nil {
		return nil, err
	}
	lang, err := binformat.ReadU32(r)
	if err != nil {
		return nil, err
	}
	flags, err := binformat.ReadU32(r)
	if err != nil {
		return nil, err
	}
	blockSize, err := binformat.ReadU64(r)
	if err != nil {
		return nil, err
	}
	docCount, err := binformat.ReadU64(r)
	if err != nil {
		return nil, err
	}
	if _, err := binformat.ReadU64(r); err != nil { // term_count, redundant with terminator scan
		return nil, err
	}
	totalDocLength, err := binformat.ReadU64(r)
	if err != nil {
		return nil, err
	}

	ix := New(Language(lang), int(blockSize), flags&flagNoStem == 0)
	ix.docCount = int(docCount)
	ix.totalDocLength = int(totalDocLength)

	for {
		row, err := binformat.ReadU64(r)
		if err != nil {
			return nil, err
		}
		if row == ^uint64(0) {
			break
		}
		docLen, err := binformat.ReadU64(r)
		if err != nil {
			return nil, err
		}
		ix.docLen[int(row)] = int(docLen)
		ix.docTerms[int(row)] = make(map[string]bool)
	}

	for {
		termLen, err := binformat.ReadU32(r)
		if err != nil {
			return nil, err
		}
		if termLen == 0 {
			break
		}
		termBytes := make([]byte, termLen)
		if _, err := io.ReadFull(r, termBytes); err != nil {
			return nil, err
		}
		term := string(termBytes)

		postingCount, err := binformat.ReadU64(r)
		if err != nil {
			return nil, err
		}
		pl := newPostingList(ix.blockSize)
		pl.postings = make([]posting, postingCount)
		for i := uint64(0); i < postingCount; i++ {
			row, err := binformat.ReadU64(r)
			if err != nil {
				return nil, err
			}
			tf, err := binformat.ReadU32(r)
			if err != nil {
				return nil, err
			}
			posCount, err := binformat.ReadU32(r)
			if err != nil {
				return nil, err
			}
			positions := make([]int, posCount)
			for j := range positions {
				p, err := binformat.ReadU32(r)
				if err != nil {
					return nil, err
				}
				positions[j] = int(p)
			}
			pl.postings[i] = posting{row: int(row), tf: int(tf), positions: positions}
			if set, ok := ix.docTerms[int(row)]; ok {
				set[term] = true
			}
		}
		ix.terms[term] = pl
	}

	return ix, nil
}
