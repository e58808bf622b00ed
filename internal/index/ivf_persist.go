package index

import (
	"io"

	"github.com/gigavector/gigavector/internal/binformat"
	"github.com/gigavector/gigavector/internal/distance"
	"github.com/gigavector/gigavector/internal/quantization"
)

// Save writes the IVF payload per §6: u32 mode, u32 nlist, u32 nprobe,
// u32 dim, u32 dist kind, then nlist x dim f32 centroids, then per list a
// u32 row count and that many u64 rows. IVF-PQ additionally writes
// u32 pqSubspaces, u32 pqNBits, u32 rerankTop, the PQ codebook payload,
// and one u64-row + code-bytes entry per encoded row.
func (idx *IVF) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := binformat.WriteU32(w, uint32(idx.cfg.Mode)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(idx.cfg.NList)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(idx.cfg.NProbe)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(idx.dim)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(idx.cfg.Dist)); err != nil {
		return err
	}
	for _, c := range idx.centroids {
		if err := binformat.WriteF32Slice(w, c); err != nil {
			return err
		}
	}
	for _, list := range idx.lists {
		if err := binformat.WriteU32(w, uint32(len(list))); err != nil {
			return err
		}
		for _, row := range list {
			if err := binformat.WriteU64(w, uint64(row)); err != nil {
				return err
			}
		}
	}

	if idx.cfg.Mode == IVFModePQ {
		if err := binformat.WriteU32(w, uint32(idx.cfg.PQSubspaces)); err != nil {
			return err
		}
		if err := binformat.WriteU32(w, uint32(idx.cfg.PQNBits)); err != nil {
			return err
		}
		if err := binformat.WriteU32(w, uint32(idx.cfg.RerankTop)); err != nil {
			return err
		}
		if err := idx.pq.Save(w); err != nil {
			return err
		}
		if err := binformat.WriteU32(w, uint32(len(idx.codes))); err != nil {
			return err
		}
		for row, code := range idx.codes {
			if err := binformat.WriteU64(w, uint64(row)); err != nil {
				return err
			}
			if err := binformat.WriteBytes(w, code); err != nil {
				return err
			}
		}
	}

	if idx.cfg.Mode == IVFModeSQ {
		if err := binformat.WriteU32(w, uint32(idx.cfg.RerankTop)); err != nil {
			return err
		}
		if err := idx.sq.Save(w); err != nil {
			return err
		}
		if err := binformat.WriteU32(w, uint32(len(idx.codes))); err != nil {
			return err
		}
		for row, code := range idx.codes {
			if err := binformat.WriteU64(w, uint64(row)); err != nil {
				return err
			}
			if err := binformat.WriteBytes(w, code); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads the payload written by Save. count is unused: IVF's list and
// code bookkeeping already carry their own row counts.
func (idx *IVF) Load(r io.Reader, count int) error {
	mode, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	nlist, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	nprobe, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	dim, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	distKind, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}

	centroids := make([][]float32, nlist)
	for i := range centroids {
		c, err := binformat.ReadF32Slice(r, int(dim))
		if err != nil {
			return err
		}
		centroids[i] = c
	}
	lists := make([][]int, nlist)
	rowList := make(map[int]int)
	for li := range lists {
		n, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		rows := make([]int, n)
		for i := range rows {
			v, err := binformat.ReadU64(r)
			if err != nil {
				return err
			}
			rows[i] = int(v)
			rowList[int(v)] = li
		}
		lists[li] = rows
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.cfg.Mode = IVFMode(mode)
	idx.cfg.NList = int(nlist)
	idx.cfg.NProbe = int(nprobe)
	idx.cfg.Dist = distance.Kind(distKind)
	idx.dim = int(dim)
	idx.centroids = centroids
	idx.lists = lists
	idx.rowList = rowList
	idx.trained = true

	if idx.cfg.Mode == IVFModePQ {
		pqSubspaces, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		pqNBits, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		rerankTop, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		idx.cfg.PQSubspaces = int(pqSubspaces)
		idx.cfg.PQNBits = int(pqNBits)
		idx.cfg.RerankTop = int(rerankTop)

		pq := &quantization.ProductQuantizer{}
		if err := pq.Load(r); err != nil {
			return err
		}
		idx.pq = pq

		codeCount, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		codes := make(map[int][]byte, codeCount)
		for i := uint32(0); i < codeCount; i++ {
			row, err := binformat.ReadU64(r)
			if err != nil {
				return err
			}
			code, err := binformat.ReadBytes(r)
			if err != nil {
				return err
			}
			codes[int(row)] = code
		}
		idx.codes = codes
	}

	if idx.cfg.Mode == IVFModeSQ {
		rerankTop, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		idx.cfg.RerankTop = int(rerankTop)

		sq := &quantization.ScalarQuantizer{}
		if err := sq.Load(r); err != nil {
			return err
		}
		idx.sq = sq

		codeCount, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		codes := make(map[int][]byte, codeCount)
		for i := uint32(0); i < codeCount; i++ {
			row, err := binformat.ReadU64(r)
			if err != nil {
				return err
			}
			code, err := binformat.ReadBytes(r)
			if err != nil {
				return err
			}
			codes[int(row)] = code
		}
		idx.codes = codes
	}
	return nil
}

// ApplyPermutation rewrites row references in every list (and PQ code map,
// for IVF-PQ) after a Vector Store Compact.
func (idx *IVF) ApplyPermutation(perm []int) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	newLists := make([][]int, len(idx.lists))
	newRowList := make(map[int]int, len(idx.rowList))
	for li, rows := range idx.lists {
		newRows := make([]int, 0, len(rows))
		for _, row := range rows {
			if row < 0 || row >= len(perm) || perm[row] == -1 {
				continue
			}
			newRow := perm[row]
			newRows = append(newRows, newRow)
			newRowList[newRow] = li
		}
		newLists[li] = newRows
	}
	idx.lists = newLists
	idx.rowList = newRowList

	if idx.cfg.Mode == IVFModePQ || idx.cfg.Mode == IVFModeSQ {
		newCodes := make(map[int][]byte, len(idx.codes))
		for row, code := range idx.codes {
			if row < 0 || row >= len(perm) || perm[row] == -1 {
				continue
			}
			newCodes[perm[row]] = code
		}
		idx.codes = newCodes
	}
	return nil
}
