package index

import (
	"io"

	"github.com/gigavector/gigavector/internal/binformat"
	"github.com/gigavector/gigavector/internal/distance"
)

// Save writes u32 L, u32 K, u32 dim, u32 dist kind, then the L x K
// hyperplane normals (f32), then per table a u32 bucket count and per
// bucket a u64 key, u32 row count, and that many u64 rows.
func (l *LSH) Save(w io.Writer) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := binformat.WriteU32(w, uint32(l.cfg.L)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(l.cfg.K)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(l.dim)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(l.cfg.Dist)); err != nil {
		return err
	}
	for _, table := range l.planes {
		for _, hp := range table {
			if err := binformat.WriteF32Slice(w, hp); err != nil {
				return err
			}
		}
	}
	for _, table := range l.tables {
		if err := binformat.WriteU32(w, uint32(len(table))); err != nil {
			return err
		}
		for key, bucket := range table {
			if err := binformat.WriteU64(w, key); err != nil {
				return err
			}
			if err := binformat.WriteU32(w, uint32(len(bucket))); err != nil {
				return err
			}
			for _, row := range bucket {
				if err := binformat.WriteU64(w, uint64(row)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Load reads the payload written by Save. count is unused: every bucket
// already carries its own row count.
func (l *LSH) Load(r io.Reader, count int) error {
	lCount, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	k, err := binformat.ReadU32(r)
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

	planes := make([][][]float32, lCount)
	for t := range planes {
		bits := make([][]float32, k)
		for b := range bits {
			hp, err := binformat.ReadF32Slice(r, int(dim))
			if err != nil {
				return err
			}
			bits[b] = hp
		}
		planes[t] = bits
	}

	tables := make([]map[uint64][]int, lCount)
	for t := range tables {
		bucketCount, err := binformat.ReadU32(r)
		if err != nil {
			return err
		}
		table := make(map[uint64][]int, bucketCount)
		for i := uint32(0); i < bucketCount; i++ {
			key, err := binformat.ReadU64(r)
			if err != nil {
				return err
			}
			n, err := binformat.ReadU32(r)
			if err != nil {
				return err
			}
			rows := make([]int, n)
			for j := range rows {
				v, err := binformat.ReadU64(r)
				if err != nil {
					return err
				}
				rows[j] = int(v)
			}
			table[key] = rows
		}
		tables[t] = table
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg.L = int(lCount)
	l.cfg.K = int(k)
	l.cfg.Dist = distance.Kind(distKind)
	l.dim = int(dim)
	l.planes = planes
	l.tables = tables
	return nil
}

// ApplyPermutation rewrites row references in every bucket after a Vector
// Store Compact.
func (l *LSH) ApplyPermutation(perm []int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for t, table := range l.tables {
		newTable := make(map[uint64][]int, len(table))
		for key, bucket := range table {
			newBucket := make([]int, 0, len(bucket))
			for _, row := range bucket {
				if row < 0 || row >= len(perm) || perm[row] == -1 {
					continue
				}
				newBucket = append(newBucket, perm[row])
			}
			if len(newBucket) > 0 {
				newTable[key] = newBucket
			}
		}
		l.tables[t] = newTable
	}
	return nil
}
