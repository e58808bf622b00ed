package index

import (
	"io"

	"github.com/gigavector/gigavector/internal/binformat"
)

// Save writes the Flat index's row bookkeeping: a u32 row count followed
// by each row index. Flat holds no structural state beyond "which rows
// are known and live" since it always recomputes distances directly
// against the Vector Store.
func (f *Flat) Save(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	live := make([]int, 0, len(f.rows))
	for _, row := range f.rows {
		if !f.deletedAt[row] {
			live = append(live, row)
		}
	}
	if err := binformat.WriteU32(w, uint32(len(live))); err != nil {
		return err
	}
	for _, row := range live {
		if err := binformat.WriteU64(w, uint64(row)); err != nil {
			return err
		}
	}
	return nil
}

// Load restores the Flat index's row bookkeeping. count is unused: Flat's
// own payload already carries an explicit row count.
func (f *Flat) Load(r io.Reader, count int) error {
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
	}
	f.mu.Lock()
	f.rows = rows
	f.deletedAt = make(map[int]bool)
	f.mu.Unlock()
	return nil
}

// ApplyPermutation rewrites row references after a Vector Store Compact.
func (f *Flat) ApplyPermutation(perm []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	newRows := make([]int, 0, len(f.rows))
	newDeleted := make(map[int]bool, len(f.deletedAt))
	for _, row := range f.rows {
		if row < 0 || row >= len(perm) {
			continue
		}
		newRow := perm[row]
		if newRow == -1 {
			continue // row was deleted by the store; drop from the index
		}
		newRows = append(newRows, newRow)
		if f.deletedAt[row] {
			newDeleted[newRow] = true
		}
	}
	f.rows = newRows
	f.deletedAt = newDeleted
	return nil
}
