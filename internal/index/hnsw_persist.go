package index

import (
	"fmt"
	"io"

	"github.com/gigavector/gigavector/internal/binformat"
)

// Save writes the HNSW payload exactly as specified in §6: u32 M, u32 efC,
// u32 efS, u64 entry, then per row (in store row order): u8 level,
// per-layer [u32 degree, degree x u64 neighbor_row].
func (h *HNSW) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := binformat.WriteU32(w, uint32(h.m)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(h.efConstruction)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(h.efSearch)); err != nil {
		return err
	}
	entry := uint64(0)
	if h.hasEntry {
		entry = uint64(h.entryPoint)
	}
	if err := binformat.WriteU64(w, entry); err != nil {
		return err
	}

	count := len(h.nodes)
	for row := 0; row < count; row++ {
		node, ok := h.nodes[row]
		if !ok {
			return fmt.Errorf("hnsw: save: missing node for row %d (graph rows must be contiguous from 0)", row)
		}
		if err := binformat.WriteU8(w, uint8(node.level)); err != nil {
			return err
		}
		for lc := 0; lc <= node.level; lc++ {
			neighbors := node.neighbors[lc]
			if err := binformat.WriteU32(w, uint32(len(neighbors))); err != nil {
				return err
			}
			for _, nb := range neighbors {
				if err := binformat.WriteU64(w, uint64(nb)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Load reads the HNSW payload written by Save. count is the Vector
// Store's row count; the graph is expected to hold exactly that many
// nodes in row order.
func (h *HNSW) Load(r io.Reader, count int) error {
	m, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	efC, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	efS, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	entry, err := binformat.ReadU64(r)
	if err != nil {
		return err
	}

	nodes := make(map[int]*hnswNode, count)
	maxLevel := 0
	for row := 0; row < count; row++ {
		level, err := binformat.ReadU8(r)
		if err != nil {
			return err
		}
		node := &hnswNode{row: row, level: int(level), neighbors: make([][]int, int(level)+1)}
		for lc := 0; lc <= int(level); lc++ {
			degree, err := binformat.ReadU32(r)
			if err != nil {
				return err
			}
			neighbors := make([]int, degree)
			for i := range neighbors {
				v, err := binformat.ReadU64(r)
				if err != nil {
					return err
				}
				neighbors[i] = int(v)
			}
			node.neighbors[lc] = neighbors
		}
		nodes[row] = node
		if int(level) > maxLevel {
			maxLevel = int(level)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.m = int(m)
	h.maxM0 = 2 * int(m)
	h.efConstruction = int(efC)
	h.efSearch = int(efS)
	h.nodes = nodes
	h.entryPoint = int(entry)
	h.maxLevel = maxLevel
	h.hasEntry = count > 0
	return nil
}

// ApplyPermutation rewrites every neighbor reference after a Vector Store
// Compact. Nodes whose row was deleted are dropped; their appearances in
// surviving nodes' neighbor lists are pruned.
func (h *HNSW) ApplyPermutation(perm []int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	newNodes := make(map[int]*hnswNode, len(h.nodes))
	for row, node := range h.nodes {
		if row < 0 || row >= len(perm) || perm[row] == -1 {
			continue
		}
		newRow := perm[row]
		newNeighbors := make([][]int, len(node.neighbors))
		for lc, layer := range node.neighbors {
			filtered := make([]int, 0, len(layer))
			for _, nb := range layer {
				if nb >= 0 && nb < len(perm) && perm[nb] != -1 {
					filtered = append(filtered, perm[nb])
				}
			}
			newNeighbors[lc] = filtered
		}
		newNodes[newRow] = &hnswNode{row: newRow, level: node.level, neighbors: newNeighbors, incomplete: node.incomplete}
	}
	h.nodes = newNodes
	if h.hasEntry {
		if h.entryPoint < 0 || h.entryPoint >= len(perm) || perm[h.entryPoint] == -1 {
			h.recomputeEntryPoint()
		} else {
			h.entryPoint = perm[h.entryPoint]
		}
	}
	return nil
}

func (h *HNSW) recomputeEntryPoint() {
	h.hasEntry = false
	h.maxLevel = 0
	for row, node := range h.nodes {
		if !h.hasEntry || node.level > h.maxLevel {
			h.entryPoint = row
			h.maxLevel = node.level
			h.hasEntry = true
		}
	}
}
