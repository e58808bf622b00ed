package index

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/gigavector/gigavector/internal/distance"
)

func lshVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		vecs[i] = v
	}
	return vecs
}

func TestLSHInsertAndSearch(t *testing.T) {
	vecs := lshVectors(300, 16, 11)
	fetch := func(row int) ([]float32, error) { return vecs[row], nil }
	live := func(row int) (bool, error) { return true, nil }

	cfg := DefaultLSHConfig()
	cfg.L = 6
	cfg.K = 10
	l, err := NewLSH(cfg, 16, fetch, live)
	if err != nil {
		t.Fatalf("NewLSH: %v", err)
	}
	for i, v := range vecs {
		if err := l.Add(i, v); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}

	results, err := l.Search(vecs[7], 5, distance.Euclidean)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	found := false
	for _, r := range results {
		if r.Row == 7 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected self-match row 7 among results, got %+v", results)
	}
}

func TestLSHKTooLarge(t *testing.T) {
	fetch := func(row int) ([]float32, error) { return nil, nil }
	live := func(row int) (bool, error) { return true, nil }
	cfg := LSHConfig{L: 1, K: 65, Dist: distance.Euclidean}
	if _, err := NewLSH(cfg, 8, fetch, live); err == nil {
		t.Error("expected error when K exceeds 64-bit bucket key capacity")
	}
}

func TestLSHDeleteRemovesFromBuckets(t *testing.T) {
	vecs := lshVectors(50, 8, 2)
	fetch := func(row int) ([]float32, error) { return vecs[row], nil }
	live := func(row int) (bool, error) { return true, nil }
	cfg := DefaultLSHConfig()
	l, _ := NewLSH(cfg, 8, fetch, live)
	for i, v := range vecs {
		_ = l.Add(i, v)
	}
	before := l.Count()
	if err := l.Delete(3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	after := l.Count()
	if after != before-1 {
		t.Errorf("expected count to drop by 1, got %d -> %d", before, after)
	}
}

func TestLSHSaveLoadRoundTrip(t *testing.T) {
	vecs := lshVectors(100, 8, 4)
	fetch := func(row int) ([]float32, error) { return vecs[row], nil }
	live := func(row int) (bool, error) { return true, nil }
	cfg := DefaultLSHConfig()
	l, _ := NewLSH(cfg, 8, fetch, live)
	for i, v := range vecs {
		_ = l.Add(i, v)
	}

	var buf bytes.Buffer
	if err := l.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, _ := NewLSH(cfg, 8, fetch, live)
	if err := loaded.Load(&buf, len(vecs)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != l.Count() {
		t.Errorf("expected count %d after load, got %d", l.Count(), loaded.Count())
	}
}

func TestLSHApplyPermutation(t *testing.T) {
	vecs := lshVectors(20, 4, 9)
	fetch := func(row int) ([]float32, error) { return vecs[row], nil }
	live := func(row int) (bool, error) { return true, nil }
	cfg := DefaultLSHConfig()
	l, _ := NewLSH(cfg, 4, fetch, live)
	for i, v := range vecs {
		_ = l.Add(i, v)
	}
	perm := make([]int, 20)
	for i := range perm {
		if i == 5 {
			perm[i] = -1
			continue
		}
		if i > 5 {
			perm[i] = i - 1
		} else {
			perm[i] = i
		}
	}
	if err := l.ApplyPermutation(perm); err != nil {
		t.Fatalf("ApplyPermutation: %v", err)
	}
	if l.Count() != 19 {
		t.Errorf("expected count 19 after permutation, got %d", l.Count())
	}
}
