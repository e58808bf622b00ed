package index

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/gigavector/gigavector/internal/distance"
)

func newHNSWOverVectors(vecs [][]float32, cfg HNSWConfig) *HNSW {
	fetch := func(row int) ([]float32, error) { return vecs[row], nil }
	live := func(row int) (bool, error) { return true, nil }
	return NewHNSW(cfg, fetch, live)
}

func TestHNSWInsertAndSelfSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, dim = 1000, 64
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		vecs[i] = v
	}

	cfg := DefaultHNSWConfig()
	h := newHNSWOverVectors(vecs, cfg)
	for i, v := range vecs {
		if err := h.Add(i, v); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}

	target := 57
	results, err := h.Search(vecs[target], 1, distance.Euclidean)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Row != target {
		t.Fatalf("expected self-match row %d, got %+v", target, results)
	}
	if results[0].Distance > 1e-5 {
		t.Errorf("expected distance <= 1e-5, got %v", results[0].Distance)
	}
}

func TestHNSWRecallVsFlat(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n, dim = 500, 32
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		vecs[i] = v
	}

	cfg := DefaultHNSWConfig()
	cfg.M = 16
	cfg.EfSearch = 64
	h := newHNSWOverVectors(vecs, cfg)
	for i, v := range vecs {
		if err := h.Add(i, v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	flat := NewFlat(DefaultFlatConfig(), func(row int) ([]float32, error) { return vecs[row], nil }, alwaysLive)
	for i, v := range vecs {
		_ = flat.Add(i, v)
	}

	const k = 10
	const queries = 20
	hits := 0
	for q := 0; q < queries; q++ {
		query := vecs[rng.Intn(n)]
		want, err := flat.Search(query, k, distance.Euclidean)
		if err != nil {
			t.Fatalf("flat search: %v", err)
		}
		got, err := h.Search(query, k, distance.Euclidean)
		if err != nil {
			t.Fatalf("hnsw search: %v", err)
		}
		wantSet := make(map[int]bool, len(want))
		for _, r := range want {
			wantSet[r.Row] = true
		}
		for _, r := range got {
			if wantSet[r.Row] {
				hits++
			}
		}
	}
	recall := float64(hits) / float64(queries*k)
	if recall < 0.8 {
		t.Errorf("expected recall >= 0.8 on this small synthetic set, got %v", recall)
	}
}

func TestHNSWSaveLoadRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const n, dim = 50, 8
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		vecs[i] = v
	}
	cfg := DefaultHNSWConfig()
	h := newHNSWOverVectors(vecs, cfg)
	for i, v := range vecs {
		_ = h.Add(i, v)
	}

	var buf bytes.Buffer
	if err := h.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := newHNSWOverVectors(vecs, cfg)
	if err := loaded.Load(&buf, n); err != nil {
		t.Fatalf("Load: %v", err)
	}

	query := vecs[3]
	want, err := h.Search(query, 5, distance.Euclidean)
	if err != nil {
		t.Fatalf("search original: %v", err)
	}
	got, err := loaded.Search(query, 5, distance.Euclidean)
	if err != nil {
		t.Fatalf("search loaded: %v", err)
	}
	if len(want) != len(got) {
		t.Fatalf("result length mismatch: %d vs %d", len(want), len(got))
	}
	for i := range want {
		if want[i].Row != got[i].Row {
			t.Errorf("result %d: row mismatch %d vs %d", i, want[i].Row, got[i].Row)
		}
	}
}

func TestHNSWDimensionMismatchDistance(t *testing.T) {
	vecs := [][]float32{{1, 2}, {3, 4}}
	h := newHNSWOverVectors(vecs, DefaultHNSWConfig())
	_ = h.Add(0, vecs[0])
	_ = h.Add(1, vecs[1])
	if _, err := h.Search([]float32{1, 2}, 1, distance.Cosine); err == nil {
		t.Error("expected error when search distance kind differs from build kind")
	}
}
