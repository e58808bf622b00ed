package index

import (
	"testing"

	"github.com/gigavector/gigavector/internal/distance"
)

func fixedFetcher(vecs [][]float32) VectorFetcher {
	return func(row int) ([]float32, error) {
		return vecs[row], nil
	}
}

func alwaysLive(int) (bool, error) { return true, nil }

func TestFlatExactMatch(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	f := NewFlat(DefaultFlatConfig(), fixedFetcher(vecs), alwaysLive)
	for i, v := range vecs {
		if err := f.Add(i, v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	results, err := f.Search([]float32{1, 0, 0, 0}, 1, distance.Euclidean)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Row != 0 {
		t.Fatalf("expected row 0, got %+v", results)
	}
	if results[0].Distance > 1e-6 {
		t.Errorf("expected distance ~0, got %v", results[0].Distance)
	}
}

func TestFlatRangeSearch(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	f := NewFlat(DefaultFlatConfig(), fixedFetcher(vecs), alwaysLive)
	for i, v := range vecs {
		_ = f.Add(i, v)
	}

	results, err := f.RangeSearch([]float32{1, 0, 0, 0}, 1.5, distance.Euclidean, 10)
	if err != nil {
		t.Fatalf("RangeSearch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected all 3 rows within radius, got %d", len(results))
	}
	if results[0].Row != 0 || results[0].Distance > 1e-6 {
		t.Errorf("expected row 0 first with ~0 distance, got %+v", results[0])
	}
}

func TestFlatDeleteSkipsRow(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0, 1}}
	f := NewFlat(DefaultFlatConfig(), fixedFetcher(vecs), alwaysLive)
	_ = f.Add(0, vecs[0])
	_ = f.Add(1, vecs[1])
	_ = f.Delete(0)

	results, err := f.Search([]float32{1, 0}, 2, distance.Euclidean)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Row == 0 {
			t.Error("deleted row should not appear in results")
		}
	}
}

func TestFlatFilter(t *testing.T) {
	vecs := [][]float32{{1, 0}, {1, 0}}
	f := NewFlat(DefaultFlatConfig(), fixedFetcher(vecs), alwaysLive)
	_ = f.Add(0, vecs[0])
	_ = f.Add(1, vecs[1])

	filter := func(row int) (bool, error) { return row == 1, nil }
	results, err := f.SearchFiltered([]float32{1, 0}, 2, distance.Euclidean, filter)
	if err != nil {
		t.Fatalf("SearchFiltered: %v", err)
	}
	if len(results) != 1 || results[0].Row != 1 {
		t.Fatalf("expected only row 1, got %+v", results)
	}
}

func TestFlatApplyPermutation(t *testing.T) {
	vecs := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	f := NewFlat(DefaultFlatConfig(), fixedFetcher(vecs), alwaysLive)
	_ = f.Add(0, vecs[0])
	_ = f.Add(1, vecs[1])
	_ = f.Add(2, vecs[2])
	_ = f.Delete(1)

	// Simulate a store Compact that dropped row 1 and shifted row 2 to 1.
	perm := []int{0, -1, 1}
	if err := f.ApplyPermutation(perm); err != nil {
		t.Fatalf("ApplyPermutation: %v", err)
	}
	if f.Count() != 2 {
		t.Errorf("expected 2 live rows after permutation, got %d", f.Count())
	}
}
