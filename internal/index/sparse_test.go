package index

import (
	"bytes"
	"testing"
)

func TestSparseAddAndSearch(t *testing.T) {
	live := func(row int) (bool, error) { return true, nil }
	s := NewSparse(live)

	_ = s.AddTerms(0, []SparseTerm{{Term: 1, Weight: 1.0}, {Term: 2, Weight: 0.5}})
	_ = s.AddTerms(1, []SparseTerm{{Term: 2, Weight: 2.0}})
	_ = s.AddTerms(2, []SparseTerm{{Term: 1, Weight: 0.1}})

	results, err := s.SearchTerms([]SparseTerm{{Term: 2, Weight: 1.0}}, 10)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Row != 1 {
		t.Errorf("expected row 1 to rank first (higher weight), got %+v", results)
	}
}

func TestSparseDeleteRemovesPostings(t *testing.T) {
	live := func(row int) (bool, error) { return true, nil }
	s := NewSparse(live)
	_ = s.AddTerms(0, []SparseTerm{{Term: 1, Weight: 1.0}})
	_ = s.AddTerms(1, []SparseTerm{{Term: 1, Weight: 1.0}})
	if err := s.Delete(0); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, err := s.SearchTerms([]SparseTerm{{Term: 1, Weight: 1.0}}, 10)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	if len(results) != 1 || results[0].Row != 1 {
		t.Errorf("expected only row 1 to remain, got %+v", results)
	}
}

func TestSparseSaveLoadRoundTrip(t *testing.T) {
	live := func(row int) (bool, error) { return true, nil }
	s := NewSparse(live)
	_ = s.AddTerms(0, []SparseTerm{{Term: 1, Weight: 1.0}, {Term: 5, Weight: 2.0}})
	_ = s.AddTerms(1, []SparseTerm{{Term: 5, Weight: 0.5}})

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := NewSparse(live)
	if err := loaded.Load(&buf, 2); err != nil {
		t.Fatalf("Load: %v", err)
	}
	results, err := loaded.SearchTerms([]SparseTerm{{Term: 5, Weight: 1.0}}, 10)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results after load, got %d", len(results))
	}
}

func TestSparseApplyPermutation(t *testing.T) {
	live := func(row int) (bool, error) { return true, nil }
	s := NewSparse(live)
	_ = s.AddTerms(0, []SparseTerm{{Term: 1, Weight: 1.0}})
	_ = s.AddTerms(1, []SparseTerm{{Term: 1, Weight: 1.0}})
	_ = s.AddTerms(2, []SparseTerm{{Term: 1, Weight: 1.0}})

	perm := []int{-1, 0, 1}
	if err := s.ApplyPermutation(perm); err != nil {
		t.Fatalf("ApplyPermutation: %v", err)
	}
	if s.Count() != 2 {
		t.Errorf("expected count 2 after permutation, got %d", s.Count())
	}
	results, err := s.SearchTerms([]SparseTerm{{Term: 1, Weight: 1.0}}, 10)
	if err != nil {
		t.Fatalf("SearchTerms: %v", err)
	}
	for _, r := range results {
		if r.Row != 0 && r.Row != 1 {
			t.Errorf("old rows 1 and 2 should be renumbered to 0 and 1 (old row 0 dropped), results: %+v", results)
		}
	}
}
