package vstore

import (
	"bytes"
	"testing"
)

func TestAddAndGet(t *testing.T) {
	s, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	row, err := s.Add([]float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if row != 0 {
		t.Errorf("expected row 0, got %d", row)
	}
	got, err := s.GetData(row)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	want := []float32{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
	if deleted, _ := s.IsDeleted(row); deleted {
		t.Error("freshly added row should not be deleted")
	}
}

func TestDimensionMismatch(t *testing.T) {
	s, _ := New(4)
	if _, err := s.Add([]float32{1, 2, 3}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestDeleteTombstone(t *testing.T) {
	s, _ := New(2)
	row, _ := s.Add([]float32{1, 1})
	if err := s.Delete(row); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	deleted, err := s.IsDeleted(row)
	if err != nil || !deleted {
		t.Errorf("expected row deleted, err=%v deleted=%v", err, deleted)
	}
	if s.Count() != 1 {
		t.Errorf("Count should still include tombstoned rows, got %d", s.Count())
	}
	if s.LiveCount() != 0 {
		t.Errorf("LiveCount should exclude tombstoned rows, got %d", s.LiveCount())
	}
}

func TestCompactRenumbers(t *testing.T) {
	s, _ := New(2)
	r0, _ := s.Add([]float32{0, 0})
	r1, _ := s.Add([]float32{1, 1})
	r2, _ := s.Add([]float32{2, 2})
	_ = s.Delete(r1)

	perm, err := s.Compact()
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if perm[r0] != 0 {
		t.Errorf("expected row0 -> 0, got %d", perm[r0])
	}
	if perm[r1] != -1 {
		t.Errorf("expected deleted row -> -1, got %d", perm[r1])
	}
	if perm[r2] != 1 {
		t.Errorf("expected row2 -> 1, got %d", perm[r2])
	}
	if s.Count() != 2 {
		t.Errorf("expected 2 live rows after compact, got %d", s.Count())
	}
	v, _ := s.GetData(1)
	if v[0] != 2 {
		t.Errorf("expected compacted row 1 to hold original row2's data, got %v", v)
	}
}

func TestMetadataOrderPreserved(t *testing.T) {
	md := NewMetadata()
	md.Set("b", "2")
	md.Set("a", "1")
	md.Set("b", "20")
	keys := md.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("expected insertion order [b a], got %v", keys)
	}
	v, ok := md.Get("b")
	if !ok || v != "20" {
		t.Errorf("expected updated value 20, got %v ok=%v", v, ok)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	s, _ := New(3)
	md := NewMetadata()
	md.Set("lang", "en")
	r0, _ := s.AddWithMetadata([]float32{1, 2, 3}, md)
	_, _ = s.Add([]float32{4, 5, 6})
	_ = s.Delete(r0)

	var buf bytes.Buffer
	if err := s.WritePayload(&buf); err != nil {
		t.Fatalf("WritePayload: %v", err)
	}

	loaded, err := ReadPayload(&buf, s.Count(), s.Dimension())
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if loaded.Count() != s.Count() {
		t.Errorf("count mismatch: got %d want %d", loaded.Count(), s.Count())
	}
	deleted, _ := loaded.IsDeleted(0)
	if !deleted {
		t.Error("expected row 0 to round-trip as deleted")
	}
	lmd, _ := loaded.GetMetadata(0)
	if v, ok := lmd.Get("lang"); !ok || v != "en" {
		t.Errorf("expected metadata to round-trip, got %v ok=%v", v, ok)
	}
}
