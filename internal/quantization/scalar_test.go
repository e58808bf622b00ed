package quantization

import (
	"bytes"
	"testing"
)

func TestScalarQuantizerEncodeDecode(t *testing.T) {
	sq, err := NewScalarQuantizer(8, 8)
	if err != nil {
		t.Fatalf("NewScalarQuantizer: %v", err)
	}
	vecs := randomVectors(200, 8, 3)
	if err := sq.Train(vecs); err != nil {
		t.Fatalf("Train: %v", err)
	}
	codes, err := sq.Encode(vecs[0])
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(codes) != 8 {
		t.Fatalf("expected 8 codes, got %d", len(codes))
	}
	recon, err := sq.Decode(codes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for d := range recon {
		diff := recon[d] - vecs[0][d]
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.05 {
			t.Errorf("dimension %d: reconstruction error %v too large", d, diff)
		}
	}
}

func TestScalarQuantizerRejectsUntrainedUse(t *testing.T) {
	sq, _ := NewScalarQuantizer(4, 8)
	if _, err := sq.Encode([]float32{1, 2, 3, 4}); err == nil {
		t.Error("expected error encoding before Train")
	}
}

func TestScalarQuantizerRejectsBadNBits(t *testing.T) {
	if _, err := NewScalarQuantizer(4, 0); err == nil {
		t.Error("expected error for nbits below 1")
	}
	if _, err := NewScalarQuantizer(4, 9); err == nil {
		t.Error("expected error for nbits above 8")
	}
}

func TestScalarQuantizerApproxDistanceMatchesDecode(t *testing.T) {
	sq, _ := NewScalarQuantizer(4, 8)
	vecs := randomVectors(100, 4, 4)
	sq.Train(vecs)
	codes, _ := sq.Encode(vecs[0])
	recon, _ := sq.Decode(codes)

	var want float32
	query := vecs[1]
	for d := range recon {
		diff := query[d] - recon[d]
		want += diff * diff
	}
	got := sq.ApproxSquaredEuclidean(query, codes)
	if got != want {
		t.Errorf("ApproxSquaredEuclidean = %v, want %v (matching Decode-based computation)", got, want)
	}
}

func TestScalarQuantizerSaveLoadRoundTrip(t *testing.T) {
	sq, _ := NewScalarQuantizer(6, 8)
	vecs := randomVectors(100, 6, 5)
	sq.Train(vecs)

	var buf bytes.Buffer
	if err := sq.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := &ScalarQuantizer{}
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Dimension != sq.Dimension || loaded.NBits != sq.NBits {
		t.Fatalf("loaded quantizer shape mismatch: %+v vs %+v", loaded, sq)
	}
	for d := range sq.Min {
		if loaded.Min[d] != sq.Min[d] || loaded.Max[d] != sq.Max[d] {
			t.Errorf("dimension %d: min/max mismatch after round trip", d)
		}
	}
}
