package quantization

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
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

func TestKMeansConverges(t *testing.T) {
	vecs := randomVectors(200, 8, 1)
	result, err := KMeans(vecs, 4, 50, 1e-4, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("KMeans: %v", err)
	}
	if len(result.Centroids) != 4 {
		t.Fatalf("expected 4 centroids, got %d", len(result.Centroids))
	}
}

func TestKMeansTooFewVectors(t *testing.T) {
	vecs := randomVectors(2, 4, 1)
	if _, err := KMeans(vecs, 4, 10, 1e-4, nil); err == nil {
		t.Error("expected error when fewer vectors than k")
	}
}

func TestProductQuantizerEncodeDecode(t *testing.T) {
	pq, err := NewProductQuantizer(8, 2, 4)
	if err != nil {
		t.Fatalf("NewProductQuantizer: %v", err)
	}
	vecs := randomVectors(500, 8, 2)
	if err := pq.Train(vecs, rand.New(rand.NewSource(2))); err != nil {
		t.Fatalf("Train: %v", err)
	}
	codes, err := pq.Encode(vecs[0])
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(codes))
	}
	recon, err := pq.Decode(codes)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(recon) != 8 {
		t.Fatalf("expected reconstructed dim 8, got %d", len(recon))
	}
}

func TestProductQuantizerADCRanking(t *testing.T) {
	pq, err := NewProductQuantizer(8, 2, 4)
	if err != nil {
		t.Fatalf("NewProductQuantizer: %v", err)
	}
	vecs := randomVectors(500, 8, 3)
	if err := pq.Train(vecs, rand.New(rand.NewSource(3))); err != nil {
		t.Fatalf("Train: %v", err)
	}
	codes := make([][]byte, len(vecs))
	for i, v := range vecs {
		c, err := pq.Encode(v)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		codes[i] = c
	}
	table, err := pq.BuildDistanceTable(vecs[0])
	if err != nil {
		t.Fatalf("BuildDistanceTable: %v", err)
	}
	selfDist := table.ADC(codes[0])
	otherDist := table.ADC(codes[1])
	if selfDist > otherDist+1.0 {
		t.Errorf("self-code ADC distance %v should generally be small relative to another's %v", selfDist, otherDist)
	}
}

func TestProductQuantizerSaveLoadRoundTrip(t *testing.T) {
	pq, err := NewProductQuantizer(8, 2, 4)
	if err != nil {
		t.Fatalf("NewProductQuantizer: %v", err)
	}
	vecs := randomVectors(500, 8, 4)
	if err := pq.Train(vecs, rand.New(rand.NewSource(4))); err != nil {
		t.Fatalf("Train: %v", err)
	}

	var buf bytes.Buffer
	if err := pq.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded := &ProductQuantizer{}
	if err := loaded.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}
	codes, _ := pq.Encode(vecs[0])
	loadedCodes, _ := loaded.Encode(vecs[0])
	for i := range codes {
		if codes[i] != loadedCodes[i] {
			t.Errorf("code %d mismatch after round trip: %d vs %d", i, codes[i], loadedCodes[i])
		}
	}
}

func TestProductQuantizerUntrainedErrors(t *testing.T) {
	pq, _ := NewProductQuantizer(8, 2, 4)
	if _, err := pq.Encode(make([]float32, 8)); err == nil {
		t.Error("expected error encoding with untrained quantizer")
	}
}
