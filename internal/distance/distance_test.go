package distance

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) <= eps
}

func TestEuclideanIdentical(t *testing.T) {
	v := []float32{1, 0, 0, 0}
	d, err := Distance(v, v, Euclidean)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(d, 0, 1e-6) {
		t.Errorf("expected 0, got %v", d)
	}
}

func TestEuclideanUnitVectors(t *testing.T) {
	a := []float32{1, 0, 0, 0}
	b := []float32{0, 1, 0, 0}
	d, err := Distance(a, b, Euclidean)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := float32(math.Sqrt2)
	if !almostEqual(d, want, 1e-5) {
		t.Errorf("expected %v, got %v", want, d)
	}
}

func TestCosineZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	d, err := Distance(a, b, Cosine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 1.0 {
		t.Errorf("expected 1.0 for zero-norm input, got %v", d)
	}
}

func TestCosineIdentical(t *testing.T) {
	a := []float32{1, 2, 3}
	d, err := Distance(a, a, Cosine)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(d, 0, 1e-5) {
		t.Errorf("expected ~0, got %v", d)
	}
}

func TestDimensionMismatch(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 2}
	if _, err := Distance(a, b, Euclidean); err == nil {
		t.Error("expected error on dimension mismatch")
	}
}

func TestHamming(t *testing.T) {
	a := []float32{1, -1, 1, -1}
	b := []float32{1, 1, -1, -1}
	d, err := Distance(a, b, Hamming)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 2 {
		t.Errorf("expected 2 differing positions, got %v", d)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	n := Normalize(v)
	var sumSq float64
	for _, x := range n {
		sumSq += float64(x) * float64(x)
	}
	if !almostEqual(float32(sumSq), 1.0, 1e-5) {
		t.Errorf("expected unit norm, got sumSq=%v", sumSq)
	}
}
