package migration

import (
	"context"
	"testing"
)

func sourceOf(vecs [][]float32) RowSource {
	return func(fn func(row int, vec []float32) error) error {
		for i, v := range vecs {
			if err := fn(i, v); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestRunReplaysAllRows(t *testing.T) {
	vecs := make([][]float32, 250)
	for i := range vecs {
		vecs[i] = []float32{float32(i)}
	}
	m := New()
	var built []int
	err := m.Run(context.Background(), sourceOf(vecs), func(row int, vec []float32) error {
		built = append(built, row)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(built) != len(vecs) {
		t.Fatalf("expected %d rows built, got %d", len(vecs), len(built))
	}
	if !m.Done() {
		t.Error("expected migration to be marked done")
	}
	if m.Cancelled() {
		t.Error("expected migration not to be cancelled")
	}
}

func TestCancelStopsAtBatchBoundary(t *testing.T) {
	vecs := make([][]float32, 500)
	for i := range vecs {
		vecs[i] = []float32{float32(i)}
	}
	m := New()
	var built []int
	err := m.Run(context.Background(), sourceOf(vecs), func(row int, vec []float32) error {
		built = append(built, row)
		if len(built) == 150 {
			m.Cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !m.Cancelled() {
		t.Error("expected migration to report cancelled")
	}
	if len(built) >= len(vecs) {
		t.Errorf("expected cancellation to stop before processing all rows, got %d", len(built))
	}
}

func TestContextCancellationStopsRun(t *testing.T) {
	vecs := make([][]float32, 500)
	for i := range vecs {
		vecs[i] = []float32{float32(i)}
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := New()
	var built []int
	err := m.Run(ctx, sourceOf(vecs), func(row int, vec []float32) error {
		built = append(built, row)
		if len(built) == 100 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(built) >= len(vecs) {
		t.Errorf("expected context cancellation to stop replay early, got %d rows", len(built))
	}
}
