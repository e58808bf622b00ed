package pipeline

import (
	"testing"

	"github.com/gigavector/gigavector/internal/distance"
)

func TestNewRejectsEmptyPhases(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for empty phase list")
	}
}

func TestNewRejectsNonANNFirst(t *testing.T) {
	phases := []PhaseConfig{{Kind: PhaseFilter, Expr: "lang=en"}}
	if _, err := New(phases); err == nil {
		t.Error("expected error when first phase is not ANN")
	}
}

func TestNewRejectsTooManyPhases(t *testing.T) {
	phases := make([]PhaseConfig, MaxPhases+1)
	phases[0] = PhaseConfig{Kind: PhaseANN, OutputK: 10}
	for i := 1; i < len(phases); i++ {
		phases[i] = PhaseConfig{Kind: PhaseFilter, Expr: "true"}
	}
	if _, err := New(phases); err == nil {
		t.Error("expected error when phase count exceeds cap")
	}
}

func TestExecuteANNFilterMMR(t *testing.T) {
	vectors := map[int][]float32{
		0: {1, 0, 0, 0},
		1: {0, 1, 0, 0},
		2: {0.9, 0.1, 0, 0},
		3: {0, 0, 1, 0},
	}
	metadata := map[int]map[string]string{
		0: {"lang": "en"},
		1: {"lang": "fr"},
		2: {"lang": "en"},
		3: {"lang": "en"},
	}

	phases := []PhaseConfig{
		{Kind: PhaseANN, OutputK: 10, Dist: distance.Cosine},
		{Kind: PhaseFilter, Expr: "lang=en"},
		{Kind: PhaseRerankMMR, Lambda: 0.7, OutputK: 2},
	}
	p, err := New(phases)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ann := func(k int, dist distance.Kind) ([]Candidate, error) {
		out := make([]Candidate, 0, len(vectors))
		for row := range vectors {
			out = append(out, Candidate{Row: row, Score: 0})
		}
		return out, nil
	}
	fetchVector := func(row int) ([]float32, error) { return vectors[row], nil }
	fetchMetadata := func(row int) (map[string]string, error) { return metadata[row], nil }

	query := []float32{1, 0, 0, 0}
	results, stats, err := p.Execute(query, ann, fetchVector, fetchMetadata)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results) > 2 {
		t.Fatalf("expected at most 2 results, got %d", len(results))
	}
	for _, r := range results {
		if metadata[r.Row]["lang"] != "en" {
			t.Errorf("expected only lang=en rows, got row %d with lang %s", r.Row, metadata[r.Row]["lang"])
		}
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 phase stats, got %d", len(stats))
	}
}

func TestExecuteRerankExprAndCallback(t *testing.T) {
	metadata := map[int]map[string]string{
		0: {"boost": "2"},
		1: {"boost": "1"},
	}
	phases := []PhaseConfig{
		{Kind: PhaseANN, OutputK: 10},
		{Kind: PhaseRerankExpr, Expr: "_score * boost", OutputK: 10},
		{Kind: PhaseRerankCallback, OutputK: 1, Callback: func(row int, score float32, md map[string]string) float32 {
			return score + 100
		}},
	}
	p, err := New(phases)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ann := func(k int, dist distance.Kind) ([]Candidate, error) {
		return []Candidate{{Row: 0, Score: 1}, {Row: 1, Score: 5}}, nil
	}
	fetchVector := func(row int) ([]float32, error) { return nil, nil }
	fetchMetadata := func(row int) (map[string]string, error) { return metadata[row], nil }

	results, _, err := p.Execute(nil, ann, fetchVector, fetchMetadata)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result after output_k truncation, got %d", len(results))
	}
}
