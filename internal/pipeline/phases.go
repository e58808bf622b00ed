package pipeline

import (
	"sort"

	"github.com/gigavector/gigavector/internal/distance"
	"github.com/gigavector/gigavector/internal/pipeline/expr"
)

func truncate(candidates []Candidate, outputK int) []Candidate {
	if outputK > 0 && outputK < len(candidates) {
		return candidates[:outputK]
	}
	return candidates
}

// runRerankExpr evaluates compiled against each candidate's current score
// and metadata, sorts descending, and truncates to outputK, per §4.8.
func runRerankExpr(candidates []Candidate, compiled *expr.Expr, fetchMetadata MetadataFetcher, phaseIdx, outputK int) ([]Candidate, error) {
	for i := range candidates {
		md, err := fetchMetadata(candidates[i].Row)
		if err != nil {
			return nil, err
		}
		ctx := candidateContext{score: float64(candidates[i].Score), metadata: md}
		candidates[i].Score = float32(compiled.EvalNumber(ctx))
		candidates[i].PhaseReached = phaseIdx
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return truncate(candidates, outputK), nil
}

// runFilter drops candidates whose metadata-predicate evaluates false,
// preserving relative order, per §4.8 ("Filter ... no reordering").
func runFilter(candidates []Candidate, compiled *expr.Expr, fetchMetadata MetadataFetcher) ([]Candidate, error) {
	kept := candidates[:0]
	for _, c := range candidates {
		md, err := fetchMetadata(c.Row)
		if err != nil {
			return nil, err
		}
		ctx := candidateContext{score: float64(c.Score), metadata: md}
		if compiled.EvalBool(ctx) {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// runRerankCallback maps every candidate's score through the user
// callback, sorts descending, and truncates, per §4.8.
func runRerankCallback(candidates []Candidate, callback func(row int, score float32, metadata map[string]string) float32, fetchMetadata MetadataFetcher, phaseIdx, outputK int) ([]Candidate, error) {
	for i := range candidates {
		md, err := fetchMetadata(candidates[i].Row)
		if err != nil {
			return nil, err
		}
		candidates[i].Score = callback(candidates[i].Row, candidates[i].Score, md)
		candidates[i].PhaseReached = phaseIdx
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return truncate(candidates, outputK), nil
}

// runRerankMMR greedily selects candidates maximizing
// lambda*sim(q,d) - (1-lambda)*max_{d' in S} sim(d,d'), cosine similarity
// on stored vectors, per §4.8.
func runRerankMMR(candidates []Candidate, query []float32, lambda float64, outputK int, fetchVector VectorFetcher, phaseIdx int) ([]Candidate, error) {
	if outputK <= 0 || outputK > len(candidates) {
		outputK = len(candidates)
	}
	vectors := make(map[int][]float32, len(candidates))
	for _, c := range candidates {
		v, err := fetchVector(c.Row)
		if err != nil {
			return nil, err
		}
		vectors[c.Row] = v
	}

	simToQuery := func(row int) float64 {
		d, _ := distance.Distance(query, vectors[row], distance.Cosine)
		return 1 - float64(d) // Cosine distance is 1 - cossim; invert back to similarity
	}
	simPair := func(a, b int) float64 {
		d, _ := distance.Distance(vectors[a], vectors[b], distance.Cosine)
		return 1 - float64(d)
	}

	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)
	var selected []Candidate

	for len(selected) < outputK && len(remaining) > 0 {
		bestIdx, bestScore := -1, 0.0
		for i, cand := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				if sim := simPair(cand.Row, s.Row); sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := lambda*simToQuery(cand.Row) - (1-lambda)*maxSim
			if bestIdx == -1 || mmrScore > bestScore {
				bestIdx = i
				bestScore = mmrScore
			}
		}
		chosen := remaining[bestIdx]
		chosen.Score = float32(bestScore)
		chosen.PhaseReached = phaseIdx
		selected = append(selected, chosen)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected, nil
}
