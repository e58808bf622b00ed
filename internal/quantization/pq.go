package quantization

import (
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/gigavector/gigavector/internal/binformat"
)

// ErrNotTrained is returned by any ProductQuantizer method that needs
// codebooks before Train has been called.
var ErrNotTrained = errors.New("quantization: product quantizer not trained")

// ProductQuantizer splits a vector into M subvectors and independently
// vector-quantizes each against its own K-entry codebook, per §4.5's
// IVF-PQ description. Adapted from the teacher's
// pkg/quantization/product_quantization.go: the per-subspace training loop
// and Encode/Decode/ComputeDistance shape are unchanged, but training now
// runs through the shared k-means++ trainer (quantization.KMeans) instead
// of the teacher's random-init kMeans, and codes are always byte-sized
// since §4.5 caps nbits at 8.
type ProductQuantizer struct {
	M         int
	K         int // 2^nbits, capped at 256
	D         int
	SubDim    int
	Codebooks [][][]float32
	Trained   bool
}

// NewProductQuantizer builds an untrained quantizer for a dimension split
// into numSubspaces subvectors, each quantized to 2^nbits centroids.
func NewProductQuantizer(dimension, numSubspaces, nbits int) (*ProductQuantizer, error) {
	if dimension%numSubspaces != 0 {
		return nil, fmt.Errorf("quantization: dimension %d not divisible by m=%d", dimension, numSubspaces)
	}
	k := 1 << uint(nbits)
	if k > 256 {
		return nil, fmt.Errorf("quantization: nbits=%d implies %d centroids, exceeds byte-code cap of 256", nbits, k)
	}
	return &ProductQuantizer{
		M:         numSubspaces,
		K:         k,
		D:         dimension,
		SubDim:    dimension / numSubspaces,
		Codebooks: make([][][]float32, numSubspaces),
	}, nil
}

// Train learns the M subcodebooks independently, one k-means run per
// subspace as in §4.5 ("split each training residual into m subvectors
// and k-means each independently").
func (pq *ProductQuantizer) Train(vectors [][]float32, rng *rand.Rand) error {
	if len(vectors) < pq.K {
		return fmt.Errorf("quantization: need at least %d training vectors, got %d", pq.K, len(vectors))
	}
	for m := 0; m < pq.M; m++ {
		start := m * pq.SubDim
		end := start + pq.SubDim
		subvectors := make([][]float32, len(vectors))
		for i, vec := range vectors {
			subvectors[i] = vec[start:end]
		}
		result, err := KMeans(subvectors, pq.K, 25, 1e-4, rng)
		if err != nil {
			return fmt.Errorf("quantization: training subspace %d: %w", m, err)
		}
		if !result.Converged {
			return fmt.Errorf("quantization: training subspace %d: %w", m, ErrNotConverged)
		}
		pq.Codebooks[m] = result.Centroids
	}
	pq.Trained = true
	return nil
}

// Encode compresses a vector into M byte codes, one nearest-centroid index
// per subspace.
func (pq *ProductQuantizer) Encode(vector []float32) ([]byte, error) {
	if !pq.Trained {
		return nil, ErrNotTrained
	}
	if len(vector) != pq.D {
		return nil, fmt.Errorf("quantization: vector dimension %d, expected %d", len(vector), pq.D)
	}
	codes := make([]byte, pq.M)
	for m := 0; m < pq.M; m++ {
		start := m * pq.SubDim
		sub := vector[start : start+pq.SubDim]
		best, bestDist := 0, sqEuclidean(sub, pq.Codebooks[m][0])
		for k := 1; k < pq.K; k++ {
			d := sqEuclidean(sub, pq.Codebooks[m][k])
			if d < bestDist {
				bestDist = d
				best = k
			}
		}
		codes[m] = byte(best)
	}
	return codes, nil
}

// Decode reconstructs an approximate vector from PQ codes.
func (pq *ProductQuantizer) Decode(codes []byte) ([]float32, error) {
	if !pq.Trained {
		return nil, ErrNotTrained
	}
	if len(codes) != pq.M {
		return nil, fmt.Errorf("quantization: code length %d, expected %d", len(codes), pq.M)
	}
	vec := make([]float32, pq.D)
	for m := 0; m < pq.M; m++ {
		idx := int(codes[m])
		if idx >= pq.K {
			return nil, fmt.Errorf("quantization: code %d out of range for subspace %d", idx, m)
		}
		copy(vec[m*pq.SubDim:(m+1)*pq.SubDim], pq.Codebooks[m][idx])
	}
	return vec, nil
}

// DistanceTable precomputes the squared distance from query to every
// centroid in every subspace, the ADC table described in §4.5.
type DistanceTable [][]float32

// BuildDistanceTable precomputes [][]float32 distances for Asymmetric
// Distance Computation: query stays in full precision, only the database
// side is quantized.
func (pq *ProductQuantizer) BuildDistanceTable(query []float32) (DistanceTable, error) {
	if !pq.Trained {
		return nil, ErrNotTrained
	}
	if len(query) != pq.D {
		return nil, fmt.Errorf("quantization: query dimension %d, expected %d", len(query), pq.D)
	}
	table := make(DistanceTable, pq.M)
	for m := 0; m < pq.M; m++ {
		start := m * pq.SubDim
		sub := query[start : start+pq.SubDim]
		table[m] = make([]float32, pq.K)
		for k := 0; k < pq.K; k++ {
			table[m][k] = sqEuclidean(sub, pq.Codebooks[m][k])
		}
	}
	return table, nil
}

// ADC sums the per-subspace table lookups for one code, the squared ADC
// distance used to rank IVF-PQ candidates before optional reranking.
func (table DistanceTable) ADC(codes []byte) float32 {
	var sum float32
	for m, c := range codes {
		sum += table[m][c]
	}
	return sum
}

// Save writes the codebooks in the exact §6 PQ payload layout: u32 M,
// u32 K, u32 D, u32 SubDim, then M x K x SubDim f32 values.
func (pq *ProductQuantizer) Save(w io.Writer) error {
	if !pq.Trained {
		return ErrNotTrained
	}
	if err := binformat.WriteU32(w, uint32(pq.M)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(pq.K)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(pq.D)); err != nil {
		return err
	}
	if err := binformat.WriteU32(w, uint32(pq.SubDim)); err != nil {
		return err
	}
	for m := 0; m < pq.M; m++ {
		for k := 0; k < pq.K; k++ {
			if err := binformat.WriteF32Slice(w, pq.Codebooks[m][k]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads the codebook payload written by Save.
func (pq *ProductQuantizer) Load(r io.Reader) error {
	m, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	k, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	d, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	subDim, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	pq.M, pq.K, pq.D, pq.SubDim = int(m), int(k), int(d), int(subDim)
	pq.Codebooks = make([][][]float32, pq.M)
	for mi := 0; mi < pq.M; mi++ {
		pq.Codebooks[mi] = make([][]float32, pq.K)
		for ki := 0; ki < pq.K; ki++ {
			vals, err := binformat.ReadF32Slice(r, pq.SubDim)
			if err != nil {
				return err
			}
			pq.Codebooks[mi][ki] = vals
		}
	}
	pq.Trained = true
	return nil
}
