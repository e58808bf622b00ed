package quantization

import (
	"fmt"
	"io"

	"github.com/gigavector/gigavector/internal/binformat"
)

// ScalarQuantizer compresses a vector into a per-dimension fixed-width
// code, trained on the observed min/max of each dimension. It is a
// cheaper alternative to ProductQuantizer for IVF-SQ: no per-subspace
// k-means, one min/max pass over the training sample. Adapted from the
// teacher's pkg/quantization/scalar_quantization.go; the binary
// quantizer and learned-projection variants there are dropped since
// internal/index's LSH already covers locality-sensitive hashing.
type ScalarQuantizer struct {
	Dimension int
	NBits     int // bits per component, 1-8
	Min       []float32
	Max       []float32
	Trained   bool
}

// NewScalarQuantizer builds an untrained quantizer for dimension with
// nbits bits per component (1-8).
func NewScalarQuantizer(dimension, nbits int) (*ScalarQuantizer, error) {
	if nbits < 1 || nbits > 8 {
		return nil, fmt.Errorf("quantization: nbits must be 1-8, got %d", nbits)
	}
	return &ScalarQuantizer{
		Dimension: dimension,
		NBits:     nbits,
		Min:       make([]float32, dimension),
		Max:       make([]float32, dimension),
	}, nil
}

// Train learns per-dimension min/max from a representative sample.
func (sq *ScalarQuantizer) Train(vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("quantization: no training vectors provided")
	}
	for d := 0; d < sq.Dimension; d++ {
		sq.Min[d] = vectors[0][d]
		sq.Max[d] = vectors[0][d]
	}
	for _, vec := range vectors {
		if len(vec) != sq.Dimension {
			return fmt.Errorf("quantization: vector dimension %d, expected %d", len(vec), sq.Dimension)
		}
		for d := 0; d < sq.Dimension; d++ {
			if vec[d] < sq.Min[d] {
				sq.Min[d] = vec[d]
			}
			if vec[d] > sq.Max[d] {
				sq.Max[d] = vec[d]
			}
		}
	}
	for d := 0; d < sq.Dimension; d++ {
		if sq.Max[d] == sq.Min[d] {
			sq.Max[d] += 1e-6
		}
	}
	sq.Trained = true
	return nil
}

func (sq *ScalarQuantizer) maxCode() float32 {
	return float32((uint32(1) << uint(sq.NBits)) - 1)
}

// Encode quantizes vector to one byte per component.
func (sq *ScalarQuantizer) Encode(vector []float32) ([]byte, error) {
	if !sq.Trained {
		return nil, ErrNotTrained
	}
	if len(vector) != sq.Dimension {
		return nil, fmt.Errorf("quantization: vector dimension %d, expected %d", len(vector), sq.Dimension)
	}
	maxVal := sq.maxCode()
	codes := make([]byte, sq.Dimension)
	for d := 0; d < sq.Dimension; d++ {
		normalized := (vector[d] - sq.Min[d]) / (sq.Max[d] - sq.Min[d])
		if normalized < 0 {
			normalized = 0
		} else if normalized > 1 {
			normalized = 1
		}
		codes[d] = byte(normalized * maxVal)
	}
	return codes, nil
}

// Decode reconstructs an approximate vector from a quantized code.
func (sq *ScalarQuantizer) Decode(codes []byte) ([]float32, error) {
	if !sq.Trained {
		return nil, ErrNotTrained
	}
	if len(codes) != sq.Dimension {
		return nil, fmt.Errorf("quantization: code length %d, expected %d", len(codes), sq.Dimension)
	}
	maxVal := sq.maxCode()
	vector := make([]float32, sq.Dimension)
	for d := 0; d < sq.Dimension; d++ {
		normalized := float32(codes[d]) / maxVal
		vector[d] = normalized*(sq.Max[d]-sq.Min[d]) + sq.Min[d]
	}
	return vector, nil
}

// ApproxSquaredEuclidean computes the squared Euclidean distance between
// query and a quantized code's reconstruction, without allocating a
// decoded vector, for IVF-SQ's candidate scoring pass.
func (sq *ScalarQuantizer) ApproxSquaredEuclidean(query []float32, codes []byte) float32 {
	maxVal := sq.maxCode()
	var sum float32
	for d := 0; d < sq.Dimension; d++ {
		normalized := float32(codes[d]) / maxVal
		recon := normalized*(sq.Max[d]-sq.Min[d]) + sq.Min[d]
		diff := query[d] - recon
		sum += diff * diff
	}
	return sum
}

// Save writes the quantizer in the §6 SQ payload layout: u32 dimension,
// u8 nbits, then min and max as f32 slices.
func (sq *ScalarQuantizer) Save(w io.Writer) error {
	if !sq.Trained {
		return ErrNotTrained
	}
	if err := binformat.WriteU32(w, uint32(sq.Dimension)); err != nil {
		return err
	}
	if err := binformat.WriteU8(w, uint8(sq.NBits)); err != nil {
		return err
	}
	if err := binformat.WriteF32Slice(w, sq.Min); err != nil {
		return err
	}
	if err := binformat.WriteF32Slice(w, sq.Max); err != nil {
		return err
	}
	return nil
}

// Load reads the quantizer payload written by Save.
func (sq *ScalarQuantizer) Load(r io.Reader) error {
	dim, err := binformat.ReadU32(r)
	if err != nil {
		return err
	}
	nbits, err := binformat.ReadU8(r)
	if err != nil {
		return err
	}
	min, err := binformat.ReadF32Slice(r, int(dim))
	if err != nil {
		return err
	}
	max, err := binformat.ReadF32Slice(r, int(dim))
	if err != nil {
		return err
	}
	sq.Dimension = int(dim)
	sq.NBits = int(nbits)
	sq.Min = min
	sq.Max = max
	sq.Trained = true
	return nil
}
