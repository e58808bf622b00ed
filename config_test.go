package gigavector

import "testing"

func TestDefaultConfigIsFlat(t *testing.T) {
	cfg := DefaultConfig(8)
	if cfg.Index != IndexFlat {
		t.Errorf("expected DefaultConfig to pick Flat, got %v", cfg.Index)
	}
	if cfg.Dimension != 8 {
		t.Errorf("expected dimension 8, got %d", cfg.Dimension)
	}
}

func TestIVFConfigTrainItersDefaultsInInternal(t *testing.T) {
	cfg := DefaultIVFConfig()
	internal := cfg.toInternal()
	if internal.TrainIters != 0 {
		t.Errorf("expected zero TrainIters to pass through for the index package's own default, got %d", internal.TrainIters)
	}
}

func TestIVFConfigPQModeSelectedBySubspaces(t *testing.T) {
	cfg := DefaultIVFConfig()
	cfg.PQSubspaces = 4
	cfg.PQNBits = 8
	internal := cfg.toInternal()
	if internal.Mode != 1 { // IVFModePQ
		t.Errorf("expected PQ mode when PQSubspaces is set, got mode %v", internal.Mode)
	}
}

func TestIVFConfigUseCosineOverridesDist(t *testing.T) {
	cfg := DefaultIVFConfig()
	cfg.UseCosine = true
	internal := cfg.toInternal()
	if internal.Dist != Cosine {
		t.Errorf("expected UseCosine to force Cosine distance, got %v", internal.Dist)
	}
}
