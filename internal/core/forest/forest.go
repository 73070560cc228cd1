// Package forest implements a bagged ensemble of CART regression trees.
package forest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmptyTrainingSet = errors.New("forest: empty training set")
	ErrShapeMismatch    = errors.New("forest: feature matrix shape mismatch")
)

// Config controls fitting. Zero values fall back to DefaultConfig.
type Config struct {
	Trees          int     `json:"trees"`
	MaxDepth       int     `json:"max_depth"` // 0 = unlimited
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	MaxFeatures    float64 `json:"max_features"` // fraction of features tried per split
	Seed           uint64  `json:"seed"`
	Workers        int     `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Trees:          100,
		MinSamplesLeaf: 1,
		MaxFeatures:    1.0,
		Seed:           42,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Trees <= 0 {
		c.Trees = d.Trees
	}
	if c.MinSamplesLeaf <= 0 {
		c.MinSamplesLeaf = d.MinSamplesLeaf
	}
	if c.MaxFeatures <= 0 || c.MaxFeatures > 1 {
		c.MaxFeatures = d.MaxFeatures
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Forest is a fitted ensemble. It is immutable and safe for concurrent Predict.
type Forest struct {
	Features []string `json:"features"`
	Config   Config   `json:"config"`
	Trees    []Tree   `json:"trees"`
}

// Fit trains cfg.Trees trees on bootstrap samples of (X, y), in parallel.
func Fit(ctx context.Context, X [][]float64, y []float64, features []string, cfg Config) (*Forest, error) {
	if len(X) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d targets", ErrShapeMismatch, len(X), len(y))
	}
	for i, row := range X {
		if len(row) != len(features) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(row), len(features))
		}
	}
	cfg = cfg.withDefaults()

	trees := make([]Tree, cfg.Trees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for t := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(t)))
			trees[t] = fitTree(X, y, bootstrap(len(X), rng), cfg, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	return &Forest{Features: append([]string(nil), features...), Config: cfg, Trees: trees}, nil
}

func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	return idx
}

// Predict averages the trees' predictions for one feature vector.
func (f *Forest) Predict(x []float64) float64 {
	preds := make([]float64, len(f.Trees))
	for i := range f.Trees {
		preds[i] = f.Trees[i].Predict(x)
	}
	return stat.Mean(preds, nil)
}

func (f *Forest) PredictBatch(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = f.Predict(x)
	}
	return out
}

func (f *Forest) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// Unmarshal decodes a serialized forest and validates its node references.
func Unmarshal(data []byte) (*Forest, error) {
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if len(f.Trees) == 0 {
		return nil, errors.New("forest: no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(len(f.Features)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &f, nil
}
