// Package synth generates synthetic pose trajectories for demos, evaluation
// and tests when no recorded data is available.
package synth

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/se3"
	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

// ErrInvalidConfig is returned for non-positive sizes.
var ErrInvalidConfig = errors.New("invalid synthetic data config")

// Config describes a family of helical trajectories around the z axis.
type Config struct {
	Trajectories int     // Number of trajectories
	SeqLen       int     // Poses per trajectory
	BatchSize    int     // Trajectories per batch; the last batch may be smaller
	Radius       float64 // Mean helix radius
	Rise         float64 // Total climb along z over one trajectory
	Turns        float64 // Revolutions per trajectory
	Jitter       float64 // Standard deviation of Gaussian noise on positions
}

// DefaultConfig returns 64 trajectories of 128 poses in batches of 8, all
// inside the unit cube.
func DefaultConfig() Config {
	return Config{
		Trajectories: 64,
		SeqLen:       128,
		BatchSize:    8,
		Radius:       0.5,
		Rise:         1.0,
		Turns:        2,
		Jitter:       0.01,
	}
}

// Dataset is an in-memory set of trajectories, each (1, L, 4, 4).
type Dataset struct {
	trajectories []*tensor.Dense
	batchSize    int
}

// NewHelix draws trajectories with a random phase and a radius within 20% of
// cfg.Radius. Each pose's rotation is the curve's moving frame: the first
// column is the unit tangent, the second points at the axis.
func NewHelix(cfg Config, src *noise.Source) (*Dataset, error) {
	if cfg.Trajectories <= 0 || cfg.SeqLen <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: %d trajectories, %d poses, batch %d",
			ErrInvalidConfig, cfg.Trajectories, cfg.SeqLen, cfg.BatchSize)
	}

	ds := &Dataset{
		trajectories: make([]*tensor.Dense, cfg.Trajectories),
		batchSize:    cfg.BatchSize,
	}
	for i := range ds.trajectories {
		phase := 2 * math.Pi * src.Float64()
		radius := cfg.Radius * (0.8 + 0.4*src.Float64())
		poses, err := helix(cfg, phase, radius, src)
		if err != nil {
			return nil, err
		}
		ds.trajectories[i] = poses
	}
	return ds, nil
}

func helix(cfg Config, phase, radius float64, src *noise.Source) (*tensor.Dense, error) {
	l := cfg.SeqLen
	rot := tensor.Zeros(tensor.Shape{1, l, 3, 3})
	trans := tensor.Zeros(tensor.Shape{1, l, 3})
	omega := 2 * math.Pi * cfg.Turns

	for k := 0; k < l; k++ {
		s := 0.0
		if l > 1 {
			s = float64(k) / float64(l-1)
		}
		theta := phase + omega*s
		sin, cos := math.Sincos(theta)

		p := r3.Vec{
			X: radius*cos + cfg.Jitter*src.NormFloat64(),
			Y: radius*sin + cfg.Jitter*src.NormFloat64(),
			Z: cfg.Rise*(s-0.5) + cfg.Jitter*src.NormFloat64(),
		}
		trans.Set(clamp(p.X), 0, k, 0)
		trans.Set(clamp(p.Y), 0, k, 1)
		trans.Set(clamp(p.Z), 0, k, 2)

		tangent := r3.Unit(r3.Vec{X: -radius * omega * sin, Y: radius * omega * cos, Z: cfg.Rise})
		normal := r3.Vec{X: -cos, Y: -sin}
		binormal := r3.Cross(tangent, normal)
		frame := so3.Matrix{
			tangent.X, normal.X, binormal.X,
			tangent.Y, normal.Y, binormal.Y,
			tangent.Z, normal.Z, binormal.Z,
		}
		for c := range frame {
			rot.Set(frame[c], 0, k, c/3, c%3)
		}
	}
	return se3.Compose(rot, trans)
}

func clamp(x float64) float64 {
	return min(max(x, -1), 1)
}

// Len returns the number of batches.
func (d *Dataset) Len() int {
	return (len(d.trajectories) + d.batchSize - 1) / d.batchSize
}

// NumTrajectories returns the number of trajectories.
func (d *Dataset) NumTrajectories() int {
	return len(d.trajectories)
}

// Batch returns batch i as a (B, L, 4, 4) tensor. It is safe for concurrent
// use.
func (d *Dataset) Batch(i int) (*tensor.Dense, error) {
	if i < 0 || i >= d.Len() {
		return nil, fmt.Errorf("batch %d out of range [0, %d)", i, d.Len())
	}
	start := i * d.batchSize
	end := min(start+d.batchSize, len(d.trajectories))
	return tensor.Concat(d.trajectories[start:end]...)
}

// Split returns the first (1-ratio) of the trajectories and the rest, with
// the same batch size.
func (d *Dataset) Split(ratio float64) (train, val *Dataset) {
	at := int(float64(len(d.trajectories)) * (1 - ratio))
	at = min(max(at, 0), len(d.trajectories))
	return &Dataset{trajectories: d.trajectories[:at], batchSize: d.batchSize},
		&Dataset{trajectories: d.trajectories[at:], batchSize: d.batchSize}
}
