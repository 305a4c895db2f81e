// Package schedule builds the per-timestep noise schedules of the two
// diffusion components: a cosine schedule for translations and a linear beta
// schedule for rotations.
//
// Every slice is computed once by New and indexed by timestep t in [0, T).
// Schedules are never written after construction, so one Schedule can be
// read from many goroutines.
package schedule

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Common errors.
var (
	ErrInvalidTimesteps = errors.New("number of timesteps must be positive")
	ErrInvalidBeta      = errors.New("beta must lie in (0, 1]")
	ErrTimestepRange    = errors.New("timestep out of range")
)

// Clip bounds for the per-step cosine ratios.
const (
	minAlpha = 0.001
	maxAlpha = 1.0
)

// Config selects the schedule parameters.
type Config struct {
	Timesteps    int     // T, the number of diffusion steps
	BetaStart    float64 // First rotational beta
	BetaEnd      float64 // Last rotational beta
	CosineOffset float64 // s in the cosine schedule; 0.008 when zero
}

// DefaultConfig returns T = 30 with betas from 0.1 to 1.0.
func DefaultConfig() Config {
	return Config{
		Timesteps:    30,
		BetaStart:    0.1,
		BetaEnd:      1.0,
		CosineOffset: 0.008,
	}
}

// Validate checks the configuration contract.
func (c Config) Validate() error {
	if c.Timesteps <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTimesteps, c.Timesteps)
	}
	for _, b := range []float64{c.BetaStart, c.BetaEnd} {
		if !(b > 0 && b <= 1) {
			return fmt.Errorf("%w: got %v", ErrInvalidBeta, b)
		}
	}
	return nil
}

// Euclidean holds the translation schedule and the closed-form coefficients
// derived from it.
type Euclidean struct {
	Alphas    []float64 // α_t, per-step signal retention
	AlphaBars []float64 // ᾱ_t, cumulative signal retention

	X0Param1 []float64 // 1/√ᾱ_t
	X0Param2 []float64 // √(1-ᾱ_t)

	MeanParam1 []float64 // posterior mean weight on x_t
	MeanParam2 []float64 // posterior mean weight on x̂0
	Sigma      []float64 // posterior standard deviation

	QParam1 []float64 // √ᾱ_t
	QParam2 []float64 // √(1-ᾱ_t)
}

// Rotational holds the linear beta schedule used on SO(3).
type Rotational struct {
	Betas     []float64
	Alphas    []float64 // 1 - β_t
	AlphaBars []float64 // ∏ α
}

// Schedule bundles both component schedules.
type Schedule struct {
	T          int
	Euclidean  Euclidean
	Rotational Rotational
}

// New builds both schedules.
func New(cfg Config) (*Schedule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := cfg.CosineOffset
	if s == 0 {
		s = 0.008
	}
	return &Schedule{
		T:          cfg.Timesteps,
		Euclidean:  newEuclidean(cfg.Timesteps, s),
		Rotational: newRotational(cfg.Timesteps, cfg.BetaStart, cfg.BetaEnd),
	}, nil
}

// cosineAlphas returns the T clipped per-step ratios ᾱ_i/ᾱ_{i-1} of
// ᾱ_i = cos²(((i/T)+s)/(1+s)·π/2), i = 0..T.
func cosineAlphas(T int, s float64) []float64 {
	bars := make([]float64, T+1)
	for i := range bars {
		c := math.Cos((float64(i)/float64(T) + s) / (1 + s) * math.Pi / 2)
		bars[i] = c * c
	}
	floats.Scale(1/bars[0], bars)

	alphas := make([]float64, T)
	for i := range alphas {
		alphas[i] = min(max(bars[i+1]/bars[i], minAlpha), maxAlpha)
	}
	return alphas
}

func newEuclidean(T int, s float64) Euclidean {
	// a[0] = 1 so that ab[0] = 1 is the clean signal; step t uses index t+1.
	a := append([]float64{1}, cosineAlphas(T, s)...)
	ab := make([]float64, T+1)
	floats.CumProd(ab, a)

	e := Euclidean{
		Alphas:     make([]float64, T),
		AlphaBars:  make([]float64, T),
		X0Param1:   make([]float64, T),
		X0Param2:   make([]float64, T),
		MeanParam1: make([]float64, T),
		MeanParam2: make([]float64, T),
		Sigma:      make([]float64, T),
		QParam1:    make([]float64, T),
		QParam2:    make([]float64, T),
	}
	for t := 0; t < T; t++ {
		at, abt, abPrev := a[t+1], ab[t+1], ab[t]

		e.Alphas[t] = at
		e.AlphaBars[t] = abt
		e.X0Param1[t] = 1 / math.Sqrt(abt)
		e.X0Param2[t] = math.Sqrt(1 - abt)
		e.Sigma[t] = math.Sqrt((1 - abPrev) * (1 - at) / (1 - abt))
		e.MeanParam1[t] = math.Sqrt(at) * (1 - abPrev) / (1 - abt)
		e.MeanParam2[t] = math.Sqrt(abPrev) * (1 - at) / (1 - abt)
		e.QParam1[t] = math.Sqrt(abt)
		e.QParam2[t] = math.Sqrt(1 - abt)
	}
	return e
}

func newRotational(T int, start, end float64) Rotational {
	r := Rotational{
		Betas:     make([]float64, T),
		Alphas:    make([]float64, T),
		AlphaBars: make([]float64, T),
	}
	if T == 1 {
		r.Betas[0] = start
	} else {
		floats.Span(r.Betas, start, end)
	}
	for t, b := range r.Betas {
		r.Alphas[t] = 1 - b
	}
	floats.CumProd(r.AlphaBars, r.Alphas)
	return r
}

// Gather picks values[t[i]] for every batch element i.
func Gather(values []float64, t []int) ([]float64, error) {
	out := make([]float64, len(t))
	for i, ti := range t {
		if ti < 0 || ti >= len(values) {
			return nil, fmt.Errorf("%w: t[%d] = %d, want [0, %d)", ErrTimestepRange, i, ti, len(values))
		}
		out[i] = values[ti]
	}
	return out, nil
}

// CheckTimesteps reports the first timestep outside [0, T).
func (s *Schedule) CheckTimesteps(t []int) error {
	for i, ti := range t {
		if ti < 0 || ti >= s.T {
			return fmt.Errorf("%w: t[%d] = %d, want [0, %d)", ErrTimestepRange, i, ti, s.T)
		}
	}
	return nil
}

// Row is one timestep of both schedules, for display.
type Row struct {
	T           int
	AlphaBar    float64
	Sigma       float64
	QParam1     float64
	QParam2     float64
	MeanParam1  float64
	MeanParam2  float64
	Beta        float64
	RotAlphaBar float64
	RotSignal   float64 // √ᾱ of the rotational schedule
	RotNoise    float64 // √(1-ᾱ) of the rotational schedule
}

// Table returns one Row per timestep.
func (s *Schedule) Table() []Row {
	rows := make([]Row, s.T)
	e, r := s.Euclidean, s.Rotational
	for t := range rows {
		rows[t] = Row{
			T:           t,
			AlphaBar:    e.AlphaBars[t],
			Sigma:       e.Sigma[t],
			QParam1:     e.QParam1[t],
			QParam2:     e.QParam2[t],
			MeanParam1:  e.MeanParam1[t],
			MeanParam2:  e.MeanParam2[t],
			Beta:        r.Betas[t],
			RotAlphaBar: r.AlphaBars[t],
			RotSignal:   math.Sqrt(r.AlphaBars[t]),
			RotNoise:    math.Sqrt(1 - r.AlphaBars[t]),
		}
	}
	return rows
}
