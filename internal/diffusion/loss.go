package diffusion

import (
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/schedule"
	"github.com/born-ml/se3diff/internal/tensor"
)

// Loss holds the training loss and its terms.
type Loss struct {
	Total float64

	TransEps float64 // mean |ε̂₁ - ε₁|
	TransX0  float64 // mean |x̂₀ - x₀|
	RotEps   float64 // mean squared geodesic angle between exp(ε̂₂) and exp(ε₂)

	// RotX0 is always zero: the rotational x₀ term is not part of the
	// objective, but is reported so every term has a slot.
	RotX0 float64
}

// Loss corrupts the clean poses to timestep t, asks the score model for the
// noise and scores the prediction. Translations are multiplied by
// Config.TransScale first; TransX0 compares against the scaled values.
func (d *Diffuser) Loss(trans, rot *tensor.Dense, t []int, src *noise.Source, opts ...ForwardOption) (Loss, error) {
	const op = "diffusion.Loss"
	if err := d.checkPoses(op, trans, rot, t); err != nil {
		return Loss{}, err
	}
	x0 := trans.Scale(d.cfg.TransScale)

	c, err := d.Forward(x0, rot, t, src, opts...)
	if err != nil {
		return Loss{}, err
	}

	transEps, rotEps, err := d.predict(c.Trans, c.Rot, t)
	if err != nil {
		return Loss{}, err
	}

	x0Hat, err := d.estimateX0(c.Trans, transEps, t)
	if err != nil {
		return Loss{}, err
	}

	n := float64(x0.Len())
	l := Loss{
		TransEps: floats.Distance(transEps.Data(), c.TransNoise.Data(), 1) / n,
		TransX0:  floats.Distance(x0Hat.Data(), x0.Data(), 1) / n,
	}

	rPred, err := d.so3.Exp(rotEps)
	if err != nil {
		return Loss{}, err
	}
	rTrue, err := d.so3.Exp(c.RotNoise)
	if err != nil {
		return Loss{}, err
	}
	if l.RotEps, err = d.so3.MeanSquaredDistance(rPred, rTrue); err != nil {
		return Loss{}, err
	}

	l.Total = l.TransEps + l.TransX0 + l.RotEps + l.RotX0
	return l, nil
}

// estimateX0 inverts the Euclidean forward process for a predicted noise:
// x̂₀ = (x_t - √(1-ᾱ_t)·ε̂₁)/√ᾱ_t.
func (d *Diffuser) estimateX0(xt, eps *tensor.Dense, t []int) (*tensor.Dense, error) {
	e := d.sched.Euclidean
	p1, err := schedule.Gather(e.X0Param1, t)
	if err != nil {
		return nil, err
	}
	p2, err := schedule.Gather(e.X0Param2, t)
	if err != nil {
		return nil, err
	}
	neg := make([]float64, len(p1))
	for i := range neg {
		neg[i] = -p1[i] * p2[i]
	}
	return combine(p1, xt, neg, eps), nil
}
