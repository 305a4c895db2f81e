package diffusion

import (
	"math"

	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/schedule"
	"github.com/born-ml/se3diff/internal/tensor"
)

// Corrupted is the output of the forward process together with the noise
// that produced it.
type Corrupted struct {
	Trans      *tensor.Dense // x_t, (B, L, 3)
	TransNoise *tensor.Dense // ε₁, (B, L, 3)
	Rot        *tensor.Dense // R_t, (B, L, 3, 3)
	RotNoise   *tensor.Dense // ε₂ in the tangent space, (B, L, 3)
}

// ForwardOption overrides a draw of the forward process.
type ForwardOption func(*forwardOptions)

type forwardOptions struct {
	transNoise *tensor.Dense
	rotNoise   *tensor.Dense
}

// WithTransNoise uses eps as the translation noise ε₁ instead of drawing it.
func WithTransNoise(eps *tensor.Dense) ForwardOption {
	return func(o *forwardOptions) {
		o.transNoise = eps
	}
}

// WithRotNoise uses eps as the tangent-space rotation noise ε₂ instead of
// drawing it.
func WithRotNoise(eps *tensor.Dense) ForwardOption {
	return func(o *forwardOptions) {
		o.rotNoise = eps
	}
}

// Forward corrupts clean poses to timestep t[b] for every batch element b:
//
//	x_t = √ᾱ_t·x_0 + √(1-ᾱ_t)·ε₁
//	R_t = exp(√ᾱ_t·log(R_0) + √(1-ᾱ_t)·ε₂)
//
// with the cosine schedule for translations and the rotational schedule for
// rotations. trans is (B, L, 3), rot is (B, L, 3, 3) and len(t) == B.
// Translation noise is drawn before rotation noise.
func (d *Diffuser) Forward(trans, rot *tensor.Dense, t []int, src *noise.Source, opts ...ForwardOption) (Corrupted, error) {
	const op = "diffusion.Forward"
	if err := d.checkPoses(op, trans, rot, t); err != nil {
		return Corrupted{}, err
	}
	var o forwardOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := checkOverrides(op, src, trans.Shape(), o.transNoise, o.rotNoise); err != nil {
		return Corrupted{}, err
	}

	eps1, err := draw(op, "transNoise", o.transNoise, src, trans.Shape())
	if err != nil {
		return Corrupted{}, err
	}
	eps2, err := draw(op, "rotNoise", o.rotNoise, src, trans.Shape())
	if err != nil {
		return Corrupted{}, err
	}

	// checkPoses has range-checked t, so Gather cannot fail below.
	e, r := d.sched.Euclidean, d.sched.Rotational
	q1, _ := schedule.Gather(e.QParam1, t)
	q2, _ := schedule.Gather(e.QParam2, t)
	xt := combine(q1, trans, q2, eps1)

	v0, err := d.so3.Log(rot)
	if err != nil {
		return Corrupted{}, err
	}
	ab, _ := schedule.Gather(r.AlphaBars, t)
	signal, spread := make([]float64, len(ab)), make([]float64, len(ab))
	for i, a := range ab {
		signal[i], spread[i] = math.Sqrt(a), math.Sqrt(1-a)
	}
	rt, err := d.so3.Exp(combine(signal, v0, spread, eps2))
	if err != nil {
		return Corrupted{}, err
	}

	return Corrupted{Trans: xt, TransNoise: eps1, Rot: rt, RotNoise: eps2}, nil
}
