package diffusion

import (
	"context"
	"fmt"
	"math"

	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/se3"
	"github.com/born-ml/se3diff/internal/tensor"
)

// minAlphaBar floors ᾱ_t where the sampler divides by √ᾱ_t. A linear
// schedule ending at β = 1 reaches ᾱ = 0 exactly at the last step.
const minAlphaBar = 1e-12

// SampleShape is the size of a sampled batch. A zero SeqLen means
// Config.SeqLen.
type SampleShape struct {
	Batch  int
	SeqLen int
}

// Sample is a batch of generated trajectories.
type Sample struct {
	Rot   *tensor.Dense // (B, L, 3, 3)
	Trans *tensor.Dense // (B, L, 3), divided by Config.TransScale
	Poses *tensor.Dense // (B, L, 4, 4)
}

// Step reports the state of the sampler after one reverse iteration.
type Step struct {
	T       int           // Timestep just processed
	Trans   *tensor.Dense // x_t the step started from, (B, L, 3)
	Rot     *tensor.Dense // R_t the step started from, (B, L, 3, 3)
	TransX0 *tensor.Dense // Clamped x̂₀ estimate, (B, L, 3)
	RotX0   *tensor.Dense // R̂₀ estimate, (B, L, 3, 3)
	NearPi  int           // Rotations of R_t on the log-map boundary
}

// SampleOption configures Sample.
type SampleOption func(*sampleOptions)

type sampleOptions struct {
	initTrans   *tensor.Dense
	initRot     *tensor.Dense
	uniformInit bool
	steps       int
	transNoise  []*tensor.Dense
	rotNoise    []*tensor.Dense
	observer    func(Step)
}

// WithInitTrans starts the chain from trans (B, L, 3) instead of N(0, I).
func WithInitTrans(trans *tensor.Dense) SampleOption {
	return func(o *sampleOptions) {
		o.initTrans = trans
	}
}

// WithInitRot starts the chain from rot (B, L, 3, 3) instead of exp(N(0, I)).
func WithInitRot(rot *tensor.Dense) SampleOption {
	return func(o *sampleOptions) {
		o.initRot = rot
	}
}

// WithUniformAxisAngleInit draws the initial rotations with a uniformly
// random axis and an angle uniform in [0, 2π).
func WithUniformAxisAngleInit() SampleOption {
	return func(o *sampleOptions) {
		o.uniformInit = true
	}
}

// WithSteps runs only the last n steps, t = n-1 down to 0.
func WithSteps(n int) SampleOption {
	return func(o *sampleOptions) {
		o.steps = n
	}
}

// WithStepTransNoise supplies the translation noise for each timestep:
// noise[t] is used at step t when present and non-nil.
func WithStepTransNoise(noise []*tensor.Dense) SampleOption {
	return func(o *sampleOptions) {
		o.transNoise = noise
	}
}

// WithStepRotNoise supplies the tangent-space rotation noise for each
// timestep, indexed like WithStepTransNoise.
func WithStepRotNoise(noise []*tensor.Dense) SampleOption {
	return func(o *sampleOptions) {
		o.rotNoise = noise
	}
}

// WithObserver calls fn after every reverse step.
func WithObserver(fn func(Step)) SampleOption {
	return func(o *sampleOptions) {
		o.observer = fn
	}
}

// at returns table[t] or nil.
func at(table []*tensor.Dense, t int) *tensor.Dense {
	if t < len(table) {
		return table[t]
	}
	return nil
}

// Sample runs the reverse process from noise to clean poses.
//
// Each step t predicts the noise, denoises the translation with the
// Euclidean posterior
//
//	x_{t-1} = c₁·x_t + c₂·clamp(x̂₀, -1, 1) + σ_t·z
//
// and the rotation with its geodesic counterpart
//
//	R_{t-1} = exp(log(λ(a, R̂₀)·λ(b, R_t)) + √β_t·ε),  λ(γ, R) = exp(γ·log R)
//
// where a = √ᾱ_{t-1}·β_t/(1-ᾱ_t) and b = √(α_t(1-ᾱ_{t-1}))/(1-ᾱ_t).
// The last step returns the estimates without noise. The context is checked
// between steps; on cancellation no partial result is returned.
func (d *Diffuser) Sample(ctx context.Context, shape SampleShape, src *noise.Source, opts ...SampleOption) (Sample, error) {
	const op = "diffusion.Sample"
	o := sampleOptions{steps: d.sched.T}
	for _, opt := range opts {
		opt(&o)
	}

	b, l := shape.Batch, shape.SeqLen
	if l == 0 {
		l = d.cfg.SeqLen
	}
	if b <= 0 {
		return Sample{}, fmt.Errorf("%s: %w: got %d", op, ErrInvalidBatch, b)
	}
	if l < 0 {
		return Sample{}, fmt.Errorf("%s: %w: got %d", op, ErrInvalidSeqLen, l)
	}
	if o.steps < 1 || o.steps > d.sched.T {
		return Sample{}, fmt.Errorf("%s: %w: got %d with T = %d", op, ErrInvalidSteps, o.steps, d.sched.T)
	}
	vecShape := tensor.Shape{b, l, 3}
	if err := d.checkSampleOptions(op, &o, src, vecShape); err != nil {
		return Sample{}, err
	}

	x, err := draw(op, "initTrans", o.initTrans, src, vecShape)
	if err != nil {
		return Sample{}, err
	}
	rot := o.initRot
	if rot == nil {
		var v *tensor.Dense
		if o.uniformInit {
			v = src.AxisAngle(b, l)
		} else {
			v = src.Normal(vecShape)
		}
		if rot, err = d.so3.Exp(v); err != nil {
			return Sample{}, err
		}
	}

	e := d.sched.Euclidean
	tt := make([]int, b)
	for t := o.steps - 1; t >= 0; t-- {
		if err := ctx.Err(); err != nil {
			return Sample{}, err
		}
		for i := range tt {
			tt[i] = t
		}

		transEps, rotEps, err := d.predict(x, rot, tt)
		if err != nil {
			return Sample{}, fmt.Errorf("%s: step %d: %w", op, t, err)
		}

		// Euclidean step.
		z := tensor.Zeros(vecShape)
		if t > 0 {
			if z, err = draw(op, "transNoise", at(o.transNoise, t), src, vecShape); err != nil {
				return Sample{}, err
			}
		}
		x0, err := d.estimateX0(x, transEps, tt)
		if err != nil {
			return Sample{}, err
		}
		x0 = x0.Clamp(-1, 1)
		xt := x
		mean := combine(fill(b, e.MeanParam1[t]), x, fill(b, e.MeanParam2[t]), x0)
		x = combine(fill(b, 1), mean, fill(b, e.Sigma[t]), z)

		// Rotational step.
		nearPi := d.so3.CountNearPi(rot)
		rt := rot
		var rot0 *tensor.Dense
		if rot, rot0, err = d.rotationStep(op, rot, rotEps, t, at(o.rotNoise, t), src); err != nil {
			return Sample{}, err
		}

		if o.observer != nil {
			o.observer(Step{T: t, Trans: xt, Rot: rt, TransX0: x0, RotX0: rot0, NearPi: nearPi})
		}
	}

	trans := x.Clamp(-1, 1).Scale(1 / d.cfg.TransScale)
	poses, err := se3.Compose(rot, trans)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Rot: rot, Trans: trans, Poses: poses}, nil
}

// rotationStep moves R_t to R_{t-1} given the predicted tangent noise, and
// returns the R̂₀ estimate it used.
func (d *Diffuser) rotationStep(op string, rot, eps *tensor.Dense, t int, override *tensor.Dense, src *noise.Source) (next, rot0 *tensor.Dense, err error) {
	r := d.sched.Rotational
	b := rot.Dim(0)

	vt, err := d.so3.Log(rot)
	if err != nil {
		return nil, nil, err
	}
	ab := r.AlphaBars[t]
	inv := 1 / math.Sqrt(max(ab, minAlphaBar))
	v0 := combine(fill(b, inv), vt, fill(b, -math.Sqrt(1-ab)*inv), eps)
	if rot0, err = d.so3.Exp(v0); err != nil {
		return nil, nil, err
	}
	if t == 0 {
		return rot0, rot0, nil
	}

	abPrev := r.AlphaBars[t-1]
	c1 := math.Sqrt(abPrev) * r.Betas[t] / (1 - ab)
	c2 := math.Sqrt(r.Alphas[t]*(1-abPrev)) / (1 - ab)

	part1, err := d.so3.GeodesicScale(rot0, fill(b, c1))
	if err != nil {
		return nil, nil, err
	}
	part2, err := d.so3.GeodesicScale(rot, fill(b, c2))
	if err != nil {
		return nil, nil, err
	}
	mu, err := d.so3.Compose(part1, part2)
	if err != nil {
		return nil, nil, err
	}
	vmu, err := d.so3.Log(mu)
	if err != nil {
		return nil, nil, err
	}

	z, err := draw(op, "rotNoise", override, src, vmu.Shape())
	if err != nil {
		return nil, nil, err
	}
	if next, err = d.so3.Exp(combine(fill(b, 1), vmu, fill(b, math.Sqrt(r.Betas[t])), z)); err != nil {
		return nil, nil, err
	}
	return next, rot0, nil
}

// checkSampleOptions validates every override before the first draw and
// makes sure a source exists when some draw is not overridden.
func (d *Diffuser) checkSampleOptions(op string, o *sampleOptions, src *noise.Source, vecShape tensor.Shape) error {
	if o.initTrans != nil {
		if err := tensor.Expect(op, "initTrans", o.initTrans, vecShape...); err != nil {
			return err
		}
	}
	if o.initRot != nil {
		if err := tensor.Expect(op, "initRot", o.initRot, vecShape[0], vecShape[1], 3, 3); err != nil {
			return err
		}
	}
	needSource := o.initTrans == nil || o.initRot == nil
	for t := 1; t < o.steps; t++ {
		for _, table := range [][]*tensor.Dense{o.transNoise, o.rotNoise} {
			n := at(table, t)
			if n == nil {
				needSource = true
				continue
			}
			if err := tensor.Expect(op, fmt.Sprintf("noise[%d]", t), n, vecShape...); err != nil {
				return err
			}
		}
	}
	if needSource && src == nil {
		return fmt.Errorf("%s: %w", op, ErrNilSource)
	}
	return nil
}
