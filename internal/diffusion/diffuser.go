// Package diffusion implements DDPM-style denoising diffusion on SE(3) poses.
//
// Translations follow the usual Euclidean process under a cosine schedule.
// Rotations are diffused in the tangent space of SO(3) under a linear beta
// schedule, and the reverse step combines the denoised estimate with the
// current state by geodesic scaling and matrix composition rather than by
// blending matrix entries.
//
// A Diffuser is read-only after New. Concurrent calls are safe as long as
// each call gets its own *noise.Source and the score model is itself safe
// for concurrent use.
package diffusion

import (
	"fmt"

	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/schedule"
	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

// Diffuser owns the schedules and drives a score model through the forward
// process, the training loss and the reverse sampler.
type Diffuser struct {
	cfg   Config
	sched *schedule.Schedule
	model ScoreModel
	so3   so3.Batched
}

// New builds the schedules for cfg and binds the score model.
func New(cfg Config, model ScoreModel) (*Diffuser, error) {
	if model == nil {
		return nil, ErrNilModel
	}
	if lm, ok := model.(LayoutModel); ok {
		cfg.Layout = lm.Layout()
	}
	if cfg.Maps == (so3.Maps{}) {
		cfg.Maps = so3.DefaultMaps()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid diffusion config: %w", err)
	}

	sched, err := schedule.New(cfg.scheduleConfig())
	if err != nil {
		return nil, fmt.Errorf("build schedule: %w", err)
	}

	return &Diffuser{
		cfg:   cfg,
		sched: sched,
		model: model,
		so3:   so3.Batched{Maps: cfg.Maps, Parallel: cfg.Parallel},
	}, nil
}

// Config returns the configuration the Diffuser was built with.
func (d *Diffuser) Config() Config {
	return d.cfg
}

// Schedule returns the noise schedules. Callers must not modify them.
func (d *Diffuser) Schedule() *schedule.Schedule {
	return d.sched
}

// Timesteps returns T.
func (d *Diffuser) Timesteps() int {
	return d.sched.T
}

// checkPoses validates a (B, L, 3) translation and (B, L, 3, 3) rotation pair
// and a timestep per batch element.
func (d *Diffuser) checkPoses(op string, trans, rot *tensor.Dense, t []int) error {
	if err := tensor.Expect(op, "trans", trans, tensor.Any, tensor.Any, 3); err != nil {
		return err
	}
	b, l := trans.Dim(0), trans.Dim(1)
	if err := tensor.Expect(op, "rot", rot, b, l, 3, 3); err != nil {
		return err
	}
	if len(t) != b {
		return fmt.Errorf("%s: %d timesteps for batch of %d: %w", op, len(t), b, tensor.ErrShapeMismatch)
	}
	if err := d.sched.CheckTimesteps(t); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// predict runs the score model on x_t and R_t, applying the model layout.
// Both returned tensors are (B, L, 3).
func (d *Diffuser) predict(trans, rot *tensor.Dense, t []int) (transEps, rotEps *tensor.Dense, err error) {
	b, l := trans.Dim(0), trans.Dim(1)
	flat, err := rot.Reshape(tensor.Shape{b, l, 9})
	if err != nil {
		return nil, nil, err
	}

	in1, in2 := trans, flat
	want := []int{b, l, 3}
	if d.cfg.Layout == SequenceMajor {
		if in1, err = in1.SwapAxes(1, 2); err != nil {
			return nil, nil, err
		}
		if in2, err = in2.SwapAxes(1, 2); err != nil {
			return nil, nil, err
		}
		want = []int{b, 3, l}
	}

	transEps, rotEps, err = d.model.Predict(in1, in2, t)
	if err != nil {
		return nil, nil, fmt.Errorf("score model: %w", err)
	}
	if err := tensor.Expect("score model", "transEps", transEps, want...); err != nil {
		return nil, nil, err
	}
	if err := tensor.Expect("score model", "rotEps", rotEps, want...); err != nil {
		return nil, nil, err
	}

	if d.cfg.Layout == SequenceMajor {
		if transEps, err = transEps.SwapAxes(1, 2); err != nil {
			return nil, nil, err
		}
		if rotEps, err = rotEps.SwapAxes(1, 2); err != nil {
			return nil, nil, err
		}
	}
	return transEps, rotEps, nil
}

// draw returns override when it is set, otherwise fresh N(0, I) noise of the
// given shape from src.
func draw(op, name string, override *tensor.Dense, src *noise.Source, shape tensor.Shape) (*tensor.Dense, error) {
	if override != nil {
		if err := tensor.Expect(op, name, override, shape...); err != nil {
			return nil, err
		}
		return override, nil
	}
	if src == nil {
		return nil, fmt.Errorf("%s: %s: %w", op, name, ErrNilSource)
	}
	return src.Normal(shape), nil
}

// checkOverrides validates noise overrides of the given shape before anything
// is drawn, and requires a source when any of them is missing.
func checkOverrides(op string, src *noise.Source, shape tensor.Shape, overrides ...*tensor.Dense) error {
	missing := false
	for _, o := range overrides {
		if o == nil {
			missing = true
			continue
		}
		if err := tensor.Expect(op, "noise override", o, shape...); err != nil {
			return err
		}
	}
	if missing && src == nil {
		return fmt.Errorf("%s: %w", op, ErrNilSource)
	}
	return nil
}

// combine returns a[b]·x + c[b]·y for every batch element b.
// x and y must have the same shape and len(a) == len(c) == x.Dim(0).
func combine(a []float64, x *tensor.Dense, c []float64, y *tensor.Dense) *tensor.Dense {
	out := tensor.Zeros(x.Shape())
	stride := x.Len() / x.Dim(0)
	xd, yd, od := x.Data(), y.Data(), out.Data()
	for i := range od {
		b := i / stride
		od[i] = a[b]*xd[i] + c[b]*yd[i]
	}
	return out
}

// fill returns n copies of v.
func fill(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}
