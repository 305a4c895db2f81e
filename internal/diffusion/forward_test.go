package diffusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

func TestForwardClosedForm(t *testing.T) {
	d := newTestDiffuser(t, testConfig(), ZeroModel{})
	src := noise.New(1)
	trans, rot := randomPoses(src, 2, 4)
	eps1 := src.Normal(tensor.Shape{2, 4, 3})
	eps2 := src.Normal(tensor.Shape{2, 4, 3}).Scale(0.2)
	ts := []int{3, 17}

	c, err := d.Forward(trans, rot, ts, nil, WithTransNoise(eps1), WithRotNoise(eps2))
	require.NoError(t, err)
	assert.Same(t, eps1, c.TransNoise)
	assert.Same(t, eps2, c.RotNoise)

	e, r := d.Schedule().Euclidean, d.Schedule().Rotational
	for b, tb := range ts {
		for l := 0; l < 4; l++ {
			for k := 0; k < 3; k++ {
				want := e.QParam1[tb]*trans.At(b, l, k) + e.QParam2[tb]*eps1.At(b, l, k)
				assert.InDelta(t, want, c.Trans.At(b, l, k), 1e-12)
			}

			i := b*4 + l
			v0 := so3.Log(so3.MatrixAt(rot, i))
			ab := r.AlphaBars[tb]
			vt := r3.Add(r3.Scale(math.Sqrt(ab), v0), r3.Scale(math.Sqrt(1-ab), so3.VecAt(eps2, i)))
			want := so3.Exp(vt)
			got := so3.MatrixAt(c.Rot, i)
			assert.InDeltaSlice(t, want[:], got[:], 1e-12)
		}
	}
}

func TestForwardDeterministic(t *testing.T) {
	d := newTestDiffuser(t, testConfig(), ZeroModel{})
	trans, rot := randomPoses(noise.New(2), 3, 5)
	ts := []int{0, 10, 29}

	run := func() Corrupted {
		c, err := d.Forward(trans, rot, ts, noise.New(42))
		require.NoError(t, err)
		return c
	}
	a, b := run(), run()
	assert.Equal(t, a.Trans.Data(), b.Trans.Data())
	assert.Equal(t, a.Rot.Data(), b.Rot.Data())
}

func TestForwardDoesNotMutateInputs(t *testing.T) {
	d := newTestDiffuser(t, testConfig(), ZeroModel{})
	trans, rot := randomPoses(noise.New(3), 2, 3)
	transCopy, rotCopy := trans.Clone(), rot.Clone()

	_, err := d.Forward(trans, rot, []int{5, 6}, noise.New(4))
	require.NoError(t, err)
	assert.Equal(t, transCopy.Data(), trans.Data())
	assert.Equal(t, rotCopy.Data(), rot.Data())
}

// With T = 1 and β = 0.5 the noised sample of the identity pose at the
// origin is centred on it, and collapses onto it as the noise shrinks.
func TestForwardSingleStepScenario(t *testing.T) {
	cfg := testConfig()
	cfg.Timesteps, cfg.BetaStart, cfg.BetaEnd = 1, 0.5, 0.5
	d := newTestDiffuser(t, cfg, ZeroModel{})

	const n = 4000
	trans := tensor.Zeros(tensor.Shape{n, 1, 3})
	rot := so3.Identities(n, 1)
	ts := make([]int, n)

	c, err := d.Forward(trans, rot, ts, noise.New(5))
	require.NoError(t, err)

	v, err := d.so3.Log(c.Rot)
	require.NoError(t, err)
	for k := 0; k < 3; k++ {
		xs, vs := make([]float64, n), make([]float64, n)
		for i := 0; i < n; i++ {
			xs[i] = c.Trans.At(i, 0, k)
			vs[i] = v.At(i, 0, k)
		}
		assert.InDelta(t, 0, stat.Mean(xs, nil), 0.1, "translation axis %d", k)
		assert.InDelta(t, 0, stat.Mean(vs, nil), 0.1, "rotation axis %d", k)
	}

	for _, scale := range []float64{1e-1, 1e-3, 1e-6} {
		src := noise.New(6)
		eps1 := src.Normal(tensor.Shape{n, 1, 3}).Scale(scale)
		eps2 := src.Normal(tensor.Shape{n, 1, 3}).Scale(scale)
		c, err := d.Forward(trans, rot, ts, nil, WithTransNoise(eps1), WithRotNoise(eps2))
		require.NoError(t, err)

		maxAngle := 0.0
		for i := 0; i < n; i++ {
			maxAngle = max(maxAngle, d.cfg.Maps.Angle(so3.MatrixAt(c.Rot, i)))
		}
		assert.Less(t, floats.Norm(c.Trans.Data(), math.Inf(1)), 10*scale)
		// Angles are floored by the clamp on cos θ.
		assert.Less(t, maxAngle, max(10*scale, 1e-3))
	}
}

// At the last timestep the translation carries almost no signal, so x_t has
// the statistics of the noise.
func TestForwardNoiseLikeAtLastStep(t *testing.T) {
	d := newTestDiffuser(t, testConfig(), ZeroModel{})
	const n = 4000
	trans := tensor.Full(tensor.Shape{n, 1, 3}, 0.9)
	rot := so3.Identities(n, 1)
	ts := make([]int, n)
	for i := range ts {
		ts[i] = d.Timesteps() - 1
	}

	c, err := d.Forward(trans, rot, ts, noise.New(7))
	require.NoError(t, err)
	mean, variance := stat.MeanVariance(c.Trans.Data(), nil)
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, variance, 0.1)
}

func TestForwardBatchIndependence(t *testing.T) {
	d := newTestDiffuser(t, testConfig(), ZeroModel{})
	src := noise.New(8)
	trans, rot := randomPoses(src, 2, 3)
	eps1 := src.Normal(trans.Shape())
	eps2 := src.Normal(trans.Shape())
	ts := []int{2, 25}

	whole, err := d.Forward(trans, rot, ts, nil, WithTransNoise(eps1), WithRotNoise(eps2))
	require.NoError(t, err)

	for b := range ts {
		part, err := d.Forward(trans.Slice(b), rot.Slice(b), ts[b:b+1], nil,
			WithTransNoise(eps1.Slice(b)), WithRotNoise(eps2.Slice(b)))
		require.NoError(t, err)
		assert.Equal(t, whole.Trans.Slice(b).Data(), part.Trans.Data())
		assert.Equal(t, whole.Rot.Slice(b).Data(), part.Rot.Data())
	}
}

func TestForwardErrors(t *testing.T) {
	d := newTestDiffuser(t, testConfig(), ZeroModel{})
	trans, rot := randomPoses(noise.New(9), 2, 3)
	src := noise.New(10)

	_, err := d.Forward(tensor.Zeros(tensor.Shape{2, 3, 4}), rot, []int{0, 0}, src)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = d.Forward(trans, so3.Identities(2, 4), []int{0, 0}, src)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = d.Forward(trans, rot, []int{0}, src)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = d.Forward(trans, rot, []int{0, 30}, src)
	assert.ErrorIs(t, err, ErrTimestepRange)

	_, err = d.Forward(trans, rot, []int{-1, 0}, src)
	assert.ErrorIs(t, err, ErrTimestepRange)

	_, err = d.Forward(trans, rot, []int{0, 0}, nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = d.Forward(trans, rot, []int{0, 0}, src, WithTransNoise(tensor.Zeros(tensor.Shape{2, 3, 2})))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestForwardRejectsBeforeDrawing(t *testing.T) {
	d := newTestDiffuser(t, testConfig(), ZeroModel{})
	trans, rot := randomPoses(noise.New(11), 1, 2)

	src, ref := noise.New(12), noise.New(12)
	_, err := d.Forward(trans, rot, []int{0}, src, WithRotNoise(tensor.Zeros(tensor.Shape{1, 2, 1})))
	require.Error(t, err)
	assert.Equal(t, ref.NormFloat64(), src.NormFloat64())
}
