package so3

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/born-ml/se3diff/internal/parallel"
	"github.com/born-ml/se3diff/internal/tensor"
)

// Batched applies the maps to (batch, seqLen, ...) tensors, one pose per
// goroutine slot. Rotations are (B, L, 3, 3), tangent vectors (B, L, 3).
type Batched struct {
	Maps
	Parallel parallel.Config
}

// NewBatched returns a Batched with the default tolerances.
func NewBatched(cfg parallel.Config) Batched {
	return Batched{Maps: DefaultMaps(), Parallel: cfg}
}

// MatrixAt reads pose i of a rotation tensor.
func MatrixAt(rot *tensor.Dense, i int) Matrix {
	var m Matrix
	copy(m[:], rot.Data()[9*i:9*i+9])
	return m
}

// VecAt reads pose i of a tangent tensor.
func VecAt(v *tensor.Dense, i int) r3.Vec {
	d := v.Data()[3*i : 3*i+3]
	return r3.Vec{X: d[0], Y: d[1], Z: d[2]}
}

func putMatrix(rot *tensor.Dense, i int, m Matrix) {
	copy(rot.Data()[9*i:9*i+9], m[:])
}

func putVec(v *tensor.Dense, i int, x r3.Vec) {
	d := v.Data()[3*i : 3*i+3]
	d[0], d[1], d[2] = x.X, x.Y, x.Z
}

// Identities returns a (batch, seqLen, 3, 3) tensor of identity rotations.
func Identities(batch, seqLen int) *tensor.Dense {
	out := tensor.Zeros(tensor.Shape{batch, seqLen, 3, 3})
	id := Identity()
	for i := 0; i < batch*seqLen; i++ {
		putMatrix(out, i, id)
	}
	return out
}

// Exp maps (B, L, 3) tangent vectors to (B, L, 3, 3) rotations.
func (bt Batched) Exp(v *tensor.Dense) (*tensor.Dense, error) {
	if err := tensor.Expect("so3.Exp", "v", v, tensor.Any, tensor.Any, 3); err != nil {
		return nil, err
	}
	b, l := v.Dim(0), v.Dim(1)
	out := tensor.Zeros(tensor.Shape{b, l, 3, 3})
	parallel.For(b*l, func(i int) {
		putMatrix(out, i, bt.Maps.Exp(VecAt(v, i)))
	}, bt.Parallel)
	return out, nil
}

// Log maps (B, L, 3, 3) rotations to (B, L, 3) tangent vectors.
func (bt Batched) Log(rot *tensor.Dense) (*tensor.Dense, error) {
	if err := tensor.Expect("so3.Log", "rot", rot, tensor.Any, tensor.Any, 3, 3); err != nil {
		return nil, err
	}
	b, l := rot.Dim(0), rot.Dim(1)
	out := tensor.Zeros(tensor.Shape{b, l, 3})
	parallel.For(b*l, func(i int) {
		putVec(out, i, bt.Maps.Log(MatrixAt(rot, i)))
	}, bt.Parallel)
	return out, nil
}

// GeodesicScale scales every rotation of batch element b by gamma[b].
func (bt Batched) GeodesicScale(rot *tensor.Dense, gamma []float64) (*tensor.Dense, error) {
	if err := tensor.Expect("so3.GeodesicScale", "rot", rot, tensor.Any, tensor.Any, 3, 3); err != nil {
		return nil, err
	}
	b, l := rot.Dim(0), rot.Dim(1)
	if len(gamma) != b {
		return nil, fmt.Errorf("so3.GeodesicScale: %d coefficients for batch of %d: %w",
			len(gamma), b, tensor.ErrShapeMismatch)
	}
	out := tensor.Zeros(rot.Shape())
	parallel.ForPoses(b, l, func(bi, li int) {
		i := bi*l + li
		putMatrix(out, i, bt.Maps.GeodesicScale(MatrixAt(rot, i), gamma[bi]))
	}, bt.Parallel)
	return out, nil
}

// Compose returns the element-wise matrix product a·b of two rotation tensors.
func (bt Batched) Compose(a, b *tensor.Dense) (*tensor.Dense, error) {
	if err := tensor.Expect("so3.Compose", "a", a, tensor.Any, tensor.Any, 3, 3); err != nil {
		return nil, err
	}
	if err := tensor.Expect("so3.Compose", "b", b, a.Dim(0), a.Dim(1), 3, 3); err != nil {
		return nil, err
	}
	out := tensor.Zeros(a.Shape())
	parallel.For(a.Dim(0)*a.Dim(1), func(i int) {
		putMatrix(out, i, MatrixAt(a, i).Mul(MatrixAt(b, i)))
	}, bt.Parallel)
	return out, nil
}

// MeanSquaredDistance returns the mean of the squared geodesic angle between
// matching rotations of pred and truth: the rotational analogue of a squared
// Euclidean error.
func (bt Batched) MeanSquaredDistance(pred, truth *tensor.Dense) (float64, error) {
	if err := tensor.Expect("so3.MeanSquaredDistance", "pred", pred, tensor.Any, tensor.Any, 3, 3); err != nil {
		return 0, err
	}
	if err := tensor.Expect("so3.MeanSquaredDistance", "truth", truth, pred.Dim(0), pred.Dim(1), 3, 3); err != nil {
		return 0, err
	}
	n := pred.Dim(0) * pred.Dim(1)
	sq := make([]float64, n)
	parallel.For(n, func(i int) {
		theta := bt.Maps.Distance(MatrixAt(pred, i), MatrixAt(truth, i))
		sq[i] = theta * theta
	}, bt.Parallel)

	return floats.Sum(sq) / float64(n), nil
}

// CountNearPi returns how many rotations sit on the log-map boundary.
func (bt Batched) CountNearPi(rot *tensor.Dense) int {
	n := rot.Len() / 9
	count := 0
	for i := 0; i < n; i++ {
		if bt.Maps.NearPi(MatrixAt(rot, i)) {
			count++
		}
	}
	return count
}
