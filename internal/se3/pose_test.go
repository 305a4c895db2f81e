package se3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/born-ml/se3diff/internal/parallel"
	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

func testRotations(t *testing.T, b, l int) *tensor.Dense {
	t.Helper()
	v := tensor.Zeros(tensor.Shape{b, l, 3})
	for i, d := 0, v.Data(); i < len(d); i++ {
		d[i] = 0.1 * float64(i%7-3)
	}
	rot, err := so3.NewBatched(parallel.Sequential()).Exp(v)
	require.NoError(t, err)
	return rot
}

func TestComposeSplitRoundTrip(t *testing.T) {
	rot := testRotations(t, 2, 5)
	trans := tensor.Zeros(tensor.Shape{2, 5, 3})
	for i, d := 0, trans.Data(); i < len(d); i++ {
		d[i] = float64(i) / 10
	}

	poses, err := Compose(rot, trans)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 5, 4, 4}, poses.Shape())
	require.NoError(t, Validate(poses, 1e-9))

	gotRot, gotTrans, err := Split(poses)
	require.NoError(t, err)
	assert.Equal(t, rot.Data(), gotRot.Data())
	assert.Equal(t, trans.Data(), gotTrans.Data())
}

func TestComposeLayout(t *testing.T) {
	rot := so3.Identities(1, 1)
	trans, err := tensor.New(tensor.Shape{1, 1, 3}, []float64{1, 2, 3})
	require.NoError(t, err)

	poses, err := Compose(rot, trans)
	require.NoError(t, err)
	assert.Equal(t, []float64{
		1, 0, 0, 1,
		0, 1, 0, 2,
		0, 0, 1, 3,
		0, 0, 0, 1,
	}, poses.Data())

	// The pose acts on points as R·p + t.
	p := r3.Vec{X: 1}
	m := so3.MatrixAt(rot, 0)
	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 3}, r3.Add(m.MulVec(p), r3.Vec{X: 1, Y: 2, Z: 3}))
}

func TestComposeShapeErrors(t *testing.T) {
	rot := so3.Identities(2, 3)

	_, err := Compose(rot, tensor.Zeros(tensor.Shape{2, 4, 3}))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = Compose(tensor.Zeros(tensor.Shape{2, 3, 9}), tensor.Zeros(tensor.Shape{2, 3, 3}))
	var se *tensor.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "rot", se.Name)

	_, _, err = Split(tensor.Zeros(tensor.Shape{2, 3, 3, 4}))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestValidate(t *testing.T) {
	poses, err := Compose(so3.Identities(1, 2), tensor.Zeros(tensor.Shape{1, 2, 3}))
	require.NoError(t, err)
	require.NoError(t, Validate(poses, 1e-12))

	bad := poses.Clone()
	bad.Set(0.5, 0, 1, 3, 0)
	assert.ErrorIs(t, Validate(bad, 1e-6), ErrNotRigid)

	sheared := poses.Clone()
	sheared.Set(0.3, 0, 0, 0, 1)
	assert.ErrorIs(t, Validate(sheared, 1e-6), ErrNotRigid)
}
