// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package so3_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/born-ml/se3diff/so3"
	"github.com/born-ml/se3diff/tensor"
)

func TestMaps(t *testing.T) {
	r := so3.Exp(r3.Vec{Z: math.Pi / 2})
	require.True(t, so3.IsRotation(r, 1e-12))

	v := so3.Log(r)
	assert.InDelta(t, math.Pi/2, v.Z, 1e-9)

	h := so3.GeodesicScale(r, 0.5)
	assert.InDelta(t, math.Pi/4, so3.Distance(so3.Identity(), h), 1e-9)
	assert.InDelta(t, math.Pi/4, so3.Distance(h, r), 1e-9)

	q := r.Quaternion()
	back := so3.FromQuaternion(q)
	for i := range r {
		assert.InDelta(t, r[i], back[i], 1e-12)
	}
}

func TestBatched(t *testing.T) {
	bt := so3.NewBatched(so3.DefaultParallelConfig())
	v, err := tensor.New(tensor.Shape{1, 2, 3}, []float64{0, 0, 0.3, 0.1, -0.2, 0})
	require.NoError(t, err)

	rot, err := bt.Exp(v)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 3, 3}, rot.Shape())

	back, err := bt.Log(rot)
	require.NoError(t, err)
	assert.InDeltaSlice(t, v.Data(), back.Data(), 1e-9)

	_, err = bt.Exp(tensor.Zeros(tensor.Shape{1, 2, 4}))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
