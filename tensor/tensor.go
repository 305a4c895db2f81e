// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/se3diff/internal/tensor"
)

// Type aliases for public API

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 8, 3} is a batch of two trajectories of eight vectors.
type Shape = tensor.Shape

// Dense is a row-major float64 array.
type Dense = tensor.Dense

// ShapeError reports a tensor whose shape breaks an operation's contract.
type ShapeError = tensor.ShapeError

// Any matches every extent of a dimension in Expect.
const Any = tensor.Any

// Errors.
var (
	ErrShapeMismatch = tensor.ErrShapeMismatch
	ErrNilTensor     = tensor.ErrNilTensor
	ErrAxisRange     = tensor.ErrAxisRange
)

// Creation functions

// New wraps data in a tensor of the given shape. The slice is not copied.
//
// Example:
//
//	x, err := tensor.New(tensor.Shape{1, 2, 3}, []float64{0, 0, 1, 1, 0, 0})
func New(shape Shape, data []float64) (*Dense, error) {
	return tensor.New(shape, data)
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape) *Dense {
	return tensor.Zeros(shape)
}

// Full creates a tensor filled with v.
func Full(shape Shape, v float64) *Dense {
	return tensor.Full(shape, v)
}

// Manipulation functions

// Concat joins tensors along the batch axis.
//
// Example:
//
//	a := tensor.Zeros(tensor.Shape{1, 8, 3})
//	b := tensor.Zeros(tensor.Shape{2, 8, 3})
//	c, err := tensor.Concat(a, b) // Shape: (3, 8, 3)
func Concat(ts ...*Dense) (*Dense, error) {
	return tensor.Concat(ts...)
}

// Expect checks that d has the wanted shape, where Any matches every extent.
func Expect(op, name string, d *Dense, want ...int) error {
	return tensor.Expect(op, name, d, want...)
}
