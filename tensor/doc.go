// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float64 arrays that carry batched poses
// through se3diff.
//
// # Overview
//
// A Dense is a row-major array with a fixed Shape. Pose batches use a small
// set of layouts:
//   - (B, L, 3) translations and tangent vectors
//   - (B, L, 3, 3) rotation matrices
//   - (B, L, 4, 4) homogeneous poses
//
// # Basic Usage
//
//	import "github.com/born-ml/se3diff/tensor"
//
//	func main() {
//	    x := tensor.Zeros(tensor.Shape{2, 8, 3})
//	    x.Set(1.5, 0, 0, 2)
//
//	    // Swap the sequence and feature axes.
//	    y, err := x.SwapAxes(1, 2) // (2, 3, 8)
//	}
//
// # Shape Errors
//
// Operations validate their inputs up front and return a *ShapeError that
// wraps ErrShapeMismatch:
//
//	if errors.Is(err, tensor.ErrShapeMismatch) {
//	    var se *tensor.ShapeError
//	    errors.As(err, &se)
//	}
package tensor
