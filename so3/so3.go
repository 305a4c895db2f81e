// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package so3 provides the rotation group maps used by se3diff.
//
// Tangent vectors are axis-angle r3.Vec values; rotations are row-major 3×3
// matrices.
//
// Example:
//
//	r := so3.Exp(r3.Vec{Z: math.Pi / 2}) // quarter turn about z
//	v := so3.Log(r)                      // back to (0, 0, π/2)
//	h := so3.GeodesicScale(r, 0.5)       // eighth turn about z
//
// Batched variants over (B, L, 3, 3) tensors live on Batched.
package so3

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/born-ml/se3diff/internal/parallel"
	"github.com/born-ml/se3diff/internal/so3"
)

// Matrix is a row-major 3×3 rotation matrix.
type Matrix = so3.Matrix

// Maps holds the tolerances used by the exp and log maps.
type Maps = so3.Maps

// Batched applies Maps to batched rotation and tangent tensors.
type Batched = so3.Batched

// ParallelConfig controls how Batched fans out over poses.
type ParallelConfig = parallel.Config

// DefaultMaps returns the default tolerances.
func DefaultMaps() Maps { return so3.DefaultMaps() }

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig { return parallel.DefaultConfig() }

// NewBatched returns a Batched with the default tolerances.
func NewBatched(cfg ParallelConfig) Batched { return so3.NewBatched(cfg) }

// Identity returns the identity rotation.
func Identity() Matrix { return so3.Identity() }

// Skew returns the skew-symmetric matrix S(v) with S(v)·w = v × w.
func Skew(v r3.Vec) Matrix { return so3.Skew(v) }

// Exp maps a tangent vector to a rotation.
func Exp(v r3.Vec) Matrix { return so3.Exp(v) }

// Log maps a rotation to its tangent vector.
func Log(m Matrix) r3.Vec { return so3.Log(m) }

// GeodesicScale scales the rotation angle of m by gamma.
func GeodesicScale(m Matrix, gamma float64) Matrix { return so3.GeodesicScale(m, gamma) }

// Distance returns the geodesic angle between two rotations.
func Distance(pred, truth Matrix) float64 { return so3.Distance(pred, truth) }

// FromQuaternion converts a unit quaternion to a rotation.
func FromQuaternion(q quat.Number) Matrix { return so3.FromQuaternion(q) }

// IsRotation reports whether m is orthonormal with determinant +1 within tol.
func IsRotation(m Matrix, tol float64) bool { return so3.IsRotation(m, tol) }
