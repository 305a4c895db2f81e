// Package so3 implements the exponential and logarithm maps between the
// rotation group SO(3) and its Lie algebra so(3), plus the geodesic
// operations the diffusion process builds on.
//
// Tangent vectors use the axis-angle encoding: the direction is the rotation
// axis and the length is the angle in radians.
package so3

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Maps holds the tolerances used by the exp and log maps.
type Maps struct {
	// ThetaEpsilon is the smallest angle used as a divisor. The Rodrigues
	// coefficients have removable singularities at 0; clamping only the
	// divisor keeps them finite without a branch.
	ThetaEpsilon float64

	// CosEpsilon keeps cos θ inside [-1+ε, 1-ε] before acos.
	CosEpsilon float64

	// PiTolerance is the distance from π below which NearPi reports a
	// rotation. The log map loses the sign of the axis at θ = π; that
	// boundary is reported, not patched.
	PiTolerance float64
}

// DefaultMaps returns the tolerances used by the package-level functions.
func DefaultMaps() Maps {
	return Maps{
		ThetaEpsilon: 1e-8,
		CosEpsilon:   1e-7,
		PiTolerance:  1e-3,
	}
}

var defaultMaps = DefaultMaps()

// Skew returns the skew-symmetric matrix S(v) with S(v)·w = v × w.
func Skew(v r3.Vec) Matrix {
	return Matrix{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	}
}

// Exp maps a tangent vector to a rotation matrix with Rodrigues' formula
//
//	R = I + (sin θ/θ)·S(v) + ((1 - cos θ)/θ²)·S(v)²,  θ = |v|.
func (mp Maps) Exp(v r3.Vec) Matrix {
	theta := r3.Norm(v)
	thetaC := max(theta, mp.ThetaEpsilon)

	s := Skew(v)
	a := math.Sin(theta) / thetaC
	b := (1 - math.Cos(theta)) / (thetaC * thetaC)

	return Identity().add(s.scale(a)).add(s.Mul(s).scale(b))
}

// cosAngle returns the clamped cosine of the rotation angle of m.
func (mp Maps) cosAngle(m Matrix) float64 {
	c := (m.Trace() - 1) / 2
	return min(max(c, -1+mp.CosEpsilon), 1-mp.CosEpsilon)
}

// Angle returns the rotation angle of m in [0, π].
func (mp Maps) Angle(m Matrix) float64 {
	return math.Acos(mp.cosAngle(m))
}

// Log maps a rotation matrix to its tangent vector.
//
// The axis comes from the antisymmetric part (R - Rᵀ)/2, scaled by θ/sin θ.
// Near θ = π that part vanishes and the result is unreliable; see NearPi.
func (mp Maps) Log(m Matrix) r3.Vec {
	theta := mp.Angle(m)
	scale := theta / math.Sin(max(theta, mp.ThetaEpsilon))

	v := r3.Vec{
		X: (m[7] - m[5]) / 2,
		Y: (m[2] - m[6]) / 2,
		Z: (m[3] - m[1]) / 2,
	}
	return r3.Scale(scale, v)
}

// GeodesicScale scales the rotation angle of m by gamma, keeping its axis:
// exp(γ·log(m)). Any real gamma is allowed.
func (mp Maps) GeodesicScale(m Matrix, gamma float64) Matrix {
	return mp.Exp(r3.Scale(gamma, mp.Log(m)))
}

// Distance returns the geodesic angle between two rotations, the angle of
// predᵀ·truth.
func (mp Maps) Distance(pred, truth Matrix) float64 {
	return mp.Angle(pred.T().Mul(truth))
}

// NearPi reports whether the rotation angle of m lies within PiTolerance of π.
func (mp Maps) NearPi(m Matrix) bool {
	c := min(max((m.Trace()-1)/2, -1), 1)
	return math.Pi-math.Acos(c) < mp.PiTolerance
}

// Exp maps v to SO(3) with the default tolerances.
func Exp(v r3.Vec) Matrix { return defaultMaps.Exp(v) }

// Log maps m to so(3) with the default tolerances.
func Log(m Matrix) r3.Vec { return defaultMaps.Log(m) }

// GeodesicScale scales the angle of m by gamma with the default tolerances.
func GeodesicScale(m Matrix, gamma float64) Matrix { return defaultMaps.GeodesicScale(m, gamma) }

// Distance returns the geodesic angle between two rotations with the default tolerances.
func Distance(pred, truth Matrix) float64 { return defaultMaps.Distance(pred, truth) }
