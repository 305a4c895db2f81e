package so3

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func assertMatrixInDelta(t *testing.T, want, got Matrix, delta float64) {
	t.Helper()
	for i := range want {
		if math.Abs(want[i]-got[i]) > delta {
			assert.Failf(t, "matrices differ", "element %d: want %v, got %v\nwant %v\ngot  %v", i, want[i], got[i], want, got)
			return
		}
	}
}

func assertVecInDelta(t *testing.T, want, got r3.Vec, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta)
	assert.InDelta(t, want.Y, got.Y, delta)
	assert.InDelta(t, want.Z, got.Z, delta)
}

// randomTangent returns a vector with random axis and length in [lo, hi).
func randomTangent(rng *rand.Rand, lo, hi float64) r3.Vec {
	axis := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
	return r3.Scale(lo+(hi-lo)*rng.Float64(), axis)
}

func TestSkewMatchesCross(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		v := randomTangent(rng, 0, 5)
		w := randomTangent(rng, 0, 5)
		assertVecInDelta(t, r3.Cross(v, w), Skew(v).MulVec(w), 1e-12)
	}
}

func TestExpZeroIsIdentity(t *testing.T) {
	assert.Equal(t, Identity(), Exp(r3.Vec{}))
}

func TestExpKnownRotation(t *testing.T) {
	// Quarter turn about z maps x to y.
	r := Exp(r3.Vec{Z: math.Pi / 2})
	assertVecInDelta(t, r3.Vec{Y: 1}, r.MulVec(r3.Vec{X: 1}), 1e-12)
	assert.InDelta(t, math.Pi/2, defaultMaps.Angle(r), 1e-9)
}

func TestExpProducesRotations(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 200; i++ {
		v := randomTangent(rng, 0, 12)
		assert.True(t, IsRotation(Exp(v), 1e-9), "exp(%v) is not a rotation", v)
	}
	// Below the epsilon the clamped divisor keeps the result orthonormal.
	assert.True(t, IsRotation(Exp(r3.Vec{X: 1e-12}), 1e-12))
}

func TestLogExpRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < 500; i++ {
		v := randomTangent(rng, 1e-3, math.Pi-0.05)
		assertVecInDelta(t, v, Log(Exp(v)), 1e-6)
	}
}

func TestExpLogRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	for i := 0; i < 500; i++ {
		r := Exp(randomTangent(rng, 0, math.Pi-0.05))
		assertMatrixInDelta(t, r, Exp(Log(r)), 1e-6)
	}
	assert.Equal(t, Identity(), Exp(Log(Identity())))
}

func TestLogNearPiIsDegenerate(t *testing.T) {
	// The antisymmetric part vanishes at θ = π, so the axis is lost.
	r := Exp(r3.Vec{X: math.Pi})
	maps := DefaultMaps()
	assert.True(t, maps.NearPi(r))
	assert.Less(t, r3.Norm(Log(r)), 1.0)

	assert.False(t, maps.NearPi(Exp(r3.Vec{X: 1})))
	assert.False(t, maps.NearPi(Identity()))
}

func TestGeodesicScale(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 10))
	for i := 0; i < 100; i++ {
		r := Exp(randomTangent(rng, 0.01, 3))

		assertMatrixInDelta(t, r, GeodesicScale(r, 1), 1e-6)
		assert.Equal(t, Identity(), GeodesicScale(r, 0))

		half := GeodesicScale(r, 0.5)
		assertMatrixInDelta(t, r, half.Mul(half), 1e-6)

		inv := GeodesicScale(r, -1)
		assertMatrixInDelta(t, Identity(), r.Mul(inv), 1e-6)
	}
}

func TestDistance(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	for i := 0; i < 100; i++ {
		r := Exp(randomTangent(rng, 0, 3))
		// acos is clamped at 1-1e-7, so identical rotations are ~4.5e-4 apart.
		assert.Less(t, Distance(r, r), 1e-3)
	}

	v := randomTangent(rng, 0.7, 0.7)
	assert.InDelta(t, 0.7, Distance(Identity(), Exp(v)), 1e-9)

	// Distance is left invariant.
	a, b, g := Exp(randomTangent(rng, 0, 2)), Exp(randomTangent(rng, 0, 2)), Exp(randomTangent(rng, 0, 2))
	assert.InDelta(t, Distance(a, b), Distance(g.Mul(a), g.Mul(b)), 1e-7)
}

func TestQuaternion(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	for i := 0; i < 200; i++ {
		v := randomTangent(rng, 0, math.Pi)
		r := Exp(v)
		q := r.Quaternion()

		assert.InDelta(t, 1, quat.Abs(q), 1e-12)
		assert.GreaterOrEqual(t, q.Real, 0.0)
		assertMatrixInDelta(t, r, FromQuaternion(q), 1e-9)

		theta := r3.Norm(v)
		assert.InDelta(t, math.Cos(theta/2), q.Real, 1e-9)

		// q·w·q̄ rotates w the same way as R.
		w := randomTangent(rng, 1, 1)
		p := quat.Mul(quat.Mul(q, quat.Number{Imag: w.X, Jmag: w.Y, Kmag: w.Z}), quat.Conj(q))
		assertVecInDelta(t, r.MulVec(w), r3.Vec{X: p.Imag, Y: p.Jmag, Z: p.Kmag}, 1e-9)
	}
}

func TestIsRotation(t *testing.T) {
	assert.True(t, IsRotation(Identity(), 1e-12))
	assert.False(t, IsRotation(Matrix{1, 0, 0, 0, 1, 0, 0, 0, -1}, 1e-6), "reflection")
	assert.False(t, IsRotation(Identity().scale(2), 1e-6))
	require.True(t, IsRotation(Exp(r3.Vec{X: 1, Y: -2, Z: 0.5}).T(), 1e-9))
}
