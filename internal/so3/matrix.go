package so3

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Matrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type Matrix [9]float64

// Identity returns the 3x3 identity.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// At returns the element in row r, column c.
func (m Matrix) At(r, c int) float64 {
	return m[3*r+c]
}

// Mul returns the matrix product m·o.
func (m Matrix) Mul(o Matrix) Matrix {
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[3*r+c] = m[3*r]*o[c] + m[3*r+1]*o[3+c] + m[3*r+2]*o[6+c]
		}
	}
	return out
}

// T returns the transpose.
func (m Matrix) T() Matrix {
	return Matrix{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

// Trace returns the sum of the diagonal.
func (m Matrix) Trace() float64 {
	return m[0] + m[4] + m[8]
}

// MulVec returns m·v.
func (m Matrix) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

func (m Matrix) add(o Matrix) Matrix {
	for i := range m {
		m[i] += o[i]
	}
	return m
}

func (m Matrix) scale(f float64) Matrix {
	for i := range m {
		m[i] *= f
	}
	return m
}

// Dense copies m into a gonum matrix.
func (m Matrix) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, m[:])
	return mat.NewDense(3, 3, data)
}

// Quaternion returns the unit quaternion for the rotation m.
// reference: http://www.euclideanspace.com/maths/geometry/rotations/conversions/matrixToQuaternion/index.htm
func (m Matrix) Quaternion() quat.Number {
	var q quat.Number
	if tr := m.Trace(); tr > 0 {
		s := 0.5 / math.Sqrt(tr+1.0)
		q = quat.Number{Real: 0.25 / s, Imag: (m[7] - m[5]) * s, Jmag: (m[2] - m[6]) * s, Kmag: (m[3] - m[1]) * s}
	} else if m[0] > m[4] && m[0] > m[8] {
		s := 2.0 * math.Sqrt(1.0+m[0]-m[4]-m[8])
		q = quat.Number{Real: (m[7] - m[5]) / s, Imag: 0.25 * s, Jmag: (m[1] + m[3]) / s, Kmag: (m[2] + m[6]) / s}
	} else if m[4] > m[8] {
		s := 2.0 * math.Sqrt(1.0+m[4]-m[0]-m[8])
		q = quat.Number{Real: (m[2] - m[6]) / s, Imag: (m[1] + m[3]) / s, Jmag: 0.25 * s, Kmag: (m[5] + m[7]) / s}
	} else {
		s := 2.0 * math.Sqrt(1.0+m[8]-m[0]-m[4])
		q = quat.Number{Real: (m[3] - m[1]) / s, Imag: (m[2] + m[6]) / s, Jmag: (m[5] + m[7]) / s, Kmag: 0.25 * s}
	}

	// Unit length and non-negative real part, so q and -q map to one value.
	n := quat.Abs(q)
	if q.Real < 0 {
		n = -n
	}
	return quat.Scale(1/n, q)
}

// FromQuaternion returns the rotation matrix of q. q need not be normalised.
func FromQuaternion(q quat.Number) Matrix {
	q = quat.Scale(1/quat.Abs(q), q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return Matrix{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}
}

// IsRotation reports whether m is orthonormal with determinant +1, each to
// within tol.
func IsRotation(m Matrix, tol float64) bool {
	d := m.Dense()
	var rtr mat.Dense
	rtr.Mul(d.T(), d)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := 0.0
			if r == c {
				want = 1
			}
			if math.Abs(rtr.At(r, c)-want) > tol {
				return false
			}
		}
	}
	return math.Abs(mat.Det(d)-1) <= tol
}
