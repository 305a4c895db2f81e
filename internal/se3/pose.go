// Package se3 packs rotations and translations into homogeneous 4x4 pose
// matrices and unpacks them again.
package se3

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

// ErrNotRigid is returned by Validate for poses that are not rigid motions.
var ErrNotRigid = errors.New("not a rigid transform")

// Compose builds (B, L, 4, 4) poses from (B, L, 3, 3) rotations and
// (B, L, 3) translations:
//
//	| R t |
//	| 0 1 |
func Compose(rot, trans *tensor.Dense) (*tensor.Dense, error) {
	if err := tensor.Expect("se3.Compose", "rot", rot, tensor.Any, tensor.Any, 3, 3); err != nil {
		return nil, err
	}
	b, l := rot.Dim(0), rot.Dim(1)
	if err := tensor.Expect("se3.Compose", "trans", trans, b, l, 3); err != nil {
		return nil, err
	}

	out := tensor.Zeros(tensor.Shape{b, l, 4, 4})
	r, t, p := rot.Data(), trans.Data(), out.Data()
	for i := 0; i < b*l; i++ {
		ri, ti, pi := r[9*i:9*i+9], t[3*i:3*i+3], p[16*i:16*i+16]
		for row := 0; row < 3; row++ {
			copy(pi[4*row:4*row+3], ri[3*row:3*row+3])
			pi[4*row+3] = ti[row]
		}
		pi[15] = 1
	}
	return out, nil
}

// Split returns the rotation and translation parts of (B, L, 4, 4) poses.
// The bottom row is ignored.
func Split(poses *tensor.Dense) (rot, trans *tensor.Dense, err error) {
	if err := tensor.Expect("se3.Split", "poses", poses, tensor.Any, tensor.Any, 4, 4); err != nil {
		return nil, nil, err
	}
	b, l := poses.Dim(0), poses.Dim(1)
	rot = tensor.Zeros(tensor.Shape{b, l, 3, 3})
	trans = tensor.Zeros(tensor.Shape{b, l, 3})

	r, t, p := rot.Data(), trans.Data(), poses.Data()
	for i := 0; i < b*l; i++ {
		ri, ti, pi := r[9*i:9*i+9], t[3*i:3*i+3], p[16*i:16*i+16]
		for row := 0; row < 3; row++ {
			copy(ri[3*row:3*row+3], pi[4*row:4*row+3])
			ti[row] = pi[4*row+3]
		}
	}
	return rot, trans, nil
}

// Validate checks that every pose has an orthonormal, right-handed rotation
// block and a bottom row of (0, 0, 0, 1), each within tol.
func Validate(poses *tensor.Dense, tol float64) error {
	if err := tensor.Expect("se3.Validate", "poses", poses, tensor.Any, tensor.Any, 4, 4); err != nil {
		return err
	}
	rot, _, err := Split(poses)
	if err != nil {
		return err
	}
	p := poses.Data()
	n := poses.Dim(0) * poses.Dim(1)
	for i := 0; i < n; i++ {
		bottom := p[16*i+12 : 16*i+16]
		if math.Abs(bottom[0]) > tol || math.Abs(bottom[1]) > tol ||
			math.Abs(bottom[2]) > tol || math.Abs(bottom[3]-1) > tol {
			return fmt.Errorf("pose %d: bottom row %v: %w", i, bottom, ErrNotRigid)
		}
		if !so3.IsRotation(so3.MatrixAt(rot, i), tol) {
			return fmt.Errorf("pose %d: rotation block: %w", i, ErrNotRigid)
		}
	}
	return nil
}
