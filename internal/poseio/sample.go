package poseio

import (
	"fmt"

	"github.com/born-ml/se3diff/internal/diffusion"
	"github.com/born-ml/se3diff/internal/se3"
	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

// Tensor names used for samples.
const (
	PosesName        = "poses"        // (B, L, 4, 4)
	RotationsName    = "rotations"    // (B, L, 3, 3)
	TranslationsName = "translations" // (B, L, 3)
	QuaternionsName  = "quaternions"  // (B, L, 4) as w, x, y, z
)

// Quaternions converts (B, L, 3, 3) rotations to (B, L, 4) unit quaternions
// with a non-negative real part.
func Quaternions(rot *tensor.Dense) (*tensor.Dense, error) {
	if err := tensor.Expect("poseio.Quaternions", "rot", rot, tensor.Any, tensor.Any, 3, 3); err != nil {
		return nil, err
	}
	b, l := rot.Dim(0), rot.Dim(1)
	out := tensor.Zeros(tensor.Shape{b, l, 4})
	d := out.Data()
	for i := 0; i < b*l; i++ {
		q := so3.MatrixAt(rot, i).Quaternion()
		d[4*i], d[4*i+1], d[4*i+2], d[4*i+3] = q.Real, q.Imag, q.Jmag, q.Kmag
	}
	return out, nil
}

// WriteSample stores a generated sample with its poses, both parts and the
// quaternion form of its rotations.
func WriteSample(path string, s diffusion.Sample, metadata map[string]string) error {
	q, err := Quaternions(s.Rot)
	if err != nil {
		return err
	}
	return WriteFile(path, map[string]*tensor.Dense{
		PosesName:        s.Poses,
		RotationsName:    s.Rot,
		TranslationsName: s.Trans,
		QuaternionsName:  q,
	}, metadata)
}

// SampleFromFile rebuilds a sample from the poses tensor of f.
func SampleFromFile(f *File) (diffusion.Sample, error) {
	poses, err := f.Tensor(PosesName)
	if err != nil {
		return diffusion.Sample{}, err
	}
	rot, trans, err := se3.Split(poses)
	if err != nil {
		return diffusion.Sample{}, fmt.Errorf("poses: %w", err)
	}
	return diffusion.Sample{Rot: rot, Trans: trans, Poses: poses}, nil
}

// ReadSample reads a file written by WriteSample.
func ReadSample(path string) (diffusion.Sample, map[string]string, error) {
	f, err := ReadFile(path)
	if err != nil {
		return diffusion.Sample{}, nil, err
	}
	s, err := SampleFromFile(f)
	if err != nil {
		return diffusion.Sample{}, nil, err
	}
	return s, f.Metadata, nil
}
