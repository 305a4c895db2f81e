package diffusion

import (
	"fmt"
	"strings"

	"github.com/born-ml/se3diff/internal/tensor"
)

// ScoreModel predicts the noise that corrupted a batch of poses.
//
// With the FeatureMajor layout the inputs are trans (B, L, 3) and rot
// (B, L, 9), the row-major flattened rotation matrices, and both outputs are
// (B, L, 3): the translation noise and the tangent-space rotation noise.
// With SequenceMajor the last two axes of every input and output are swapped.
type ScoreModel interface {
	Predict(trans, rot *tensor.Dense, t []int) (transEps, rotEps *tensor.Dense, err error)
}

// LayoutModel is implemented by score models that fix their own layout.
// New prefers it over Config.Layout.
type LayoutModel interface {
	ScoreModel
	Layout() Layout
}

// ScoreFunc adapts an ordinary function to ScoreModel.
type ScoreFunc func(trans, rot *tensor.Dense, t []int) (transEps, rotEps *tensor.Dense, err error)

// Predict calls f.
func (f ScoreFunc) Predict(trans, rot *tensor.Dense, t []int) (transEps, rotEps *tensor.Dense, err error) {
	return f(trans, rot, t)
}

// ZeroModel predicts zero noise everywhere. It is the untrained baseline: the
// sampler then reduces to the schedule's posterior mean.
type ZeroModel struct{}

// Predict returns zero tensors shaped like trans.
func (ZeroModel) Predict(trans, _ *tensor.Dense, _ []int) (transEps, rotEps *tensor.Dense, err error) {
	return tensor.Zeros(trans.Shape()), tensor.Zeros(trans.Shape()), nil
}

// Layout is the axis order a score model consumes and produces.
type Layout int

// Layouts.
const (
	// FeatureMajor is (batch, seqLen, features).
	FeatureMajor Layout = iota
	// SequenceMajor is (batch, features, seqLen), as convolutional U-Nets expect.
	SequenceMajor
)

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case FeatureMajor:
		return "feature"
	case SequenceMajor:
		return "sequence"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// ParseLayout accepts "feature" or "sequence" (case-insensitive).
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "feature", "feature-major", "":
		return FeatureMajor, nil
	case "sequence", "sequence-major", "unet":
		return SequenceMajor, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}
