// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package diffusion provides the public API of the SE(3) denoising diffusion
// process: schedules, forward corruption, the training loss and the reverse
// sampler.
//
// Translations diffuse with a cosine-scheduled Euclidean DDPM. Rotations
// diffuse in the tangent space of SO(3) with a linear beta schedule, and the
// reverse step blends rotations by geodesic scaling instead of linear
// interpolation of matrices.
//
// Example:
//
//	d, err := diffusion.New(diffusion.DefaultConfig(), model)
//	if err != nil {
//	    return err
//	}
//	src := diffusion.NewSource(42)
//
//	// One training objective evaluation.
//	loss, err := d.Loss(trans, rot, t, src)
//
//	// Generate four trajectories.
//	s, err := d.Sample(ctx, diffusion.SampleShape{Batch: 4}, src)
package diffusion

import (
	"github.com/born-ml/se3diff/internal/diffusion"
	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/schedule"
	"github.com/born-ml/se3diff/internal/se3"
	"github.com/born-ml/se3diff/internal/tensor"
)

// Type aliases for public API

// Diffuser runs the forward process, the loss and the reverse sampler.
type Diffuser = diffusion.Diffuser

// Config configures a Diffuser.
type Config = diffusion.Config

// ScoreModel predicts the translation and rotation noise of a noised batch.
type ScoreModel = diffusion.ScoreModel

// LayoutModel is a ScoreModel that declares its own tensor layout.
type LayoutModel = diffusion.LayoutModel

// ScoreFunc adapts a function to ScoreModel.
type ScoreFunc = diffusion.ScoreFunc

// ZeroModel predicts zero noise.
type ZeroModel = diffusion.ZeroModel

// Layout is the tensor layout a score model expects.
type Layout = diffusion.Layout

// Layouts.
const (
	FeatureMajor  = diffusion.FeatureMajor
	SequenceMajor = diffusion.SequenceMajor
)

// Schedule holds the per-timestep coefficients of both components.
type Schedule = schedule.Schedule

// Source is the explicit random source threaded through every draw.
type Source = noise.Source

// Result and option types.
type (
	Corrupted     = diffusion.Corrupted
	Loss          = diffusion.Loss
	Sample        = diffusion.Sample
	SampleShape   = diffusion.SampleShape
	Step          = diffusion.Step
	ForwardOption = diffusion.ForwardOption
	SampleOption  = diffusion.SampleOption
)

// Errors.
var (
	ErrInvalidTimesteps  = diffusion.ErrInvalidTimesteps
	ErrInvalidBeta       = diffusion.ErrInvalidBeta
	ErrTimestepRange     = diffusion.ErrTimestepRange
	ErrInvalidSeqLen     = diffusion.ErrInvalidSeqLen
	ErrInvalidBatch      = diffusion.ErrInvalidBatch
	ErrInvalidTransScale = diffusion.ErrInvalidTransScale
	ErrInvalidSteps      = diffusion.ErrInvalidSteps
	ErrNilModel          = diffusion.ErrNilModel
	ErrNilSource         = diffusion.ErrNilSource
)

// DefaultConfig returns T = 30, betas 0.1 to 1.0, unit translation scale and
// trajectories of 128 poses.
func DefaultConfig() Config { return diffusion.DefaultConfig() }

// New builds a Diffuser for model.
func New(cfg Config, model ScoreModel) (*Diffuser, error) { return diffusion.New(cfg, model) }

// NewSource creates a random source. A negative seed picks a random one.
func NewSource(seed int64) *Source { return noise.New(seed) }

// ParseLayout parses "feature" or "sequence".
func ParseLayout(s string) (Layout, error) { return diffusion.ParseLayout(s) }

// Forward options.

// WithTransNoise fixes the translation noise ε₁ of Forward or Loss.
func WithTransNoise(eps *tensor.Dense) ForwardOption { return diffusion.WithTransNoise(eps) }

// WithRotNoise fixes the tangent rotation noise ε₂ of Forward or Loss.
func WithRotNoise(eps *tensor.Dense) ForwardOption { return diffusion.WithRotNoise(eps) }

// Sample options.

// WithInitTrans fixes the initial translation noise x_T.
func WithInitTrans(trans *tensor.Dense) SampleOption { return diffusion.WithInitTrans(trans) }

// WithInitRot fixes the initial rotations R_T.
func WithInitRot(rot *tensor.Dense) SampleOption { return diffusion.WithInitRot(rot) }

// WithUniformAxisAngleInit draws R_T from uniform axis-angle vectors.
func WithUniformAxisAngleInit() SampleOption { return diffusion.WithUniformAxisAngleInit() }

// WithSteps runs only the last n reverse steps.
func WithSteps(n int) SampleOption { return diffusion.WithSteps(n) }

// WithStepTransNoise fixes the translation noise of each reverse step.
func WithStepTransNoise(eps []*tensor.Dense) SampleOption {
	return diffusion.WithStepTransNoise(eps)
}

// WithStepRotNoise fixes the tangent rotation noise of each reverse step.
func WithStepRotNoise(eps []*tensor.Dense) SampleOption {
	return diffusion.WithStepRotNoise(eps)
}

// WithObserver calls fn after every reverse step.
func WithObserver(fn func(Step)) SampleOption { return diffusion.WithObserver(fn) }

// Pose helpers.

// ComposePoses builds (B, L, 4, 4) homogeneous poses from rotations and
// translations.
func ComposePoses(rot, trans *tensor.Dense) (*tensor.Dense, error) { return se3.Compose(rot, trans) }

// SplitPoses splits (B, L, 4, 4) poses into rotations and translations.
func SplitPoses(poses *tensor.Dense) (rot, trans *tensor.Dense, err error) { return se3.Split(poses) }
