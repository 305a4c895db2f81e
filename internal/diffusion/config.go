package diffusion

import (
	"fmt"
	"math"

	"github.com/born-ml/se3diff/internal/parallel"
	"github.com/born-ml/se3diff/internal/schedule"
	"github.com/born-ml/se3diff/internal/so3"
)

// Config configures a Diffuser.
type Config struct {
	// Timesteps is T, the number of diffusion steps.
	Timesteps int

	// BetaStart and BetaEnd bound the linear rotational beta schedule.
	BetaStart float64
	BetaEnd   float64

	// TransScale multiplies translations before diffusion; samples are
	// divided by it on the way out.
	TransScale float64

	// SeqLen is the default number of poses per sampled trajectory.
	SeqLen int

	// Layout is the tensor layout the score model expects.
	Layout Layout

	// Maps holds the SO(3) tolerances.
	Maps so3.Maps

	// Parallel controls fan-out of the per-pose maps.
	Parallel parallel.Config
}

// DefaultConfig returns T = 30, betas 0.1 to 1.0, unit translation scale and
// trajectories of 128 poses.
func DefaultConfig() Config {
	return Config{
		Timesteps:  30,
		BetaStart:  0.1,
		BetaEnd:    1.0,
		TransScale: 1.0,
		SeqLen:     128,
		Layout:     FeatureMajor,
		Maps:       so3.DefaultMaps(),
		Parallel:   parallel.DefaultConfig(),
	}
}

// Validate checks the configuration contract.
func (c Config) Validate() error {
	if err := c.scheduleConfig().Validate(); err != nil {
		return err
	}
	if c.SeqLen <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSeqLen, c.SeqLen)
	}
	if c.TransScale == 0 || math.IsNaN(c.TransScale) || math.IsInf(c.TransScale, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidTransScale, c.TransScale)
	}
	if c.Layout != FeatureMajor && c.Layout != SequenceMajor {
		return fmt.Errorf("unknown layout %d", c.Layout)
	}
	return nil
}

func (c Config) scheduleConfig() schedule.Config {
	return schedule.Config{
		Timesteps: c.Timesteps,
		BetaStart: c.BetaStart,
		BetaEnd:   c.BetaEnd,
	}
}
