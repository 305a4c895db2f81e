package diffusion

import (
	"errors"

	"github.com/born-ml/se3diff/internal/schedule"
)

// Common errors.
var (
	ErrInvalidTimesteps  = schedule.ErrInvalidTimesteps
	ErrInvalidBeta       = schedule.ErrInvalidBeta
	ErrTimestepRange     = schedule.ErrTimestepRange
	ErrInvalidSeqLen     = errors.New("sequence length must be positive")
	ErrInvalidBatch      = errors.New("batch size must be positive")
	ErrInvalidTransScale = errors.New("translation scale must be finite and non-zero")
	ErrInvalidSteps      = errors.New("sampling steps must lie in [1, T]")
	ErrNilModel          = errors.New("score model is nil")
	ErrNilSource         = errors.New("noise source is nil")
)
