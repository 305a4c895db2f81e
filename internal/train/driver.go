// Package train runs a diffusion model through epochs of data: it draws
// timesteps, computes the loss, hands it to an optimizer and periodically
// generates samples from fixed starting noise.
//
// The score model, optimizer, data loader and plotting are collaborators
// behind the interfaces below.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/se3diff/internal/diffusion"
	"github.com/born-ml/se3diff/internal/noise"
	"github.com/born-ml/se3diff/internal/se3"
	"github.com/born-ml/se3diff/internal/so3"
	"github.com/born-ml/se3diff/internal/tensor"
)

// Common errors.
var (
	ErrNilOptimizer = errors.New("optimizer is nil")
	ErrEmptyDataset = errors.New("dataset has no batches")
	ErrInvalidEpoch = errors.New("epochs must be positive")
)

// Optimizer updates the score model from a computed loss.
type Optimizer interface {
	// ZeroGrad clears accumulated gradients before a batch.
	ZeroGrad()
	// Step applies one update.
	Step(loss diffusion.Loss) error
}

// Dataset yields batches of (B, L, 4, 4) homogeneous poses. Evaluate calls
// Batch from several goroutines.
type Dataset interface {
	Len() int
	Batch(i int) (*tensor.Dense, error)
}

// SampleSink receives the trajectories generated during training.
type SampleSink interface {
	Consume(epoch int, s diffusion.Sample) error
}

// Config controls a training run.
type Config struct {
	Epochs int

	// SampleEvery generates a sample after every n-th epoch.
	// Zero means max(Epochs/5, 1).
	SampleEvery int

	// SampleBatch is the number of trajectories per generated sample.
	SampleBatch int

	// Workers bounds the concurrent batches of Evaluate. Zero means one.
	Workers int
}

// DefaultConfig returns ten epochs, one sampled trajectory every two epochs
// and four evaluation workers.
func DefaultConfig() Config {
	return Config{
		Epochs:      10,
		SampleBatch: 1,
		Workers:     4,
	}
}

// EpochStats are the losses of one pass over the data, averaged per batch.
type EpochStats struct {
	Epoch    int // 1-based
	Batches  int
	Loss     float64
	TransEps float64
	TransX0  float64
	RotEps   float64
	RotX0    float64
	Duration time.Duration
}

func (s *EpochStats) add(l diffusion.Loss) {
	s.Batches++
	s.Loss += l.Total
	s.TransEps += l.TransEps
	s.TransX0 += l.TransX0
	s.RotEps += l.RotEps
	s.RotX0 += l.RotX0
}

func (s *EpochStats) average() {
	if s.Batches == 0 {
		return
	}
	n := float64(s.Batches)
	s.Loss /= n
	s.TransEps /= n
	s.TransX0 /= n
	s.RotEps /= n
	s.RotX0 /= n
}

// LogValue implements slog.LogValuer.
func (s EpochStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("epoch", s.Epoch),
		slog.Int("batches", s.Batches),
		slog.Float64("loss", s.Loss),
		slog.Float64("trans_eps", s.TransEps),
		slog.Float64("trans_x0", s.TransX0),
		slog.Float64("rot_eps", s.RotEps),
		slog.Duration("duration", s.Duration),
	)
}

// Driver trains and evaluates one Diffuser.
type Driver struct {
	diffuser *diffusion.Diffuser
	cfg      Config
	sink     SampleSink
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger for epoch and sampling events.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// WithSink receives the samples generated during training.
func WithSink(s SampleSink) Option {
	return func(d *Driver) {
		d.sink = s
	}
}

// NewDriver creates a driver for d.
func NewDriver(d *diffusion.Diffuser, cfg Config, opts ...Option) *Driver {
	dr := &Driver{
		diffuser: d,
		cfg:      cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(dr)
	}
	return dr
}

// sampleEvery returns the epoch interval between generated samples.
func (dr *Driver) sampleEvery() int {
	if dr.cfg.SampleEvery > 0 {
		return dr.cfg.SampleEvery
	}
	return max(dr.cfg.Epochs/5, 1)
}

// timesteps draws one training timestep per batch element from [0, T-2].
// The last timestep is left out of training; with T = 1 every draw is 0.
func (dr *Driver) timesteps(src *noise.Source, batch int) []int {
	return src.Timesteps(batch, max(dr.diffuser.Timesteps()-1, 1))
}

// lossOf splits a pose batch and computes its loss.
func (dr *Driver) lossOf(poses *tensor.Dense, src *noise.Source) (diffusion.Loss, error) {
	rot, trans, err := se3.Split(poses)
	if err != nil {
		return diffusion.Loss{}, err
	}
	return dr.diffuser.Loss(trans, rot, dr.timesteps(src, poses.Dim(0)), src)
}

// Train runs cfg.Epochs passes over data and returns the per-epoch averages.
// Every sampleEvery epochs it generates cfg.SampleBatch trajectories from
// starting noise fixed before the first epoch, and passes them to the sink.
// The context is checked between batches.
func (dr *Driver) Train(ctx context.Context, data Dataset, opt Optimizer, src *noise.Source) ([]EpochStats, error) {
	if opt == nil {
		return nil, ErrNilOptimizer
	}
	if src == nil {
		return nil, fmt.Errorf("train: %w", diffusion.ErrNilSource)
	}
	if dr.cfg.Epochs <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidEpoch, dr.cfg.Epochs)
	}
	n := data.Len()
	if n == 0 {
		return nil, ErrEmptyDataset
	}

	// Fixed starting noise makes samples comparable across epochs.
	seqLen := dr.diffuser.Config().SeqLen
	sampleBatch := max(dr.cfg.SampleBatch, 1)
	initTrans := src.Normal(tensor.Shape{sampleBatch, seqLen, 3})
	initRot, err := so3.NewBatched(dr.diffuser.Config().Parallel).Exp(src.Normal(tensor.Shape{sampleBatch, seqLen, 3}))
	if err != nil {
		return nil, err
	}

	every := dr.sampleEvery()
	history := make([]EpochStats, 0, dr.cfg.Epochs)
	for epoch := 0; epoch < dr.cfg.Epochs; epoch++ {
		start := time.Now()
		stats := EpochStats{Epoch: epoch + 1}

		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			poses, err := data.Batch(i)
			if err != nil {
				return history, fmt.Errorf("epoch %d: batch %d: %w", epoch+1, i, err)
			}

			opt.ZeroGrad()
			l, err := dr.lossOf(poses, src)
			if err != nil {
				return history, fmt.Errorf("epoch %d: batch %d: %w", epoch+1, i, err)
			}
			if err := opt.Step(l); err != nil {
				return history, fmt.Errorf("epoch %d: optimizer step: %w", epoch+1, err)
			}
			stats.add(l)
			dr.logger.Debug("batch", "epoch", epoch+1, "batch", i, "loss", l.Total)
		}

		stats.average()
		stats.Duration = time.Since(start)
		history = append(history, stats)
		dr.logger.Info("epoch complete", "stats", stats)

		if (epoch+1)%every == 0 {
			s, err := dr.diffuser.Sample(ctx, diffusion.SampleShape{Batch: sampleBatch, SeqLen: seqLen}, src,
				diffusion.WithInitTrans(initTrans), diffusion.WithInitRot(initRot))
			if err != nil {
				return history, fmt.Errorf("epoch %d: sample: %w", epoch+1, err)
			}
			dr.logger.Info("generated sample", "epoch", epoch+1, "trajectories", sampleBatch, "poses", seqLen)
			if dr.sink != nil {
				if err := dr.sink.Consume(epoch+1, s); err != nil {
					return history, fmt.Errorf("epoch %d: sample sink: %w", epoch+1, err)
				}
			}
		}
	}
	return history, nil
}

// Evaluate computes the loss of every batch without updating anything and
// returns the averages. Batches run concurrently on up to cfg.Workers
// goroutines; batch i draws from src.Split(i), so the result does not depend
// on scheduling. The score model must be safe for concurrent use.
func (dr *Driver) Evaluate(ctx context.Context, data Dataset, src *noise.Source) (EpochStats, error) {
	if src == nil {
		return EpochStats{}, fmt.Errorf("evaluate: %w", diffusion.ErrNilSource)
	}
	n := data.Len()
	if n == 0 {
		return EpochStats{}, ErrEmptyDataset
	}
	start := time.Now()

	losses := make([]diffusion.Loss, n)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(dr.cfg.Workers, 1))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			poses, err := data.Batch(i)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			l, err := dr.lossOf(poses, src.Split(uint64(i)))
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			losses[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return EpochStats{}, err
	}

	var stats EpochStats
	for _, l := range losses {
		stats.add(l)
	}
	stats.average()
	stats.Duration = time.Since(start)
	dr.logger.Info("evaluation complete", "stats", stats)
	return stats, nil
}
