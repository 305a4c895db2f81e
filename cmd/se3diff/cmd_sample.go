package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/se3diff/internal/diffusion"
	"github.com/born-ml/se3diff/internal/poseio"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Run the reverse sampler with the baseline model and save the poses",
		Args:  cobra.NoArgs,
		RunE:  SampleHandler,
	}
	cmd.Flags().IntP("batch", "b", 1, "Number of trajectories to sample")
	cmd.Flags().Int("steps", 0, "Reverse steps to run (0 runs all timesteps)")
	cmd.Flags().Bool("uniform-init", false, "Draw initial rotations from uniform axis-angle vectors")
	cmd.Flags().StringP("output", "o", "sample.safetensors", "Output file")
	return cmd
}

// SampleHandler samples trajectories with the zero-noise baseline and writes
// them to a safetensors file.
func SampleHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := diffusionConfig(cmd)
	if err != nil {
		return err
	}
	src, err := source(cmd)
	if err != nil {
		return err
	}
	batch, _ := cmd.Flags().GetInt("batch")
	steps, _ := cmd.Flags().GetInt("steps")
	uniform, _ := cmd.Flags().GetBool("uniform-init")
	output, _ := cmd.Flags().GetString("output")

	d, err := diffusion.New(cfg, diffusion.ZeroModel{})
	if err != nil {
		return err
	}

	opts := []diffusion.SampleOption{
		diffusion.WithObserver(func(s diffusion.Step) {
			slog.Debug("reverse step", "t", s.T, "near_pi", s.NearPi)
		}),
	}
	if steps > 0 {
		opts = append(opts, diffusion.WithSteps(steps))
	}
	if uniform {
		opts = append(opts, diffusion.WithUniformAxisAngleInit())
	}

	s, err := d.Sample(cmd.Context(), diffusion.SampleShape{Batch: batch}, src, opts...)
	if err != nil {
		return err
	}

	meta := map[string]string{
		"timesteps":   strconv.Itoa(cfg.Timesteps),
		"beta_start":  strconv.FormatFloat(cfg.BetaStart, 'g', -1, 64),
		"beta_end":    strconv.FormatFloat(cfg.BetaEnd, 'g', -1, 64),
		"trans_scale": strconv.FormatFloat(cfg.TransScale, 'g', -1, 64),
		"seed":        strconv.FormatUint(src.Seed(), 10),
		"layout":      cfg.Layout.String(),
		"model":       "zero",
	}
	if err := poseio.WriteSample(output, s, meta); err != nil {
		return err
	}
	slog.Info("generated sample", "batch", batch, "seq_len", cfg.SeqLen, "path", output)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d trajectories of %d poses to %s\n", batch, cfg.SeqLen, output)
	return nil
}
