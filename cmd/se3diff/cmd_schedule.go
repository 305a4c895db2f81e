package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/se3diff/internal/schedule"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Print the translation and rotation noise schedules",
		Args:  cobra.NoArgs,
		RunE:  ScheduleHandler,
	}
}

// ScheduleHandler prints one row per timestep of both schedules.
func ScheduleHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := diffusionConfig(cmd)
	if err != nil {
		return err
	}
	s, err := schedule.New(schedule.Config{
		Timesteps: cfg.Timesteps,
		BetaStart: cfg.BetaStart,
		BetaEnd:   cfg.BetaEnd,
	})
	if err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }
	var data [][]string
	for _, r := range s.Table() {
		data = append(data, []string{
			strconv.Itoa(r.T),
			f(r.AlphaBar), f(r.Sigma), f(r.QParam1), f(r.QParam2),
			f(r.Beta), f(r.RotAlphaBar), f(r.RotSignal), f(r.RotNoise),
		})
	}

	table := newTable(cmd.OutOrStdout())
	table.SetHeader([]string{"T", "ALPHABAR", "SIGMA", "SIGNAL", "NOISE", "BETA", "ROTALPHABAR", "ROTSIGNAL", "ROTNOISE"})
	table.AppendBulk(data)
	table.Render()
	return nil
}
