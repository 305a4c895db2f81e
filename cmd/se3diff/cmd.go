package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/se3diff/internal/diffusion"
	"github.com/born-ml/se3diff/internal/envconfig"
	"github.com/born-ml/se3diff/internal/noise"
)

const version = "v0.1.0"

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the root command with every subcommand attached.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "se3diff",
		Short:         "Manifold-aware diffusion over SE(3) pose trajectories",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(newLogger(cmd.ErrOrStderr()))
			slog.Debug("se3diff config", "env", envconfig.Values())
		},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.Int("timesteps", int(envconfig.Timesteps()), "Number of diffusion steps")
	flags.Int("seq-len", int(envconfig.SeqLen()), "Poses per trajectory")
	flags.Float64("beta-start", envconfig.BetaStart(), "First rotational beta")
	flags.Float64("beta-end", envconfig.BetaEnd(), "Last rotational beta")
	flags.Float64("trans-scale", envconfig.TransScale(), "Translation scale factor")
	flags.Int64("seed", envconfig.Seed(), "Seed of the random source (negative picks one)")
	flags.String("layout", envconfig.Layout(), "Score model layout (feature or sequence)")

	scheduleCmd := newScheduleCmd()
	sampleCmd := newSampleCmd()
	evalCmd := newEvalCmd()
	inspectCmd := newInspectCmd()

	envVars := envconfig.AsMap()
	common := []envconfig.EnvVar{
		envVars["SE3DIFF_DEBUG"],
		envVars["SE3DIFF_TIMESTEPS"],
		envVars["SE3DIFF_BETA_START"],
		envVars["SE3DIFF_BETA_END"],
	}
	appendEnvDocs(scheduleCmd, common)
	appendEnvDocs(sampleCmd, append(common,
		envVars["SE3DIFF_SEQ_LEN"],
		envVars["SE3DIFF_TRANS_SCALE"],
		envVars["SE3DIFF_SEED"],
		envVars["SE3DIFF_LAYOUT"],
	))
	appendEnvDocs(evalCmd, append(common,
		envVars["SE3DIFF_SEQ_LEN"],
		envVars["SE3DIFF_TRANS_SCALE"],
		envVars["SE3DIFF_SEED"],
		envVars["SE3DIFF_WORKERS"],
	))

	rootCmd.AddCommand(
		scheduleCmd,
		sampleCmd,
		evalCmd,
		inspectCmd,
		newVersionCmd(),
	)

	return rootCmd
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: envconfig.LogLevel()}))
}

// diffusionConfig assembles a diffusion config from the persistent flags.
func diffusionConfig(cmd *cobra.Command) (diffusion.Config, error) {
	cfg := diffusion.DefaultConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Timesteps, err = flags.GetInt("timesteps"); err != nil {
		return cfg, err
	}
	if cfg.SeqLen, err = flags.GetInt("seq-len"); err != nil {
		return cfg, err
	}
	if cfg.BetaStart, err = flags.GetFloat64("beta-start"); err != nil {
		return cfg, err
	}
	if cfg.BetaEnd, err = flags.GetFloat64("beta-end"); err != nil {
		return cfg, err
	}
	if cfg.TransScale, err = flags.GetFloat64("trans-scale"); err != nil {
		return cfg, err
	}
	layout, err := flags.GetString("layout")
	if err != nil {
		return cfg, err
	}
	if cfg.Layout, err = diffusion.ParseLayout(layout); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func source(cmd *cobra.Command) (*noise.Source, error) {
	seed, err := cmd.Flags().GetInt64("seed")
	if err != nil {
		return nil, err
	}
	return noise.New(seed), nil
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "se3diff version %s\n", version)
		},
	}
}
