// Package envconfig reads the SE3DIFF_* environment variables. Every getter
// re-reads the environment, falls back to its default on an empty value and
// warns through slog when a value does not parse.
package envconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var returns the environment variable key with surrounding spaces and
// quotes removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel reads SE3DIFF_DEBUG: unset or false is INFO, 1/true is DEBUG and
// larger integers go further below DEBUG in steps of 4.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("SE3DIFF_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}
	return level
}

// String returns a getter for a string with a default.
func String(key, defaultValue string) func() string {
	return func() string {
		if s := Var(key); s != "" {
			return s
		}
		return defaultValue
	}
}

// Uint returns a getter for a non-negative integer with a default.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Int64 returns a getter for a signed integer with a default.
func Int64(key string, defaultValue int64) func() int64 {
	return func() int64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseInt(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// Float returns a getter for a float with a default.
func Float(key string, defaultValue float64) func() float64 {
	return func() float64 {
		if s := Var(key); s != "" {
			if f, err := strconv.ParseFloat(s, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return f
			}
		}
		return defaultValue
	}
}

var (
	// Timesteps is the number of diffusion steps T.
	Timesteps = Uint("SE3DIFF_TIMESTEPS", 30)
	// SeqLen is the number of poses per trajectory.
	SeqLen = Uint("SE3DIFF_SEQ_LEN", 128)
	// BetaStart is the first rotational beta.
	BetaStart = Float("SE3DIFF_BETA_START", 0.1)
	// BetaEnd is the last rotational beta.
	BetaEnd = Float("SE3DIFF_BETA_END", 1.0)
	// TransScale multiplies translations before diffusion.
	TransScale = Float("SE3DIFF_TRANS_SCALE", 1.0)
	// Seed seeds the random source of the CLI.
	Seed = Int64("SE3DIFF_SEED", 0)
	// Workers bounds parallel batch evaluation.
	Workers = Uint("SE3DIFF_WORKERS", 4)
	// Layout selects the score model tensor layout: feature or sequence.
	Layout = String("SE3DIFF_LAYOUT", "feature")
)

// EnvVar describes one environment variable.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns every variable with its current value and description.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"SE3DIFF_DEBUG":       {"SE3DIFF_DEBUG", LogLevel(), "Show additional debug information (e.g. SE3DIFF_DEBUG=1)"},
		"SE3DIFF_TIMESTEPS":   {"SE3DIFF_TIMESTEPS", Timesteps(), "Number of diffusion steps (default 30)"},
		"SE3DIFF_SEQ_LEN":     {"SE3DIFF_SEQ_LEN", SeqLen(), "Poses per trajectory (default 128)"},
		"SE3DIFF_BETA_START":  {"SE3DIFF_BETA_START", BetaStart(), "First rotational beta (default 0.1)"},
		"SE3DIFF_BETA_END":    {"SE3DIFF_BETA_END", BetaEnd(), "Last rotational beta (default 1.0)"},
		"SE3DIFF_TRANS_SCALE": {"SE3DIFF_TRANS_SCALE", TransScale(), "Translation scale factor (default 1.0)"},
		"SE3DIFF_SEED":        {"SE3DIFF_SEED", Seed(), "Seed of the random source (default 0)"},
		"SE3DIFF_WORKERS":     {"SE3DIFF_WORKERS", Workers(), "Concurrent batches during evaluation (default 4)"},
		"SE3DIFF_LAYOUT":      {"SE3DIFF_LAYOUT", Layout(), "Score model layout: feature or sequence (default feature)"},
	}
}

// Values returns every variable formatted as a string.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
