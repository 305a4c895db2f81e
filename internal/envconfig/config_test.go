package envconfig

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestVar(t *testing.T) {
	t.Setenv("SE3DIFF_LAYOUT", `  "sequence" `)
	assert.Equal(t, "sequence", Var("SE3DIFF_LAYOUT"))
	assert.Equal(t, "sequence", Layout())

	t.Setenv("SE3DIFF_LAYOUT", "")
	assert.Equal(t, "feature", Layout())
}

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     slog.Level(-8),
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("SE3DIFF_DEBUG", k)
			assert.Equal(t, v, LogLevel())
		})
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T)
	}{
		{"defaults", nil, func(t *testing.T) {
			assert.Equal(t, uint(30), Timesteps())
			assert.Equal(t, uint(128), SeqLen())
			assert.Equal(t, 0.1, BetaStart())
			assert.Equal(t, 1.0, BetaEnd())
			assert.Equal(t, int64(0), Seed())
		}},
		{"set", map[string]string{
			"SE3DIFF_TIMESTEPS":   "50",
			"SE3DIFF_TRANS_SCALE": "2.5",
			"SE3DIFF_SEED":        "-7",
			"SE3DIFF_WORKERS":     "1",
		}, func(t *testing.T) {
			assert.Equal(t, uint(50), Timesteps())
			assert.Equal(t, 2.5, TransScale())
			assert.Equal(t, int64(-7), Seed())
			assert.Equal(t, uint(1), Workers())
		}},
		{"invalid falls back", map[string]string{
			"SE3DIFF_TIMESTEPS":  "-3",
			"SE3DIFF_BETA_START": "small",
			"SE3DIFF_SEED":       "1.5",
		}, func(t *testing.T) {
			assert.Equal(t, uint(30), Timesteps())
			assert.Equal(t, 0.1, BetaStart())
			assert.Equal(t, int64(0), Seed())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"SE3DIFF_TIMESTEPS", "SE3DIFF_SEQ_LEN", "SE3DIFF_BETA_START",
				"SE3DIFF_BETA_END", "SE3DIFF_TRANS_SCALE", "SE3DIFF_SEED", "SE3DIFF_WORKERS"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.check(t)
		})
	}
}

func TestValues(t *testing.T) {
	for k := range AsMap() {
		t.Setenv(k, "")
	}
	t.Setenv("SE3DIFF_SEQ_LEN", "16")

	want := map[string]string{
		"SE3DIFF_DEBUG":       "INFO",
		"SE3DIFF_TIMESTEPS":   "30",
		"SE3DIFF_SEQ_LEN":     "16",
		"SE3DIFF_BETA_START":  "0.1",
		"SE3DIFF_BETA_END":    "1",
		"SE3DIFF_TRANS_SCALE": "1",
		"SE3DIFF_SEED":        "0",
		"SE3DIFF_WORKERS":     "4",
		"SE3DIFF_LAYOUT":      "feature",
	}
	if diff := cmp.Diff(want, Values()); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
	for k, v := range AsMap() {
		assert.Equal(t, k, v.Name)
		assert.NotEmpty(t, v.Description)
	}
}
