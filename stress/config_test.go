package stress

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func newTestFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("avlstress", pflag.ContinueOnError)
	RegisterFlags(flags)
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", newTestFlags())
	require.NoError(t, err)
	require.Equal(t, int64(defaultIterations), cfg.Iterations)
	require.Equal(t, defaultMaxNodes, cfg.MaxNodes)
	require.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	require.True(t, cfg.Verify)
	require.Equal(t, int64(defaultProgressEvery), cfg.ProgressEvery)
	require.NotZero(t, cfg.Seed)
	require.Empty(t, cfg.ReportDB)
	require.Equal(t, "none", cfg.Metrics.Exporter)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_Sources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xavl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
iterations: 10
max_nodes: 20
seed: 7
metrics:
  exporter: console
  interval: 1s
logging:
  format: text
`), 0o600))
	t.Setenv("XAVL_MAX_NODES", "30")
	t.Setenv("XAVL_LOGGING_LEVEL", "debug")

	flags := newTestFlags()
	require.NoError(t, flags.Set("iterations", "99"))
	require.NoError(t, flags.Set("verify", "false"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	// Flag over env over file.
	require.Equal(t, int64(99), cfg.Iterations)
	require.Equal(t, 30, cfg.MaxNodes)
	require.Equal(t, int64(7), cfg.Seed)
	require.False(t, cfg.Verify)
	require.Equal(t, "console", cfg.Metrics.Exporter)
	require.Equal(t, "1s", cfg.Metrics.Interval.String())
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	testcases := []struct {
		name string
		flag string
		val  string
		err  error
	}{
		{"iterations", "iterations", "0", ErrInvalidIterations},
		{"max nodes", "max-nodes", "-1", ErrInvalidMaxNodes},
		{"workers", "workers", "0", ErrInvalidWorkers},
		{"progress", "progress-every", "-2", ErrInvalidProgress},
		{"exporter", "metrics-exporter", "statsd", nil},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			flags := newTestFlags()
			require.NoError(tt, flags.Set(tc.flag, tc.val))
			_, err := LoadConfig("", flags)
			require.Error(tt, err)
			if tc.err != nil {
				require.ErrorIs(tt, err, tc.err)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iterations: [1"), 0o600))
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
}
