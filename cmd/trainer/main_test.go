package main

import (
	"testing"

	arg "github.com/alexflint/go-arg"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, argv ...string) (options, error) {
	t.Helper()
	opts := defaultOptions(trainer.DefaultConfig())
	p, err := arg.NewParser(arg.Config{Program: "trainer"}, &opts)
	require.NoError(t, err)
	err = parseOptions(p, &opts, argv)
	return opts, err
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := parse(t)
	require.NoError(t, err)
	assert.Equal(t, logger.INFO, opts.level)

	cfg := opts.apply(trainer.DefaultConfig())
	assert.Equal(t, trainer.DefaultConfig(), cfg)
}

func TestParseOptionsOverrides(t *testing.T) {
	opts, err := parse(t, "--dataset", "d.csv", "--trees", "7", "--test-fraction", "0.3", "--log-level", "debug")
	require.NoError(t, err)
	assert.Equal(t, logger.DEBUG, opts.level)

	cfg := opts.apply(trainer.DefaultConfig())
	assert.Equal(t, "d.csv", cfg.DatasetPath)
	assert.Equal(t, 7, cfg.Forest.NEstimators)
	assert.Equal(t, 0.3, cfg.TestFraction)
}

func TestParseOptionsRejectsUnknownLogLevel(t *testing.T) {
	_, err := parse(t, "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--log-level")
}
