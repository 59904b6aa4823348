package main

import (
	"errors"
	"fmt"
	"os"

	arg "github.com/alexflint/go-arg"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/dataset"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/trainer"
)

type options struct {
	Dataset      string  `arg:"--dataset" help:"heart-disease CSV to train on"`
	Output       string  `arg:"--output" help:"directory the scaler and model are written to"`
	Seed         int64   `arg:"--seed" help:"train/test split seed"`
	ForestSeed   int64   `arg:"--forest-seed" help:"bootstrap and feature sampling seed"`
	Trees        int     `arg:"--trees" help:"number of trees"`
	MaxDepth     int     `arg:"--max-depth" help:"maximum tree depth"`
	TestFraction float64 `arg:"--test-fraction" help:"share of rows held out for evaluation"`
	Synthesize   int     `arg:"--synthesize" help:"write this many synthetic rows to --dataset before training"`
	LogLevel     string  `arg:"--log-level" help:"debug, info, warn, error or silent"`

	level logger.LogLevel
}

func defaultOptions(cfg trainer.Config) options {
	return options{
		Dataset:      cfg.DatasetPath,
		Output:       cfg.OutputDir,
		Seed:         cfg.Seed,
		ForestSeed:   cfg.Forest.Seed,
		Trees:        cfg.Forest.NEstimators,
		MaxDepth:     cfg.Forest.MaxDepth,
		TestFraction: cfg.TestFraction,
		LogLevel:     "info",
	}
}

// parseOptions parses argv over the defaults. An unknown log level is an
// error, as it is for the monitor.
func parseOptions(p *arg.Parser, opts *options, argv []string) error {
	if err := p.Parse(argv); err != nil {
		return err
	}
	level, err := logger.ParseLevel(opts.LogLevel)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	opts.level = level
	return nil
}

// apply copies the options onto a training config
func (o options) apply(cfg trainer.Config) trainer.Config {
	cfg.DatasetPath = o.Dataset
	cfg.OutputDir = o.Output
	cfg.Seed = o.Seed
	cfg.Forest.Seed = o.ForestSeed
	cfg.Forest.NEstimators = o.Trees
	cfg.Forest.MaxDepth = o.MaxDepth
	cfg.TestFraction = o.TestFraction
	return cfg
}

func main() {
	cfg := trainer.DefaultConfig()
	opts := defaultOptions(cfg)
	p, err := arg.NewParser(arg.Config{Program: "trainer"}, &opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := parseOptions(p, &opts, os.Args[1:]); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			p.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		p.Fail(err.Error())
	}

	logger.Init(opts.level, os.Stderr, true)
	defer logger.Sync()

	cfg = opts.apply(cfg)

	if opts.Synthesize > 0 {
		synth := dataset.DefaultSynthConfig(opts.Synthesize)
		synth.Seed = opts.Seed
		if err := dataset.WriteCSVFile(cfg.DatasetPath, dataset.Synthesize(synth)); err != nil {
			logger.Error("Trainer", "Failed to write synthetic dataset: %v", err)
			os.Exit(1)
		}
		logger.Info("Trainer", "Wrote %d synthetic rows to %s", opts.Synthesize, cfg.DatasetPath)
	}

	res, err := trainer.Train(cfg)
	if err != nil {
		var loadErr *trainer.DataLoadError
		if errors.As(err, &loadErr) {
			logger.Error("Trainer", "Cannot read dataset: %v", err)
		} else {
			logger.Error("Trainer", "Training failed: %v", err)
		}
		logger.Sync()
		os.Exit(1)
	}

	if err := trainer.WriteReport(os.Stdout, res.Report); err != nil {
		logger.Error("Trainer", "Failed to write report: %v", err)
		os.Exit(1)
	}
	logger.Info("Trainer", "Model ready: %s, %s", cfg.ScalerPath(), cfg.ModelPath())
}
