// Package trainer fits the standardization scaler and random forest used
// by the detector, evaluates them on a held-out split and persists both
// artifacts.
package trainer

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/artifact"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/dataset"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
	"github.com/google/uuid"
)

// Default artifact file names
const (
	DefaultScalerFile = "scaler.bin"
	DefaultModelFile  = "epilepsy_model.bin"
)

// Config holds training configuration
type Config struct {
	DatasetPath  string
	Columns      dataset.Columns
	TestFraction float64
	Seed         int64 // Split seed; the forest carries its own
	Forest       model.ForestParams
	OutputDir    string
	ScalerFile   string
	ModelFile    string
}

// DefaultConfig returns the reference setup: thalach predicting target,
// an 80/20 split seeded with 42 and the default forest.
func DefaultConfig() Config {
	return Config{
		DatasetPath:  "heart.csv",
		Columns:      dataset.DefaultColumns(),
		TestFraction: 0.2,
		Seed:         42,
		Forest:       model.DefaultForestParams(),
		OutputDir:    ".",
		ScalerFile:   DefaultScalerFile,
		ModelFile:    DefaultModelFile,
	}
}

// ScalerPath returns where the scaler artifact is written
func (c Config) ScalerPath() string {
	return filepath.Join(c.OutputDir, c.ScalerFile)
}

// ModelPath returns where the classifier artifact is written
func (c Config) ModelPath() string {
	return filepath.Join(c.OutputDir, c.ModelFile)
}

// Result is the outcome of a successful training run
type Result struct {
	Scaler *model.Scaler
	Forest *model.Forest
	Report Report
}

// Train loads the dataset, splits it, fits the scaler on the training
// partition only, fits the forest, evaluates it on the test partition
// and writes both artifacts.
func Train(cfg Config) (*Result, error) {
	ds, err := dataset.Load(cfg.DatasetPath, cfg.Columns)
	if err != nil {
		return nil, &DataLoadError{Path: cfg.DatasetPath, Err: err}
	}
	logger.Info("Trainer", "Loaded %s: %d rows, %d columns", cfg.DatasetPath, ds.Len(), len(ds.Header))

	res, err := Fit(ds, cfg)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	res.Scaler.TrainingID = id
	res.Forest.TrainingID = id

	files := []artifact.File{
		{Path: cfg.ScalerPath(), Data: artifact.EncodeScaler(res.Scaler)},
		{Path: cfg.ModelPath(), Data: artifact.EncodeForest(res.Forest)},
	}
	if err := artifact.WriteFiles(files...); err != nil {
		return nil, &PersistenceError{Dir: cfg.OutputDir, Err: err}
	}
	logger.Info("Trainer", "Saved %s and %s (training %s)", cfg.ScalerPath(), cfg.ModelPath(), id)

	return res, nil
}

// Fit trains and evaluates on an already loaded dataset without touching disk
func Fit(ds *dataset.Dataset, cfg Config) (*Result, error) {
	rows, cols := ds.Shape()
	report := Report{
		Rows:             rows,
		Columns:          cols,
		AvailableColumns: append([]string(nil), ds.Header...),
		Features:         append([]string(nil), ds.Features...),
		Label:            ds.Label,
	}

	stats, err := ds.DescribeAll()
	if err != nil {
		return nil, fmt.Errorf("describe features: %w", err)
	}
	report.FeatureStats = stats

	trainIdx, testIdx, err := model.TrainTestSplit(ds.Len(), cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := model.Take(ds.X, ds.Y, trainIdx)
	xTest, yTest := model.Take(ds.X, ds.Y, testIdx)
	report.TrainSize, report.TestSize = len(yTrain), len(yTest)

	scaler, err := model.FitScaler(xTrain, ds.Features)
	if err != nil {
		return nil, err
	}
	xTrain = scaler.Transform(xTrain)
	xTest = scaler.Transform(xTest)

	forest, err := model.FitForest(xTrain, yTrain, ds.Features, cfg.Forest)
	if err != nil {
		return nil, err
	}

	report.Metrics = model.Classify(yTest, forest.PredictAll(xTest))
	for j, name := range forest.FeatureNames {
		report.Importances = append(report.Importances, FeatureImportance{Feature: name, Importance: forest.Importances[j]})
	}
	sort.SliceStable(report.Importances, func(a, b int) bool {
		return report.Importances[a].Importance > report.Importances[b].Importance
	})

	logger.Info("Trainer", "Trained %d trees on %d rows, test accuracy %.3f over %d rows",
		len(forest.Trees), report.TrainSize, report.Metrics.Accuracy, report.TestSize)

	return &Result{Scaler: scaler, Forest: forest, Report: report}, nil
}
