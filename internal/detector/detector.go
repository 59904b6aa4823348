// Package detector scores heart-rate readings with the trained scaler and
// forest and flags possible episodes. A Detector holds no session state:
// its artifacts are read-only after New, so Evaluate is safe to call from
// multiple goroutines.
package detector

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/artifact"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/notify"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
)

// Decision thresholds. Either one alone flags an episode.
const (
	ProbabilityThreshold = 0.6
	HeartRateThreshold   = 150.0
)

// Accepted input range in BPM (inclusive)
const (
	MinHeartRate = types.MinHeartRate
	MaxHeartRate = types.MaxHeartRate
)

// NotificationTitle is the title of every episode alert
const NotificationTitle = "Epilepsy Warning"

// Features the detector feeds the model
const NumFeatures = 1

// Config locates the trained artifacts
type Config struct {
	ModelPath  string
	ScalerPath string
}

// DefaultConfig returns the trainer's default output file names
func DefaultConfig() Config {
	return Config{ModelPath: "epilepsy_model.bin", ScalerPath: "scaler.bin"}
}

// Decision is the outcome of evaluating one reading
type Decision struct {
	Episode            bool    `json:"episode"`
	Probability        float64 `json:"probability"`
	HeartRate          float64 `json:"heart_rate"`
	ModelTriggered     bool    `json:"model_triggered"`
	ThresholdTriggered bool    `json:"threshold_triggered"`
}

// Detector flags possible episodes from single heart-rate readings
type Detector struct {
	scaler   *model.Scaler
	forest   *model.Forest
	notifier notify.Notifier
	metrics  *metrics.Metrics
}

// Option configures a Detector
type Option func(*Detector)

// WithMetrics counts evaluations and notification failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// New loads the scaler and forest. A missing file fails with
// *artifact.MissingError; an undecodable or mis-shaped one with
// *artifact.CorruptError.
func New(cfg Config, n notify.Notifier, opts ...Option) (*Detector, error) {
	scaler, err := artifact.LoadScaler(cfg.ScalerPath)
	if err != nil {
		return nil, err
	}
	if err := artifact.CheckFeatureCount(cfg.ScalerPath, scaler.NumFeatures(), NumFeatures); err != nil {
		return nil, err
	}

	forest, err := artifact.LoadForest(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	if err := artifact.CheckFeatureCount(cfg.ModelPath, forest.NumFeatures(), NumFeatures); err != nil {
		return nil, err
	}
	if err := artifact.CheckPair(cfg.ModelPath, scaler, forest); err != nil {
		return nil, err
	}

	d, err := NewFromModels(scaler, forest, n, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("Detector", "Loaded %s (%d trees) and %s", cfg.ModelPath, len(forest.Trees), cfg.ScalerPath)
	return d, nil
}

// NewFromModels builds a detector from in-memory artifacts
func NewFromModels(scaler *model.Scaler, forest *model.Forest, n notify.Notifier, opts ...Option) (*Detector, error) {
	if scaler.NumFeatures() != NumFeatures || forest.NumFeatures() != NumFeatures {
		return nil, fmt.Errorf("%w: scaler has %d features, forest %d, expected %d",
			artifact.ErrShapeMismatch, scaler.NumFeatures(), forest.NumFeatures(), NumFeatures)
	}
	if n == nil {
		n = notify.Nop{}
	}
	d := &Detector{scaler: scaler, forest: forest, notifier: n}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Validate reports whether heartRate is acceptable input
func Validate(heartRate float64) error {
	if math.IsNaN(heartRate) || math.IsInf(heartRate, 0) || heartRate < MinHeartRate || heartRate > MaxHeartRate {
		return &InvalidInputError{HeartRate: heartRate}
	}
	return nil
}

// Probability returns the model's positive-class probability without
// applying the decision rule or notifying
func (d *Detector) Probability(heartRate float64) (float64, error) {
	if err := Validate(heartRate); err != nil {
		return 0, err
	}
	x := d.scaler.TransformRow([]float64{heartRate})
	return d.forest.PredictProba(x), nil
}

// Evaluate decides whether heartRate indicates a possible episode:
// probability > ProbabilityThreshold or heartRate > HeartRateThreshold.
// A positive decision sends a notification; delivery failures are
// logged and never returned.
func (d *Detector) Evaluate(heartRate float64) (Decision, error) {
	start := time.Now()
	p, err := d.Probability(heartRate)
	if err != nil {
		return Decision{HeartRate: heartRate}, err
	}

	dec := Decision{
		Probability:        p,
		HeartRate:          heartRate,
		ModelTriggered:     p > ProbabilityThreshold,
		ThresholdTriggered: heartRate > HeartRateThreshold,
	}
	dec.Episode = dec.ModelTriggered || dec.ThresholdTriggered

	if d.metrics != nil {
		d.metrics.Evaluations.Add(1)
		d.metrics.ObserveEvaluation(time.Since(start))
	}

	if dec.Episode {
		if err := d.notifier.Notify(NotificationTitle, Message(heartRate)); err != nil {
			logger.Warn("Detector", "Notification failed: %v", err)
			if d.metrics != nil {
				d.metrics.NotifyFailures.Add(1)
			}
		}
	}
	return dec, nil
}

// Message formats the alert body with the exact heart rate
func Message(heartRate float64) string {
	bpm := strconv.FormatFloat(heartRate, 'f', -1, 64)
	return "Abnormal heart rate detected: " + bpm + " BPM\nPossible episode incoming!"
}
