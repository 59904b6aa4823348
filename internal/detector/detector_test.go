package detector

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/artifact"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/dataset"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/model"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	titles   []string
	messages []string
	err      error
}

func (r *recorder) Notify(title, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// constantDetector returns a detector whose model always outputs p
func constantDetector(t *testing.T, p float64, n *recorder, opts ...Option) *Detector {
	t.Helper()
	scaler := &model.Scaler{Mean: []float64{146}, Scale: []float64{27}, NSamples: 10, FeatureNames: []string{"thalach"}}
	forest := &model.Forest{
		Trees:        []model.DecisionTree{{Outputs: []float64{p}, FeatureSize: 1}},
		FeatureNames: []string{"thalach"},
		Importances:  []float64{1},
		Params:       model.DefaultForestParams(),
	}
	d, err := NewFromModels(scaler, forest, n, opts...)
	require.NoError(t, err)
	return d
}

func TestHeartRateAboveThresholdAlwaysFlags(t *testing.T) {
	for _, p := range []float64{0, 0.3, 0.6, 1} {
		n := &recorder{}
		d := constantDetector(t, p, n)

		dec, err := d.Evaluate(151)
		require.NoError(t, err)
		assert.True(t, dec.Episode, "p=%v", p)
		assert.True(t, dec.ThresholdTriggered)
		assert.Equal(t, 1, n.count())
	}
}

func TestBoundaryAt150FollowsProbability(t *testing.T) {
	cases := []struct {
		p       float64
		episode bool
	}{
		{0.3, false},
		{0.6, false}, // strict comparison
		{0.61, true},
		{0.9, true},
	}
	for _, tc := range cases {
		d := constantDetector(t, tc.p, &recorder{})
		dec, err := d.Evaluate(150)
		require.NoError(t, err)
		assert.Equal(t, tc.episode, dec.Episode, "p=%v", tc.p)
		assert.False(t, dec.ThresholdTriggered)
		assert.Equal(t, tc.p > ProbabilityThreshold, dec.ModelTriggered)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	d := constantDetector(t, 0.42, &recorder{})
	a, err := d.Evaluate(133)
	require.NoError(t, err)
	b, err := d.Evaluate(133)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestInvalidInput(t *testing.T) {
	n := &recorder{}
	m := metrics.New()
	d := constantDetector(t, 0.9, n, WithMetrics(m))

	for _, hr := range []float64{-5, 1000, math.NaN(), math.Inf(1), math.Inf(-1), 300.01} {
		_, err := d.Evaluate(hr)
		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid), "hr=%v", hr)
	}
	assert.Zero(t, n.count())
	assert.Zero(t, m.Evaluations.Load(), "no model computation for rejected input")

	for _, hr := range []float64{0, 300} {
		_, err := d.Evaluate(hr)
		assert.NoError(t, err, "hr=%v", hr)
	}
}

func TestNotificationContent(t *testing.T) {
	n := &recorder{}
	d := constantDetector(t, 0, n)

	_, err := d.Evaluate(172.25)
	require.NoError(t, err)
	require.Equal(t, 1, n.count())
	assert.Equal(t, "Epilepsy Warning", n.titles[0])
	assert.Equal(t, "Abnormal heart rate detected: 172.25 BPM\nPossible episode incoming!", n.messages[0])

	_, err = d.Evaluate(90)
	require.NoError(t, err)
	assert.Equal(t, 1, n.count(), "no alert without an episode")

	assert.Equal(t, "Abnormal heart rate detected: 151 BPM\nPossible episode incoming!", Message(151))
}

func TestNotificationFailureIsAbsorbed(t *testing.T) {
	n := &recorder{err: errors.New("no notification daemon")}
	m := metrics.New()
	d := constantDetector(t, 0, n, WithMetrics(m))

	dec, err := d.Evaluate(180)
	require.NoError(t, err)
	assert.True(t, dec.Episode)
	assert.Equal(t, uint64(1), m.NotifyFailures.Load())
}

func TestConcurrentEvaluate(t *testing.T) {
	d := constantDetector(t, 0.5, &recorder{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(hr float64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				dec, err := d.Evaluate(hr)
				assert.NoError(t, err)
				assert.Equal(t, hr > 150, dec.Episode)
			}
		}(float64(100 + i*10))
	}
	wg.Wait()
}

func TestNewMissingArtifacts(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Config{ModelPath: filepath.Join(dir, "epilepsy_model.bin"), ScalerPath: filepath.Join(dir, "scaler.bin")}, nil)

	var missing *artifact.MissingError
	require.True(t, errors.As(err, &missing))
}

func TestNewCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{ModelPath: filepath.Join(dir, "epilepsy_model.bin"), ScalerPath: filepath.Join(dir, "scaler.bin")}
	require.NoError(t, artifact.SaveScaler(cfg.ScalerPath, &model.Scaler{
		Mean: []float64{146}, Scale: []float64{27}, NSamples: 3, FeatureNames: []string{"thalach"},
	}))
	require.NoError(t, os.WriteFile(cfg.ModelPath, []byte("pickle"), 0o644))

	_, err := New(cfg, nil)
	var corrupt *artifact.CorruptError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, cfg.ModelPath, corrupt.Path)
}

func TestNewRejectsWrongFeatureCount(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{ModelPath: filepath.Join(dir, "epilepsy_model.bin"), ScalerPath: filepath.Join(dir, "scaler.bin")}
	require.NoError(t, artifact.SaveScaler(cfg.ScalerPath, &model.Scaler{
		Mean: []float64{146, 54}, Scale: []float64{27, 9}, NSamples: 3, FeatureNames: []string{"thalach", "age"},
	}))

	_, err := New(cfg, nil)
	var corrupt *artifact.CorruptError
	require.True(t, errors.As(err, &corrupt))
	assert.ErrorIs(t, err, artifact.ErrShapeMismatch)
}

func TestEndToEndSyntheticDataset(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "heart.csv")
	require.NoError(t, dataset.WriteCSVFile(csvPath, dataset.Synthesize(dataset.DefaultSynthConfig(200))))

	tcfg := trainer.DefaultConfig()
	tcfg.DatasetPath = csvPath
	tcfg.OutputDir = dir
	_, err := trainer.Train(tcfg)
	require.NoError(t, err)

	n := &recorder{}
	d, err := New(Config{ModelPath: tcfg.ModelPath(), ScalerPath: tcfg.ScalerPath()}, n)
	require.NoError(t, err)

	high, err := d.Evaluate(170)
	require.NoError(t, err)
	assert.True(t, high.Episode)
	assert.True(t, high.ModelTriggered)

	low, err := d.Evaluate(120)
	require.NoError(t, err)
	assert.False(t, low.Episode)
	assert.Less(t, low.Probability, ProbabilityThreshold)

	assert.Equal(t, 1, n.count())
}

func saveModels(t *testing.T, scaler *model.Scaler, forest *model.Forest) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{ModelPath: filepath.Join(dir, "epilepsy_model.bin"), ScalerPath: filepath.Join(dir, "scaler.bin")}
	require.NoError(t, artifact.SaveScaler(cfg.ScalerPath, scaler))
	require.NoError(t, artifact.SaveForest(cfg.ModelPath, forest))
	return cfg
}

func TestNewRejectsNaNLeaf(t *testing.T) {
	scaler := &model.Scaler{Mean: []float64{146}, Scale: []float64{27}, NSamples: 10, FeatureNames: []string{"thalach"}}
	forest := &model.Forest{
		Trees:        []model.DecisionTree{{Outputs: []float64{math.NaN()}, FeatureSize: 1}},
		FeatureNames: []string{"thalach"},
		Importances:  []float64{1},
		Params:       model.DefaultForestParams(),
	}
	cfg := saveModels(t, scaler, forest)

	d, err := New(cfg, nil)
	assert.Nil(t, d)
	var corrupt *artifact.CorruptError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, cfg.ModelPath, corrupt.Path)
}

func TestNewRejectsMismatchedPair(t *testing.T) {
	scaler := &model.Scaler{Mean: []float64{146}, Scale: []float64{27}, NSamples: 10, FeatureNames: []string{"thalach"}, TrainingID: "run-b"}
	forest := &model.Forest{
		Trees:        []model.DecisionTree{{Outputs: []float64{0.2}, FeatureSize: 1}},
		FeatureNames: []string{"thalach"},
		Importances:  []float64{1},
		Params:       model.DefaultForestParams(),
		TrainingID:   "run-a",
	}
	cfg := saveModels(t, scaler, forest)

	_, err := New(cfg, nil)
	var corrupt *artifact.CorruptError
	require.True(t, errors.As(err, &corrupt))
	assert.ErrorIs(t, err, artifact.ErrMismatchedPair)

	scaler.TrainingID = "run-a"
	cfg = saveModels(t, scaler, forest)
	_, err = New(cfg, nil)
	assert.NoError(t, err)
}
