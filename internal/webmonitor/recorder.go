package webmonitor

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// RecordingStatus is the body of /api/recording/status.
type RecordingStatus struct {
	Recording    bool       `json:"recording"`
	Filename     *string    `json:"filename"`
	FrameCount   int        `json:"frame_count"`
	BytesWritten int        `json:"bytes_written"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
}

// RecorderState tracks the simulated camera recording. Frames are
// counted as the frame broadcaster renders them; nothing is written.
type RecorderState struct {
	mu           sync.Mutex
	outputDir    string
	recording    bool
	filepath     string
	startedAt    time.Time
	frameCount   int
	bytesWritten int
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewRecorderState creates a recorder naming files under outputDir.
func NewRecorderState(outputDir string, m *metrics.Metrics) *RecorderState {
	return &RecorderState{
		outputDir: outputDir,
		metrics:   m,
		now:       time.Now,
	}
}

// Start begins recording and returns the output filename.
func (r *RecorderState) Start(filename string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return "", ErrAlreadyRecording
	}

	r.startedAt = r.now()
	if filename == "" {
		filename = fmt.Sprintf("recording_%s.mjpeg", r.startedAt.Format("20060102_150405"))
	}

	r.filepath = filepath.Join(r.outputDir, filepath.Base(filename))
	r.recording = true
	r.frameCount = 0
	r.bytesWritten = 0
	if r.metrics != nil {
		r.metrics.RecordingActive.Store(1)
	}
	return r.filepath, nil
}

// Stop ends recording and returns the output filename.
func (r *RecorderState) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return "", ErrNotRecording
	}
	r.recording = false
	if r.metrics != nil {
		r.metrics.RecordingActive.Store(0)
	}
	return r.filepath, nil
}

// Active reports whether a recording is in progress.
func (r *RecorderState) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// AddFrame accounts one rendered frame while recording.
func (r *RecorderState) AddFrame(size int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	r.frameCount++
	r.bytesWritten += size
	if r.metrics != nil {
		r.metrics.RecordingFrames.Add(1)
		r.metrics.RecordingBytes.Add(uint64(size))
	}
}

// Status returns the recorder status payload.
func (r *RecorderState) Status() RecordingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := RecordingStatus{
		Recording:    r.recording,
		FrameCount:   r.frameCount,
		BytesWritten: r.bytesWritten,
	}
	if r.filepath != "" {
		name := r.filepath
		st.Filename = &name
	}
	if r.recording {
		started := r.startedAt
		st.StartedAt = &started
	}
	return st
}
