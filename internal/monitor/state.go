package monitor

import (
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/detector"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/sensor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/pkg/types"
)

// Status of one monitoring tick. "normal" and "unavailable" are kept
// apart so a missing evaluation never reads as safe.
type Status string

const (
	StatusNormal      Status = "normal"
	StatusEpisode     Status = "episode"
	StatusInvalid     Status = "invalid"     // Reading rejected by the detector
	StatusUnavailable Status = "unavailable" // No reading or no detector
)

// Tick is the outcome of one loop iteration
type Tick struct {
	Seq        uint64              `json:"seq"`
	Time       time.Time           `json:"time"`
	Status     Status              `json:"status"`
	Reading    *types.Reading      `json:"reading,omitempty"`
	Decision   *detector.Decision  `json:"decision,omitempty"`
	Episode    *Episode            `json:"episode,omitempty"`
	Error      string              `json:"error,omitempty"`
	Rooms      sensor.RoomSnapshot `json:"rooms"`
	Simulation bool                `json:"simulation"`
}

// State is the dashboard's view of the monitor. The detector itself
// keeps nothing; all history lives here.
type State struct {
	startTime time.Time

	history  *History
	episodes *EpisodeLog

	mu         sync.Mutex
	latest     *Tick
	rooms      sensor.RoomSnapshot
	simulation bool
	source     types.SourceKind
	detectorOK bool
}

// NewState creates dashboard state with the given bounds
func NewState(historySize, episodeLimit int) *State {
	return &State{
		startTime: time.Now(),
		history:   NewHistory(historySize),
		episodes:  NewEpisodeLog(episodeLimit),
		rooms:     sensor.NewRoomSimulator(0).Snapshot(),
	}
}

// History returns the reading ring buffer
func (s *State) History() *History {
	return s.history
}

// Episodes returns the episode log
func (s *State) Episodes() *EpisodeLog {
	return s.episodes
}

// SetMode records which source and detector the loop runs with
func (s *State) SetMode(source types.SourceKind, simulation, detectorOK bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.simulation = simulation
	s.detectorOK = detectorOK
}

func (s *State) currentRooms() sensor.RoomSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms
}

func (s *State) apply(t Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc := t
	s.latest = &tc
	s.rooms = t.Rooms
}

// Snapshot is a consistent copy of the dashboard state
type Snapshot struct {
	Status        Status              `json:"status"`
	Latest        *Tick               `json:"latest,omitempty"`
	Stats         Stats               `json:"stats"`
	Rooms         sensor.RoomSnapshot `json:"rooms"`
	Location      string              `json:"location"`
	Simulation    bool                `json:"simulation"`
	Source        types.SourceKind    `json:"source"`
	DetectorReady bool                `json:"detector_ready"`
	EpisodesToday int                 `json:"episodes_today"`
	TotalEpisodes int                 `json:"total_episodes"`
	Uptime        float64             `json:"uptime_seconds"`
}

// Snapshot returns copies of the current state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Status:        StatusUnavailable,
		Rooms:         s.rooms,
		Location:      s.rooms.LastLocation,
		Simulation:    s.simulation,
		Source:        s.source,
		DetectorReady: s.detectorOK,
		Uptime:        time.Since(s.startTime).Seconds(),
	}
	if s.latest != nil {
		latest := *s.latest
		snap.Latest = &latest
		snap.Status = latest.Status
	}
	s.mu.Unlock()

	snap.Stats = s.history.Stats()
	snap.EpisodesToday = s.episodes.CountOn(time.Now())
	snap.TotalEpisodes = s.episodes.Len()
	return snap
}
