package webmonitor

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"sync"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/sensor"
)

// Recording quality options offered by the settings form
var recordingQualities = []string{"Low", "Medium", "High", "Ultra"}

// AlertSettings toggles alert channels
type AlertSettings struct {
	SMS        bool `json:"sms"`
	Email      bool `json:"email"`
	Camera     bool `json:"camera"`
	Motion     bool `json:"motion"`
	SmartLight bool `json:"smart_light"`
}

// Contacts are the emergency contacts
type Contacts struct {
	PrimaryName    string `json:"primary_name"`
	PrimaryPhone   string `json:"primary_phone"`
	ProviderEmail  string `json:"provider_email"`
	SecondaryName  string `json:"secondary_name"`
	SecondaryPhone string `json:"secondary_phone"`
	HospitalNumber string `json:"hospital_number"`
}

// CameraSettings configures the simulated cameras
type CameraSettings struct {
	ActiveCameras        []string `json:"active_cameras"`
	RecordingQuality     string   `json:"recording_quality"`
	RecordingMinutes     int      `json:"recording_minutes"`
	DetectionSensitivity int      `json:"detection_sensitivity"`
	NightVision          bool     `json:"night_vision"`
	MotionDetection      bool     `json:"motion_detection"`
	RecordOnMotion       bool     `json:"record_on_motion"`
}

// Settings are kept in memory only. The detector thresholds are not
// part of it: they are fixed and only displayed.
type Settings struct {
	Alerts   AlertSettings  `json:"alerts"`
	Contacts Contacts       `json:"contacts"`
	Camera   CameraSettings `json:"camera"`
}

// DefaultSettings mirrors the initial form values
func DefaultSettings() Settings {
	return Settings{
		Alerts: AlertSettings{SMS: true, Email: true, Camera: true, Motion: true, SmartLight: true},
		Camera: CameraSettings{
			ActiveCameras:        []string{"Bedroom", "Living Room"},
			RecordingQuality:     "Medium",
			RecordingMinutes:     30,
			DetectionSensitivity: 75,
			NightVision:          true,
			MotionDetection:      true,
			RecordOnMotion:       true,
		},
	}
}

// SettingsError lists every invalid field of a settings update
type SettingsError struct {
	Problems []string
}

func (e *SettingsError) Error() string {
	return "invalid settings: " + strings.Join(e.Problems, "; ")
}

// Validate checks ranges and option values
func (s Settings) Validate() error {
	var problems []string
	for _, cam := range s.Camera.ActiveCameras {
		if !slices.Contains(sensor.Rooms, cam) {
			problems = append(problems, fmt.Sprintf("unknown camera %q", cam))
		}
	}
	if !slices.Contains(recordingQualities, s.Camera.RecordingQuality) {
		problems = append(problems, fmt.Sprintf("recording quality must be one of %s", strings.Join(recordingQualities, ", ")))
	}
	if s.Camera.RecordingMinutes < 1 || s.Camera.RecordingMinutes > 60 {
		problems = append(problems, "recording duration must be between 1 and 60 minutes")
	}
	if s.Camera.DetectionSensitivity < 0 || s.Camera.DetectionSensitivity > 100 {
		problems = append(problems, "detection sensitivity must be between 0 and 100")
	}
	if s.Contacts.ProviderEmail != "" {
		if _, err := mail.ParseAddress(s.Contacts.ProviderEmail); err != nil {
			problems = append(problems, fmt.Sprintf("provider email: %v", err))
		}
	}
	if len(problems) > 0 {
		return &SettingsError{Problems: problems}
	}
	return nil
}

// SettingsStore guards the current settings
type SettingsStore struct {
	mu       sync.RWMutex
	settings Settings
}

// NewSettingsStore starts from DefaultSettings
func NewSettingsStore() *SettingsStore {
	return &SettingsStore{settings: DefaultSettings()}
}

// Get returns a copy of the current settings
func (s *SettingsStore) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.Camera.ActiveCameras = slices.Clone(s.settings.Camera.ActiveCameras)
	return out
}

// Update validates and replaces the settings
func (s *SettingsStore) Update(next Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	next.Camera.ActiveCameras = slices.Clone(next.Camera.ActiveCameras)
	s.mu.Lock()
	s.settings = next
	s.mu.Unlock()
	return nil
}
