package webmonitor

import (
	"path/filepath"
	"time"
)

// Config defines the runtime configuration for the dashboard server.
type Config struct {
	Addr                string
	AssetsDir           string
	KeepAliveInterval   time.Duration
	MJPEGInterval       time.Duration
	RecordingOutputPath string
	EpisodeLimit        int
	ChartWidth          int
	ChartHeight         int
	EnvironmentSeed     int64
}

// DefaultConfig returns the dashboard defaults
func DefaultConfig() Config {
	return Config{
		Addr:                ":8080",
		AssetsDir:           filepath.Clean("./web_assets"),
		KeepAliveInterval:   15 * time.Second,
		MJPEGInterval:       200 * time.Millisecond,
		RecordingOutputPath: "./recordings",
		EpisodeLimit:        5,
		ChartWidth:          800,
		ChartHeight:         320,
		EnvironmentSeed:     42,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = def.KeepAliveInterval
	}
	if c.MJPEGInterval <= 0 {
		c.MJPEGInterval = def.MJPEGInterval
	}
	if c.RecordingOutputPath == "" {
		c.RecordingOutputPath = def.RecordingOutputPath
	}
	if c.EpisodeLimit <= 0 {
		c.EpisodeLimit = def.EpisodeLimit
	}
	if c.ChartWidth <= 0 {
		c.ChartWidth = def.ChartWidth
	}
	if c.ChartHeight <= 0 {
		c.ChartHeight = def.ChartHeight
	}
	return c
}
