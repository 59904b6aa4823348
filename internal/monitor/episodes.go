package monitor

import (
	"sync"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/detector"
	"github.com/google/uuid"
)

// DefaultEpisodeLimit bounds the in-memory episode log
const DefaultEpisodeLimit = 500

// Episode is a flagged reading kept for the dashboard
type Episode struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	HeartRate          float64   `json:"heart_rate"`
	Probability        float64   `json:"probability"`
	Location           string    `json:"location"`
	ModelTriggered     bool      `json:"model_triggered"`
	ThresholdTriggered bool      `json:"threshold_triggered"`
}

// EpisodeLog keeps the most recent episodes in memory only
type EpisodeLog struct {
	mu    sync.Mutex
	items []Episode
	limit int
}

// NewEpisodeLog creates a log holding at most limit episodes
func NewEpisodeLog(limit int) *EpisodeLog {
	if limit <= 0 {
		limit = DefaultEpisodeLimit
	}
	return &EpisodeLog{limit: limit}
}

// Record stores a positive decision
func (l *EpisodeLog) Record(ts time.Time, dec detector.Decision, location string) Episode {
	ep := Episode{
		ID:                 uuid.NewString(),
		Timestamp:          ts,
		HeartRate:          dec.HeartRate,
		Probability:        dec.Probability,
		Location:           location,
		ModelTriggered:     dec.ModelTriggered,
		ThresholdTriggered: dec.ThresholdTriggered,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, ep)
	if len(l.items) > l.limit {
		l.items = append([]Episode(nil), l.items[len(l.items)-l.limit:]...)
	}
	return ep
}

// Len returns the number of retained episodes
func (l *EpisodeLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Recent returns up to n episodes, newest first
func (l *EpisodeLog) Recent(n int) []Episode {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > len(l.items) {
		n = len(l.items)
	}
	out := make([]Episode, 0, n)
	for i := len(l.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.items[i])
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// CountOn returns how many episodes fall on day's calendar date in day's location
func (l *EpisodeLog) CountOn(day time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for _, ep := range l.items {
		if sameDay(ep.Timestamp.In(day.Location()), day) {
			count++
		}
	}
	return count
}

// CalendarDay is one cell of the month grid. Day 0 pads weeks that
// start before or end after the month.
type CalendarDay struct {
	Day      int  `json:"day"`
	Episodes int  `json:"episodes"`
	Flagged  bool `json:"flagged"`
}

// Calendar is a Monday-first month grid of episode days
type Calendar struct {
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	MonthName string          `json:"month_name"`
	Weekdays  []string        `json:"weekdays"`
	Weeks     [][]CalendarDay `json:"weeks"`
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Calendar lays out month of year with per-day episode counts
func (l *EpisodeLog) Calendar(year int, month time.Month, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	days := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	counts := make(map[int]int)
	l.mu.Lock()
	for _, ep := range l.items {
		t := ep.Timestamp.In(loc)
		if t.Year() == year && t.Month() == month {
			counts[t.Day()]++
		}
	}
	l.mu.Unlock()

	cal := Calendar{
		Year:      year,
		Month:     int(month),
		MonthName: month.String(),
		Weekdays:  weekdays,
	}

	offset := (int(first.Weekday()) + 6) % 7 // Monday = 0
	week := make([]CalendarDay, offset, 7)
	for d := 1; d <= days; d++ {
		week = append(week, CalendarDay{Day: d, Episodes: counts[d], Flagged: counts[d] > 0})
		if len(week) == 7 {
			cal.Weeks = append(cal.Weeks, week)
			week = make([]CalendarDay, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, CalendarDay{})
		}
		cal.Weeks = append(cal.Weeks, week)
	}
	return cal
}
