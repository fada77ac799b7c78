package goals

import (
	"sync"
	"time"

	"github.com/angelmondragon/allergyscan/internal/history"
)

// DefaultDailyGoal is the number of scans that completes a day.
const DefaultDailyGoal = 5

// Progress is the daily goal counter as shown to the user.
type Progress struct {
	Day       time.Time `json:"day"`
	Count     int       `json:"count"`
	Goal      int       `json:"goal"`
	Remaining int       `json:"remaining"`
	Percent   float64   `json:"percent"`
	Reached   bool      `json:"reached"`
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CountSince counts records at or after boundary.
func CountSince(records []history.ScanRecord, boundary time.Time) int {
	count := 0
	for _, r := range records {
		if !r.Timestamp.Before(boundary) {
			count++
		}
	}
	return count
}

// Compute builds the progress for the day containing now.
func Compute(records []history.ScanRecord, now time.Time, goal int) Progress {
	if goal <= 0 {
		goal = DefaultDailyGoal
	}
	day := StartOfDay(now)
	count := CountSince(records, day)

	remaining := goal - count
	if remaining < 0 {
		remaining = 0
	}
	percent := float64(count) / float64(goal) * 100
	if percent > 100 {
		percent = 100
	}
	return Progress{
		Day:       day,
		Count:     count,
		Goal:      goal,
		Remaining: remaining,
		Percent:   percent,
		Reached:   count >= goal,
	}
}

// Tracker keeps the progress current against a detailed history cache.
type Tracker struct {
	mu       sync.Mutex
	source   *history.Cache[history.ScanRecord]
	goal     int
	now      func() time.Time
	progress Progress
}

type TrackerOption func(*Tracker)

func WithGoal(goal int) TrackerOption {
	return func(t *Tracker) {
		if goal > 0 {
			t.goal = goal
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker subscribes to source and computes the initial progress.
func NewTracker(source *history.Cache[history.ScanRecord], opts ...TrackerOption) *Tracker {
	t := &Tracker{source: source, goal: DefaultDailyGoal, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	if source != nil {
		source.OnChange(t.recompute)
		t.recompute(source.Entries())
	} else {
		t.recompute(nil)
	}
	return t
}

// Refresh recomputes from the current history, picking up a day rollover.
func (t *Tracker) Refresh() Progress {
	var records []history.ScanRecord
	if t.source != nil {
		records = t.source.Entries()
	}
	t.recompute(records)
	return t.Progress()
}

func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Tracker) recompute(records []history.ScanRecord) {
	p := Compute(records, t.now(), t.goal)
	t.mu.Lock()
	t.progress = p
	t.mu.Unlock()
}
