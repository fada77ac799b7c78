package history

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultDisplayNameMax = 70
	fallbackDisplayName   = "Scanned label"
	ellipsis              = "…"
)

// ScanRecord is one completed scan as kept in the detailed history.
type ScanRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	ImageRef  string    `json:"image_ref"`
	Timestamp time.Time `json:"timestamp"`
	Allergens []string  `json:"allergens"`
	Detected  bool      `json:"detected"`
}

// FeedEntry is the lightweight notification derived from a scan.
type FeedEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Detected  bool      `json:"detected"`
}

// NewFeedEntry derives the notification entry for record.
func NewFeedEntry(record ScanRecord, maxName int) FeedEntry {
	return FeedEntry{
		ID:        record.ID,
		Name:      DisplayName(record.Text, maxName),
		Timestamp: record.Timestamp,
		Detected:  record.Detected,
	}
}

// DisplayName collapses whitespace in text and truncates it to max runes, the trailing
// ellipsis included.
func DisplayName(text string, max int) string {
	if max < 2 {
		max = DefaultDisplayNameMax
	}
	name := strings.Join(strings.Fields(text), " ")
	if name == "" {
		return fallbackDisplayName
	}
	if utf8.RuneCountInString(name) <= max {
		return name
	}
	runes := []rune(name)
	head := strings.TrimRight(string(runes[:max-1]), " ")
	return head + ellipsis
}
