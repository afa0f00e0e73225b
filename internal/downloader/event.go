package downloader

import "github.com/veikko/mapstore/internal/data"

// Event represents a state change or progress update for one transfer.
//
// Terminal events (Complete, Failed) end the attempt. ComponentDone reports
// one finalized component file before the attempt as a whole finishes.
// Progress events carry transient byte counts and never mutate registry
// state on their own.
type Event struct {
	ID      data.CountryID
	Attempt string
	Type    EventType
	// Files is the finalized component for ComponentDone events.
	Files data.MapOptions
	// Size is the on-disk byte size of the finalized component.
	Size     int64
	Progress *Progress
}

// EventType defines the set of events that downloaders may emit.
type EventType string

const (
	EventProgress      EventType = "Progress"
	EventComponentDone EventType = "ComponentDone"
	EventComplete      EventType = "Complete"
	EventFailed        EventType = "Failed"
)

// Progress carries the byte counts of an in-flight attempt. Done covers all
// bytes fetched so far across the attempt's components; Total is the sum of
// remote sizes the attempt was started with.
type Progress struct {
	Done  int64
	Total int64
}
