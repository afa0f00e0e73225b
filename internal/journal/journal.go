// Package journal records the terminal outcome of download attempts. The
// storage engine writes an entry whenever an attempt completes, fails or is
// cancelled; the journal is an audit trail and never feeds back into status
// derivation.
package journal

import (
	"context"
	"time"

	"github.com/veikko/mapstore/internal/data"
)

// Outcome classifies how an attempt ended.
type Outcome string

const (
	OutcomeComplete  Outcome = "Complete"
	OutcomeFailed    Outcome = "Failed"
	OutcomeCancelled Outcome = "Cancelled"
)

// Entry is one recorded attempt.
type Entry struct {
	Country     string          `json:"country"`
	Files       data.MapOptions `json:"-"`
	FilesLabel  string          `json:"files"`
	Version     int64           `json:"version"`
	Bytes       int64           `json:"bytes"`
	Outcome     Outcome         `json:"outcome"`
	Fingerprint string          `json:"fingerprint"`
	FinishedAt  time.Time       `json:"finishedAt"`
}

// Journal persists attempt outcomes.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
