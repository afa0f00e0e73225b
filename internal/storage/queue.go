package storage

import (
	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/localfile"
	"github.com/veikko/mapstore/internal/metrics"
)

// queuedCountry is one download request in the queue. The head of the queue
// is the single active transfer; everything behind it is pending in strict
// submission order.
type queuedCountry struct {
	id      data.CountryID
	country data.CountryFile

	// files is the full requested component mask; committed is the subset
	// already finalized on disk during this request. attemptMask and
	// downloaded describe only the attempt currently handed to the
	// downloader.
	files       data.MapOptions
	committed   data.MapOptions
	attempt     string
	attemptMask data.MapOptions
	downloaded  int64

	local *localfile.LocalCountryFile
}

func (s *Storage) activeEntry() *queuedCountry {
	if len(s.queue) == 0 {
		return nil
	}
	return s.queue[0]
}

func (s *Storage) findQueued(id data.CountryID) *queuedCountry {
	for _, e := range s.queue {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (s *Storage) pushQueue(e *queuedCountry) {
	s.queue = append(s.queue, e)
	metrics.QueueDepth.Set(float64(len(s.queue)))
}

func (s *Storage) removeEntry(e *queuedCountry) {
	for i, q := range s.queue {
		if q == e {
			if i == 0 {
				metrics.ActiveDownloads.Set(0)
			}
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	metrics.QueueDepth.Set(float64(len(s.queue)))
}
