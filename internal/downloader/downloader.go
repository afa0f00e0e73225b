package downloader

import "github.com/veikko/mapstore/internal/data"

// Job describes one transfer handed to a Downloader: which components of a
// country to fetch into which dataset version under the maps root. Attempt is
// a unique token minted per Start call; events echo it so the engine can drop
// callbacks that outlived a cancellation.
type Job struct {
	ID      data.CountryID
	Attempt string
	Country data.CountryFile
	Files   data.MapOptions
	Version int64
	Root    string
}

// Downloader performs transfers on behalf of the storage engine. The engine
// keeps at most one job active at a time. Start must not block; outcome and
// progress arrive asynchronously through the Reporter. Cancel discards any
// buffered bytes of the active attempt, which are guaranteed never to be
// committed afterwards.
type Downloader interface {
	Start(job Job)
	Cancel(id data.CountryID)
}
