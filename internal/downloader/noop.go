package downloader

import "github.com/veikko/mapstore/internal/data"

type noopDownloader struct{}

// NewNoop returns a downloader that accepts jobs and never reports anything.
// Useful as a placeholder while wiring.
func NewNoop() Downloader {
	return &noopDownloader{}
}

func (d *noopDownloader) Start(Job)             {}
func (d *noopDownloader) Cancel(data.CountryID) {}
