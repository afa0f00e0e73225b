// Package fakedl provides deterministic Downloader implementations for tests.
// Everything runs on a single goroutine through a TaskRunner, so observable
// event order is exactly submission order. Not safe for concurrent use.
package fakedl

import (
	"bytes"
	"os"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
	"github.com/veikko/mapstore/internal/localfile"
)

// BlockSize is the number of bytes transferred per progress tick.
const BlockSize = 1024

// Downloader simulates a block-wise transfer. Each posted task moves one
// block, reports progress, and writes the final component file once its
// bytes are complete.
type Downloader struct {
	runner *TaskRunner
	rep    downloader.Reporter
	cur    *transfer
}

type transfer struct {
	job       downloader.Job
	comps     []data.MapOptions
	sizes     []int64
	idx       int
	compDone  int64
	done      int64
	total     int64
	cancelled bool
}

func New(runner *TaskRunner, rep downloader.Reporter) *Downloader {
	return &Downloader{runner: runner, rep: rep}
}

var _ downloader.Downloader = (*Downloader)(nil)

func (d *Downloader) Start(job downloader.Job) {
	t := &transfer{job: job}
	for _, c := range job.Files.Components() {
		size := job.Country.RemoteSize(c)
		if size <= 0 {
			continue
		}
		t.comps = append(t.comps, c)
		t.sizes = append(t.sizes, size)
		t.total += size
	}
	d.cur = t
	d.runner.PostTask(func() { d.step(t) })
}

func (d *Downloader) Cancel(id data.CountryID) {
	if d.cur != nil && d.cur.job.ID == id {
		d.cur.cancelled = true
		d.cur = nil
	}
}

func (d *Downloader) step(t *transfer) {
	if t.cancelled {
		return
	}
	if t.idx >= len(t.comps) {
		d.cur = nil
		d.rep.Report(downloader.Event{ID: t.job.ID, Attempt: t.job.Attempt, Type: downloader.EventComplete})
		return
	}

	n := t.sizes[t.idx] - t.compDone
	if n > BlockSize {
		n = BlockSize
	}
	t.compDone += n
	t.done += n
	d.rep.Report(downloader.Event{
		ID:       t.job.ID,
		Attempt:  t.job.Attempt,
		Type:     downloader.EventProgress,
		Progress: &downloader.Progress{Done: t.done, Total: t.total},
	})
	if t.cancelled {
		// A progress callback may have cancelled us; stop before committing.
		return
	}

	if t.compDone == t.sizes[t.idx] {
		comp := t.comps[t.idx]
		size := t.sizes[t.idx]
		path := localfile.ComponentPath(t.job.Root, t.job.Country.Name(), comp, t.job.Version)
		if err := os.WriteFile(path, bytes.Repeat([]byte{0}, int(size)), 0o644); err != nil {
			d.cur = nil
			d.rep.Report(downloader.Event{ID: t.job.ID, Attempt: t.job.Attempt, Type: downloader.EventFailed})
			return
		}
		t.idx++
		t.compDone = 0
		d.rep.Report(downloader.Event{
			ID:      t.job.ID,
			Attempt: t.job.Attempt,
			Type:    downloader.EventComponentDone,
			Files:   comp,
			Size:    size,
		})
		if t.cancelled {
			return
		}
	}
	d.runner.PostTask(func() { d.step(t) })
}
