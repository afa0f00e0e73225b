package fakedl

import (
	"os"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
	"github.com/veikko/mapstore/internal/localfile"
)

// Failing is a downloader whose every attempt ends in failure. It leaves the
// in-flight payload and resume sidecar behind, the way a real transfer does
// after exhausting its retries.
type Failing struct {
	runner *TaskRunner
	rep    downloader.Reporter
}

func NewFailing(runner *TaskRunner, rep downloader.Reporter) *Failing {
	return &Failing{runner: runner, rep: rep}
}

var _ downloader.Downloader = (*Failing)(nil)

func (d *Failing) Start(job downloader.Job) {
	d.runner.PostTask(func() {
		for _, c := range job.Files.Components() {
			part := localfile.DownloadPath(job.Root, job.Country.Name(), c, job.Version)
			resume := localfile.ResumePath(job.Root, job.Country.Name(), c, job.Version)
			_ = os.WriteFile(part, []byte("partial"), 0o644)
			_ = os.WriteFile(resume, []byte(`{"offset":7}`), 0o644)
		}
		d.rep.Report(downloader.Event{ID: job.ID, Attempt: job.Attempt, Type: downloader.EventFailed})
	})
}

func (d *Failing) Cancel(data.CountryID) {}
