package downloader

// Reporter publishes downloader events back to the storage engine.
type Reporter interface {
	Report(Event)
}

// ChanReporter writes events to a channel. The storage engine drains the
// channel on its control goroutine, which is what marshals asynchronous
// downloader callbacks onto the single control thread.
type ChanReporter struct {
	ch chan<- Event
}

func NewChanReporter(ch chan<- Event) *ChanReporter { return &ChanReporter{ch: ch} }

func (r *ChanReporter) Report(e Event) {
	if r == nil {
		return
	}
	r.ch <- e
}

// ReporterFunc adapts a function to the Reporter interface. Deterministic
// test harnesses use it to deliver events synchronously.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

