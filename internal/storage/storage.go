// Package storage is the download engine for country map packages. It owns
// the download queue, the local-file registry, status derivation and the
// subscriber fan-out.
//
// All state mutation funnels through one control path: public operations
// take the engine lock, and asynchronous downloader callbacks are marshalled
// onto it through the event channel drained by Run. Subscriber callbacks are
// delivered after the triggering operation has settled, so they may call
// back into the engine freely.
package storage

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
	"github.com/veikko/mapstore/internal/fp"
	"github.com/veikko/mapstore/internal/journal"
	"github.com/veikko/mapstore/internal/localfile"
	"github.com/veikko/mapstore/internal/metrics"
)

// Config carries the static engine configuration.
type Config struct {
	// Root is the maps directory holding one subdirectory per dataset version.
	Root string
	// DataVersion is the current dataset version; on-disk packages with a
	// lower version derive OnDiskOutOfDate.
	DataVersion int64
}

// Option customizes a Storage.
type Option func(*Storage)

// WithJournal records terminal attempt outcomes into j.
func WithJournal(j journal.Journal) Option {
	return func(s *Storage) { s.journal = j }
}

// WithUpdateHook invokes fn after a download's full component set has been
// committed. This is the integration point for an external map-data index.
func WithUpdateHook(fn func(*localfile.LocalCountryFile)) Option {
	return func(s *Storage) { s.update = fn }
}

// Storage is the engine. Construct with New, attach a Downloader with
// SetDownloader, then call RegisterAllLocalMaps and Run.
type Storage struct {
	log     *slog.Logger
	catalog *data.Catalog
	root    string
	events  <-chan downloader.Event
	journal journal.Journal
	update  func(*localfile.LocalCountryFile)

	mu          sync.Mutex
	dataVersion int64
	dlr         downloader.Downloader
	queue       []*queuedCountry
	failed      map[data.CountryID]struct{}
	reg         *registry
	notes       []note

	obs *observers

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an engine that reads downloader events from events. A nil
// channel is allowed for harnesses that deliver events synchronously via
// HandleEvent.
func New(log *slog.Logger, catalog *data.Catalog, cfg Config, events <-chan downloader.Event, opts ...Option) *Storage {
	if log == nil {
		log = slog.Default()
	}
	s := &Storage{
		log:         log,
		catalog:     catalog,
		root:        cfg.Root,
		dataVersion: cfg.DataVersion,
		events:      events,
		dlr:         downloader.NewNoop(),
		failed:      make(map[data.CountryID]struct{}),
		reg:         newRegistry(),
		obs:         newObservers(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDownloader swaps the transfer backend. Production wires the HTTP
// downloader; tests wire a deterministic fake.
func (s *Storage) SetDownloader(dlr downloader.Downloader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dlr = dlr
}

// SetCurrentDataVersion changes the dataset version used by out-of-date
// checks and by new downloads.
func (s *Storage) SetCurrentDataVersion(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataVersion = v
}

// CurrentDataVersion returns the configured dataset version.
func (s *Storage) CurrentDataVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataVersion
}

// Run starts the event loop draining downloader events. It returns
// immediately; Stop terminates the loop.
func (s *Storage) Run() {
	if s.events == nil {
		return
	}
	s.stopCh = make(chan struct{})
	lg := s.log.With("operation_id", uuid.NewString())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		lg.Info("storage event loop started")
		for {
			select {
			case <-s.stopCh:
				return
			case e, ok := <-s.events:
				if !ok {
					return
				}
				s.HandleEvent(e)
			}
		}
	}()
}

// Stop terminates the event loop.
func (s *Storage) Stop() {
	if s.stopCh != nil {
		close(s.stopCh)
		s.wg.Wait()
	}
}

// FindCountryByName resolves a catalog name to an id; invalid when unknown.
func (s *Storage) FindCountryByName(name string) data.CountryID {
	return s.catalog.FindCountryByName(name)
}

// CountryFileByID returns the static metadata for an id.
func (s *Storage) CountryFileByID(id data.CountryID) (data.CountryFile, error) {
	return s.catalog.CountryFileByID(id)
}

// CountryIDs lists all catalog ids.
func (s *Storage) CountryIDs() []data.CountryID { return s.catalog.IDs() }

// Subscribe registers a status/progress callback pair and returns its slot.
func (s *Storage) Subscribe(status StatusFunc, progress ProgressFunc) int {
	return s.obs.Subscribe(status, progress)
}

// Unsubscribe removes the callback pair registered under slot.
func (s *Storage) Unsubscribe(slot int) { s.obs.Unsubscribe(slot) }

// Status derives the lifecycle state of a country from queue and registry
// state. It is pure: repeated calls without intervening mutation return the
// same value.
func (s *Storage) Status(id data.CountryID) data.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked(id)
}

func (s *Storage) statusLocked(id data.CountryID) data.Status {
	if e := s.findQueued(id); e != nil {
		if e == s.queue[0] {
			return data.StatusDownloading
		}
		return data.StatusInQueue
	}
	if _, ok := s.failed[id]; ok {
		return data.StatusDownloadFailed
	}
	lf := s.reg.Latest(id)
	if lf == nil {
		return data.StatusNotDownloaded
	}
	if lf.Version() < s.dataVersion {
		return data.StatusOnDiskOutOfDate
	}
	return data.StatusOnDisk
}

// Sizes returns local and remote byte counts for a country. For a queued
// country the pair describes the transfer: bytes downloaded so far and the
// remote total of the current attempt; the remote total is re-derived from
// catalog metadata on every call.
func (s *Storage) Sizes(id data.CountryID, opt data.MapOptions) (local, remote int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cf, err := s.catalog.CountryFileByID(id)
	if err != nil {
		return 0, 0
	}
	if e := s.findQueued(id); e != nil {
		if e == s.queue[0] {
			return e.downloaded, cf.RemoteSize(e.attemptMask)
		}
		return 0, cf.RemoteSize(e.files)
	}
	if lf := s.reg.Latest(id); lf != nil {
		return lf.Size(opt), cf.RemoteSize(opt)
	}
	return 0, cf.RemoteSize(opt)
}

// LatestLocalFile returns the highest-version on-disk package for id, or nil.
func (s *Storage) LatestLocalFile(id data.CountryID) *localfile.LocalCountryFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Latest(id)
}

// DownloadCountry requests a download of the given components. If no
// transfer is active the request starts immediately, otherwise it joins the
// pending FIFO. A request clears any sticky failure for the id.
func (s *Storage) DownloadCountry(id data.CountryID, opt data.MapOptions) error {
	s.mu.Lock()
	err := s.downloadCountryLocked(id, opt)
	notes := s.takeNotes()
	s.mu.Unlock()
	s.dispatch(notes)
	return err
}

func (s *Storage) downloadCountryLocked(id data.CountryID, opt data.MapOptions) error {
	cf, err := s.catalog.CountryFileByID(id)
	if err != nil {
		return err
	}
	delete(s.failed, id)
	opt = pruneZeroSize(cf, opt)

	if e := s.findQueued(id); e != nil {
		e.files = e.files.With(opt)
		s.noteStatus(id)
		return nil
	}
	if opt == data.MapOptionNothing {
		// Nothing to transfer; surface the settled status.
		s.noteStatus(id)
		return nil
	}

	s.pushQueue(&queuedCountry{id: id, country: cf, files: opt})
	s.noteStatus(id)
	if len(s.queue) == 1 {
		s.startActive()
	}
	return nil
}

// DeleteCountry removes the given components from every on-disk version of
// the country and prunes any queued request accordingly. Deleting the base
// map implies deleting the routing overlay, which cannot exist on its own.
func (s *Storage) DeleteCountry(id data.CountryID, opt data.MapOptions) error {
	s.mu.Lock()
	err := s.deleteCountryLocked(id, opt)
	notes := s.takeNotes()
	s.mu.Unlock()
	s.dispatch(notes)
	return err
}

func (s *Storage) deleteCountryLocked(id data.CountryID, opt data.MapOptions) error {
	cf, err := s.catalog.CountryFileByID(id)
	if err != nil {
		return err
	}
	if opt.Has(data.MapOptionMap) {
		opt = opt.With(data.MapOptionCarRouting)
	}
	delete(s.failed, id)

	var firstErr error
	for _, lf := range s.reg.All(id) {
		if derr := lf.DeleteFromDisk(opt); derr != nil {
			s.log.Error("delete country files", "country", id, "version", lf.Version(), "err", derr)
			if firstErr == nil {
				firstErr = derr
			}
			continue
		}
		if lf.Files() == data.MapOptionNothing {
			s.removeLocalFileLocked(id, lf)
		}
	}
	localfile.DeleteDownloaderFiles(s.root, cf.Name(), opt, s.dataVersion)

	e := s.findQueued(id)
	if e == nil {
		s.noteStatus(id)
		return firstErr
	}

	e.files = e.files.Without(opt)
	e.committed = e.committed.Without(opt)
	switch {
	case e.files == data.MapOptionNothing:
		s.cancelEntryLocked(e)
	case e == s.queue[0]:
		// The active transfer lost components: restart it with the rest.
		s.dlr.Cancel(id)
		s.noteStatus(id)
		s.startActive()
	default:
		s.noteStatus(id)
	}
	return firstErr
}

// DeleteFromDownloader cancels a queued or active transfer. Disk state of
// already committed components is untouched.
func (s *Storage) DeleteFromDownloader(id data.CountryID) error {
	s.mu.Lock()
	err := s.deleteFromDownloaderLocked(id)
	notes := s.takeNotes()
	s.mu.Unlock()
	s.dispatch(notes)
	return err
}

func (s *Storage) deleteFromDownloaderLocked(id data.CountryID) error {
	e := s.findQueued(id)
	if e == nil {
		return data.ErrNotInQueue
	}
	s.cancelEntryLocked(e)
	return nil
}

// cancelEntryLocked removes an entry from wherever it resides. Cancelling
// the active entry promotes the next pending one.
func (s *Storage) cancelEntryLocked(e *queuedCountry) {
	if e == s.queue[0] {
		s.dlr.Cancel(e.id)
		localfile.DeleteDownloaderFiles(s.root, e.country.Name(), data.MapOptionMapWithCarRouting, s.dataVersion)
		s.noteJournal(e, journal.OutcomeCancelled)
		s.removeEntry(e)
		s.noteStatus(e.id)
		s.promoteNext()
		return
	}
	s.removeEntry(e)
	s.noteStatus(e.id)
}

// DeleteCustomCountryVersion removes one specific on-disk version together
// with its index artifact.
func (s *Storage) DeleteCustomCountryVersion(lf *localfile.LocalCountryFile) error {
	s.mu.Lock()
	id := s.catalog.FindCountryByName(lf.Country().Name())
	err := s.deleteLocalFileLocked(lf)
	if id.IsValid() {
		s.reg.Remove(id, lf.Version())
		s.noteStatus(id)
	}
	notes := s.takeNotes()
	s.mu.Unlock()
	s.dispatch(notes)
	return err
}

// RegisterAllLocalMaps rebuilds the registry from a disk scan. For each
// country only the newest discovered version is retained; every older
// version's files and artifacts are deleted. Cleanup failures are isolated
// per country and never abort the scan.
func (s *Storage) RegisterAllLocalMaps() {
	s.mu.Lock()
	candidates := localfile.FindAllLocalFiles(s.log, s.root)
	byID := make(map[data.CountryID][]*localfile.LocalCountryFile)
	for _, lf := range candidates {
		id := s.catalog.FindCountryByName(lf.Country().Name())
		if !id.IsValid() {
			s.log.Warn("skipping map file without catalog entry", "name", lf.Country().Name())
			continue
		}
		byID[id] = append(byID[id], lf)
	}

	s.reg = newRegistry()
	for id, list := range byID {
		newest := list[0]
		for _, lf := range list[1:] {
			if lf.Version() > newest.Version() {
				newest = lf
			}
		}
		for _, lf := range list {
			if lf == newest {
				continue
			}
			if err := s.deleteLocalFileLocked(lf); err != nil {
				s.log.Error("obsolete version cleanup", "country", id, "version", lf.Version(), "err", err)
			}
		}
		s.reg.Register(id, newest)
	}
	s.mu.Unlock()
}

// ---- control-path internals ----

// startActive hands the head of the queue to the downloader as a fresh
// attempt covering its not-yet-committed components.
func (s *Storage) startActive() {
	e := s.queue[0]
	e.attempt = uuid.NewString()
	e.attemptMask = e.files.Without(e.committed)
	e.downloaded = 0

	if e.local = s.reg.Find(e.id, s.dataVersion); e.local == nil {
		lf, err := localfile.PreparePlace(s.root, e.country, s.dataVersion)
		if err != nil {
			s.log.Error("prepare place", "country", e.id, "err", err)
			s.failed[e.id] = struct{}{}
			s.noteJournal(e, journal.OutcomeFailed)
			s.removeEntry(e)
			s.noteStatus(e.id)
			s.promoteNext()
			return
		}
		e.local = lf
	}

	metrics.ActiveDownloads.Set(1)
	s.dlr.Start(downloader.Job{
		ID:      e.id,
		Attempt: e.attempt,
		Country: e.country,
		Files:   e.attemptMask,
		Version: s.dataVersion,
		Root:    s.root,
	})
}

func (s *Storage) promoteNext() {
	if len(s.queue) == 0 {
		return
	}
	// The promoted entry moves InQueue -> Downloading directly.
	s.noteStatus(s.queue[0].id)
	s.startActive()
}

// HandleEvent applies one downloader event on the caller's goroutine. Run
// feeds it from the event channel; deterministic tests call it directly.
func (s *Storage) HandleEvent(e downloader.Event) {
	s.mu.Lock()
	s.handleLocked(e)
	notes := s.takeNotes()
	s.mu.Unlock()
	s.dispatch(notes)
}

func (s *Storage) handleLocked(e downloader.Event) {
	metrics.DownloadEvents.WithLabelValues(strings.ToLower(string(e.Type))).Inc()

	active := s.activeEntry()
	if active == nil || active.id != e.ID || active.attempt != e.Attempt {
		// A completion racing a cancel resolves by arrival order: the entry
		// is no longer active, so the event is a no-op.
		s.log.Info("ignoring stale downloader event", "country", e.ID, "type", e.Type)
		return
	}

	switch e.Type {
	case downloader.EventProgress:
		if e.Progress == nil {
			return
		}
		active.downloaded = e.Progress.Done
		s.noteProgress(active.id, *e.Progress)
	case downloader.EventComponentDone:
		s.commitComponent(active, e.Files)
	case downloader.EventComplete:
		if remaining := active.files.Without(active.committed); remaining != data.MapOptionNothing {
			// Components were added while the attempt ran; fetch the rest
			// before settling.
			s.startActive()
			return
		}
		s.finishActive(active)
	case downloader.EventFailed:
		s.failed[active.id] = struct{}{}
		s.noteJournal(active, journal.OutcomeFailed)
		s.removeEntry(active)
		s.noteStatus(active.id)
		s.promoteNext()
	default:
		s.log.Warn("unknown downloader event", "country", e.ID, "type", e.Type)
	}
}

// commitComponent folds one finalized component file into the registry. The
// country stays Downloading, so no status notification is emitted here.
func (s *Storage) commitComponent(e *queuedCountry, comp data.MapOptions) {
	e.local.SyncWithDisk()
	if err := localfile.PrepareIndexes(e.local); err != nil {
		s.log.Error("prepare country indexes", "country", e.id, "err", err)
	}
	s.reg.Register(e.id, e.local)
	e.committed = e.committed.With(comp)
}

func (s *Storage) finishActive(e *queuedCountry) {
	e.local.SyncWithDisk()
	localfile.DeleteDownloaderFiles(s.root, e.country.Name(), e.files, s.dataVersion)
	s.noteJournal(e, journal.OutcomeComplete)
	s.removeEntry(e)
	s.noteDownloaded(e.local)
	s.noteStatus(e.id)
	s.promoteNext()
}

// removeLocalFileLocked drops a fully-deleted version: index artifact,
// registry entry and, when empty, the version directory itself.
func (s *Storage) removeLocalFileLocked(id data.CountryID, lf *localfile.LocalCountryFile) {
	if err := localfile.DeleteIndexes(lf); err != nil {
		s.log.Error("delete country indexes", "country", id, "err", err)
	}
	s.reg.Remove(id, lf.Version())
	_ = os.Remove(lf.Directory())
}

// deleteLocalFileLocked removes every component and artifact of one version.
func (s *Storage) deleteLocalFileLocked(lf *localfile.LocalCountryFile) error {
	err := lf.DeleteFromDisk(data.MapOptionMapWithCarRouting)
	if ierr := localfile.DeleteIndexes(lf); ierr != nil && err == nil {
		err = ierr
	}
	_ = os.Remove(lf.Directory())
	return err
}

func pruneZeroSize(cf data.CountryFile, opt data.MapOptions) data.MapOptions {
	out := data.MapOptionNothing
	for _, c := range opt.Components() {
		if cf.RemoteSize(c) > 0 {
			out = out.With(c)
		}
	}
	return out
}

// ---- deferred notifications ----

type noteKind int

const (
	noteStatusChanged noteKind = iota
	noteProgressTick
	noteCountryDownloaded
	noteJournalEntry
)

// note is a notification collected while the engine lock is held and
// delivered after the operation settles, so subscriber callbacks observe
// consistent state and may re-enter the engine.
type note struct {
	kind     noteKind
	id       data.CountryID
	progress downloader.Progress
	local    *localfile.LocalCountryFile
	entry    journal.Entry
}

func (s *Storage) noteStatus(id data.CountryID) {
	s.notes = append(s.notes, note{kind: noteStatusChanged, id: id})
}

func (s *Storage) noteProgress(id data.CountryID, p downloader.Progress) {
	s.notes = append(s.notes, note{kind: noteProgressTick, id: id, progress: p})
}

func (s *Storage) noteDownloaded(lf *localfile.LocalCountryFile) {
	s.notes = append(s.notes, note{kind: noteCountryDownloaded, local: lf})
}

func (s *Storage) noteJournal(e *queuedCountry, outcome journal.Outcome) {
	if s.journal == nil {
		return
	}
	s.notes = append(s.notes, note{kind: noteJournalEntry, entry: journal.Entry{
		Country:     e.country.Name(),
		Files:       e.files,
		FilesLabel:  e.files.String(),
		Version:     s.dataVersion,
		Bytes:       e.downloaded,
		Outcome:     outcome,
		Fingerprint: fp.Transfer(e.country.Name(), e.files, s.dataVersion, e.attempt),
		FinishedAt:  time.Now(),
	}})
}

func (s *Storage) takeNotes() []note {
	notes := s.notes
	s.notes = nil
	return notes
}

func (s *Storage) dispatch(notes []note) {
	for _, n := range notes {
		switch n.kind {
		case noteCountryDownloaded:
			if s.update != nil {
				s.update(n.local)
			}
		case noteStatusChanged:
			metrics.StatusNotifications.Inc()
			for _, cb := range s.obs.snapshot() {
				if cb.status != nil {
					cb.status(n.id)
				}
			}
		case noteProgressTick:
			for _, cb := range s.obs.snapshot() {
				if cb.progress != nil {
					cb.progress(n.id, n.progress)
				}
			}
		case noteJournalEntry:
			if err := s.journal.Record(context.Background(), n.entry); err != nil {
				s.log.Error("journal record", "country", n.entry.Country, "err", err)
			}
		}
	}
}
