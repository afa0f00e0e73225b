package storage

import (
	"sync"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
)

// StatusFunc is invoked after a country's derived status changed.
type StatusFunc func(data.CountryID)

// ProgressFunc is invoked for each progress tick of the active transfer.
type ProgressFunc func(data.CountryID, downloader.Progress)

type callbackPair struct {
	slot     int
	status   StatusFunc
	progress ProgressFunc
}

// observers is the subscription registry. Slot ids grow monotonically and are
// never reused; dispatch iterates a snapshot so callbacks may unsubscribe
// (themselves or others) while a notification is in flight.
type observers struct {
	mu   sync.Mutex
	next int
	subs []callbackPair
}

func newObservers() *observers { return &observers{} }

func (o *observers) Subscribe(status StatusFunc, progress ProgressFunc) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.subs = append(o.subs, callbackPair{slot: o.next, status: status, progress: progress})
	return o.next
}

func (o *observers) Unsubscribe(slot int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, p := range o.subs {
		if p.slot == slot {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			return
		}
	}
}

func (o *observers) snapshot() []callbackPair {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]callbackPair, len(o.subs))
	copy(out, o.subs)
	return out
}
