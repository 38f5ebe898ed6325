package alert

import (
	"sync"
	"time"

	"bizcal/internal/model"
)

// Snapshot is one complete published alert list.
type Snapshot struct {
	Alerts    []model.Alert `json:"alerts"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Feed holds the most recently published Snapshot. Publish is meant to be
// wired as the poller's only update callback; everyone else reads.
type Feed struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		snap: Snapshot{Alerts: []model.Alert{}},
		now:  time.Now,
	}
}

// Publish replaces the current snapshot wholesale.
func (f *Feed) Publish(alerts []model.Alert) {
	cp := make([]model.Alert, len(alerts))
	copy(cp, alerts)

	f.mu.Lock()
	f.snap = Snapshot{Alerts: cp, UpdatedAt: f.now()}
	f.mu.Unlock()
}

// Current returns a copy of the latest snapshot.
func (f *Feed) Current() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cp := make([]model.Alert, len(f.snap.Alerts))
	copy(cp, f.snap.Alerts)
	return Snapshot{Alerts: cp, UpdatedAt: f.snap.UpdatedAt}
}

// Lookup finds the alert for eventID in the current snapshot.
func (f *Feed) Lookup(eventID string) (model.Alert, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, a := range f.snap.Alerts {
		if a.EventID == eventID {
			return a, true
		}
	}
	return model.Alert{}, false
}
