package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizcal/internal/model"
)

type recorder struct {
	mu      sync.Mutex
	updates [][]model.Alert
}

func (r *recorder) onUpdate(alerts []model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, alerts)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

// gatedSource blocks inside FetchUpcomingEvents while gate is set, until
// release is closed or the context ends.
type gatedSource struct {
	mu      sync.Mutex
	gate    bool
	entered chan struct{}
	release chan struct{}
	events  []model.Event
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (s *gatedSource) block() {
	s.mu.Lock()
	s.gate = true
	s.mu.Unlock()
}

func (s *gatedSource) FetchUpcomingEvents(ctx context.Context, _, _ time.Time) ([]model.Event, error) {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate {
		s.entered <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.events, nil
}

func TestPollerStartRunsFirstCycleImmediately(t *testing.T) {
	rec := &recorder{}
	src := &fakeSource{events: []model.Event{event("a", base.Add(5*time.Minute), "10분 전")}}
	p := NewPoller(NewEngine(src, WithClock(fixedClock(base))), time.Hour, rec.onUpdate)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Equal(t, 1, rec.count())
	require.Len(t, rec.updates[0], 1)
	assert.Equal(t, "a", rec.updates[0][0].EventID)

	assert.ErrorIs(t, p.Start(context.Background()), ErrPollerStarted)
}

func TestPollerRefreshAndStop(t *testing.T) {
	rec := &recorder{}
	src := &fakeSource{}
	p := NewPoller(NewEngine(src, WithClock(fixedClock(base))), time.Hour, rec.onUpdate)

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Refresh(context.Background()))
	assert.Equal(t, 2, rec.count())

	p.Stop()
	p.Stop()

	assert.False(t, p.Refresh(context.Background()))
	assert.Equal(t, 2, rec.count())
	assert.ErrorIs(t, p.Start(context.Background()), ErrPollerStopped)
}

func TestPollerSkipsOverlappingCycle(t *testing.T) {
	rec := &recorder{}
	src := newGatedSource()
	src.block()
	p := NewPoller(NewEngine(src, WithClock(fixedClock(base))), time.Hour, rec.onUpdate)

	done := make(chan bool)
	go func() { done <- p.Refresh(context.Background()) }()
	<-src.entered

	assert.False(t, p.Refresh(context.Background()), "second cycle must be skipped, not queued")

	close(src.release)
	assert.True(t, <-done)
	assert.Equal(t, 1, rec.count())
}

func TestPollerStopDuringFetchSuppressesUpdate(t *testing.T) {
	rec := &recorder{}
	src := newGatedSource()
	p := NewPoller(NewEngine(src, WithClock(fixedClock(base))), time.Hour, rec.onUpdate)

	require.NoError(t, p.Start(context.Background()))
	require.Equal(t, 1, rec.count())

	src.block()
	done := make(chan bool)
	go func() { done <- p.Refresh(context.Background()) }()
	<-src.entered

	p.Stop()
	assert.False(t, <-done)
	assert.Equal(t, 1, rec.count())
}

func TestPollerParentCancelStops(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller(NewEngine(&fakeSource{}, WithClock(fixedClock(base))), time.Hour, rec.onUpdate)

	require.NoError(t, p.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return !p.Refresh(context.Background())
	}, time.Second, 10*time.Millisecond)
}

func TestPollerTicksOnSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real one-second tick")
	}
	rec := &recorder{}
	p := NewPoller(NewEngine(&fakeSource{}, WithClock(fixedClock(base))), time.Second, rec.onUpdate)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool { return rec.count() >= 2 }, 3*time.Second, 50*time.Millisecond)
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(NewEngine(&fakeSource{}), 0, nil)
	assert.Equal(t, DefaultInterval, p.Interval())
	assert.True(t, p.Refresh(context.Background()))
}
