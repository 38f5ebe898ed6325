package alert

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "bizcal/internal/log"
	"bizcal/internal/model"
)

// DefaultInterval is how often the alert list is recomputed.
const DefaultInterval = 30 * time.Second

var (
	ErrPollerStarted = errors.New("poller already started")
	ErrPollerStopped = errors.New("poller stopped")
)

// Poller re-runs the engine on a fixed cadence and hands each complete
// alert list to onUpdate.
//
// onUpdate runs while the poller holds its lock, so it must not call Stop.
type Poller struct {
	engine   *Engine
	interval time.Duration
	onUpdate func([]model.Alert)

	// inFlight is set for the duration of a cycle; ticks and refreshes that
	// find it set are dropped rather than queued.
	inFlight atomic.Bool

	mu      sync.Mutex
	started bool
	stopped bool
	sched   *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPoller creates a stopped poller. A non-positive interval selects
// DefaultInterval; cron schedules have one-second resolution.
func NewPoller(engine *Engine, interval time.Duration, onUpdate func([]model.Alert)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if onUpdate == nil {
		onUpdate = func([]model.Alert) {}
	}
	return &Poller{
		engine:   engine,
		interval: interval,
		onUpdate: onUpdate,
	}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start runs one cycle synchronously, then schedules a cycle every interval
// until Stop is called or ctx is canceled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPollerStopped
	}
	if p.started {
		p.mu.Unlock()
		return ErrPollerStarted
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	runCtx := p.ctx
	p.mu.Unlock()

	p.runCycle(runCtx)

	logger := appLog.CronLogger{}
	sched := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	sched.Schedule(cron.Every(p.interval), cron.FuncJob(func() {
		p.runCycle(runCtx)
	}))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		// Stop arrived during the first cycle.
		return nil
	}
	p.sched = sched
	sched.Start()
	appLog.Info("alert poller started", "interval", p.interval)

	// Parent cancellation behaves like Stop.
	context.AfterFunc(runCtx, p.Stop)
	return nil
}

// Refresh runs an on-demand cycle. It reports false when the cycle was
// skipped because another one is in flight or the poller is stopped.
func (p *Poller) Refresh(ctx context.Context) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	base := p.ctx
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if base != nil {
		stop := context.AfterFunc(base, cancel)
		defer stop()
	}
	return p.runCycle(ctx)
}

// Stop halts the schedule and cancels any in-flight fetch. Once Stop
// returns, onUpdate is never invoked again. Calling Stop more than once is
// harmless.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	sched := p.sched
	p.sched = nil
	p.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	appLog.Info("alert poller stopped")
}

func (p *Poller) runCycle(ctx context.Context) bool {
	if !p.inFlight.CompareAndSwap(false, true) {
		appLog.Debug("alert cycle skipped: previous cycle still in flight")
		return false
	}
	defer p.inFlight.Store(false)

	if ctx.Err() != nil {
		return false
	}

	alerts := p.engine.Cycle(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.onUpdate(alerts)
	return true
}
