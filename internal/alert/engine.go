package alert

import (
	"context"
	"net/url"
	"time"

	appLog "bizcal/internal/log"
	"bizcal/internal/model"
)

// EventSource supplies the materialized events whose start falls in
// [start, end].
type EventSource interface {
	FetchUpcomingEvents(ctx context.Context, start, end time.Time) ([]model.Event, error)
}

// SessionChecker reports whether a user session is available. When it is
// not, the engine yields no alerts and does not call the source.
type SessionChecker interface {
	IsSessionActive() bool
}

// Engine runs one fetch -> select -> format cycle at a time.
type Engine struct {
	source  EventSource
	session SessionChecker
	horizon time.Duration
	now     func() time.Time
}

type Option func(*Engine)

// WithHorizon overrides DefaultHorizon.
func WithHorizon(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.horizon = d
		}
	}
}

// WithClock replaces time.Now, so tests can pin the evaluation time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSession gates every cycle on an active session.
func WithSession(s SessionChecker) Option {
	return func(e *Engine) {
		e.session = s
	}
}

func NewEngine(source EventSource, opts ...Option) *Engine {
	e := &Engine{
		source:  source,
		horizon: DefaultHorizon,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Horizon returns the forward window used for fetching and selection.
func (e *Engine) Horizon() time.Duration {
	return e.horizon
}

// Cycle fetches the current window and returns the active alerts. Failures
// never escape: an unavailable session or a failed fetch yields an empty list.
func (e *Engine) Cycle(ctx context.Context) []model.Alert {
	now := e.now()

	if e.session != nil && !e.session.IsSessionActive() {
		appLog.Debug("alert cycle skipped: no active session")
		return []model.Alert{}
	}

	events, err := e.source.FetchUpcomingEvents(ctx, now, now.Add(e.horizon))
	if err != nil {
		appLog.Error("alert cycle: fetch failed", err,
			"range_start", now.Format(time.RFC3339),
			"horizon", e.horizon,
		)
		return []model.Alert{}
	}

	alerts := e.Evaluate(events, now)
	appLog.Debug("alert cycle completed", "events", len(events), "alerts", len(alerts))
	return alerts
}

// Evaluate is the pure part of a cycle: it depends only on events and now.
func (e *Engine) Evaluate(events []model.Event, now time.Time) []model.Alert {
	invalid, missingEnd := 0, 0
	for _, ev := range events {
		switch {
		case ev.StartDate.IsZero():
			invalid++
		case ev.EndDate.IsZero():
			missingEnd++
		}
	}
	if invalid > 0 {
		appLog.Warn("alert cycle: events without a valid start date were skipped", "count", invalid)
	}
	if missingEnd > 0 {
		// The end date plays no part in alerting; these events stay eligible.
		appLog.Warn("alert cycle: events without a valid end date", "count", missingEnd)
	}

	candidates := Select(events, now, e.horizon)
	alerts := make([]model.Alert, 0, len(candidates))
	for _, c := range candidates {
		style := c.Event.Category.Style()
		alerts = append(alerts, model.Alert{
			EventID:     c.Event.ID,
			Title:       c.Event.Title,
			Category:    c.Event.Category,
			Icon:        style.Icon,
			Color:       style.Color,
			TagColor:    style.TagColor,
			StartDate:   c.Event.StartDate,
			TriggerTime: c.Trigger,
			Text:        FormatAlert(c.Event, now),
		})
	}
	return alerts
}

// NavigationTarget is the app route for an alert's event detail view.
func NavigationTarget(a model.Alert) string {
	return "/calendar/event/" + url.PathEscape(a.EventID)
}
