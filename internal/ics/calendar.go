package ics

import (
	"context"
	"errors"
	"time"

	appLog "bizcal/internal/log"
	"bizcal/internal/model"
)

// Calendar serves upcoming events from a set of ICS subscriptions.
type Calendar struct {
	fetcher  *Fetcher
	sources  []Source
	location *time.Location
}

func NewCalendar(fetcher *Fetcher, sources []Source, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{fetcher: fetcher, sources: sources, location: loc}
}

// FetchUpcomingEvents fetches, parses and expands every source. It fails
// only when no source could be read at all.
func (c *Calendar) FetchUpcomingEvents(ctx context.Context, start, end time.Time) ([]model.Event, error) {
	if len(c.sources) == 0 {
		return []model.Event{}, nil
	}

	results, errs := c.fetcher.FetchAll(ctx, c.sources)
	if len(results) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	parsed := make([]ParsedEvent, 0)
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed for source", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	return Expand(parsed, ExpandConfig{
		Location:   c.location,
		RangeStart: start,
		RangeEnd:   end,
	})
}
