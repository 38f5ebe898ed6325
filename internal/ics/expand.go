package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"bizcal/internal/alert"
	appLog "bizcal/internal/log"
	"bizcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// Location that instance times are converted to. Defaults to time.Local.
	Location *time.Location

	// RangeStart / RangeEnd bound instance start times (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules.
	MaxOccurrencesPerEvent int
}

// Expand turns parsed VEVENTs into concrete event instances whose start lies
// within the configured range, applying RRULE, EXDATE and RECURRENCE-ID
// overrides. Results are ordered by start time.
func Expand(events []ParsedEvent, cfg ExpandConfig) ([]model.Event, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	bases := make([]ParsedEvent, 0, len(events))
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	out := make([]model.Event, 0)
	for _, ev := range bases {
		if ev.RawRRule == "" {
			if inRange(ev.Start, cfg) {
				out = append(out, toEvent(ev, ev.Start, ev.End, false, cfg.Location))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.UID], cfg)...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.Event {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Warn("ics: unparseable RRULE, using first instance only", "uid", ev.UID, "rrule", ev.RawRRule, "reason", err)
		if inRange(ev.Start, cfg) {
			return []model.Event{toEvent(ev, ev.Start, ev.End, false, cfg.Location)}
		}
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Warn("ics: occurrences truncated", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(starts))
	for _, start := range starts {
		instance, s, e := ev, start, start.Add(dur)
		if o, ok := findOverride(overrides, start); ok {
			instance, s, e = o, o.Start, o.End
		}
		out = append(out, toEvent(instance, s, e, true, cfg.Location))
	}
	return out
}

func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return ParsedEvent{}, false
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && !t.After(cfg.RangeEnd)
}

// toEvent maps one instance to the engine's event model. Recurring instances
// get the instance start appended to the UID so IDs stay unique in a set.
func toEvent(ev ParsedEvent, start, end time.Time, recurring bool, loc *time.Location) model.Event {
	id := ev.UID
	if recurring {
		id += "@" + start.UTC().Format("20060102T150405Z")
	}

	category := ev.Source.Category
	if len(ev.Categories) > 0 {
		category = model.ParseCategory(ev.Categories[0])
	}
	if category == "" {
		category = model.CategoryOther
	}

	notification := ""
	if ev.HasAlarm {
		if label, ok := alert.OffsetLabel(ev.AlarmOffset.Truncate(time.Minute)); ok {
			notification = label
		}
	}

	return model.Event{
		ID:           id,
		Title:        ev.Summary,
		StartDate:    start.In(loc),
		EndDate:      end.In(loc),
		Category:     category,
		Notification: notification,
		Participants: model.NormalizeParticipants(ev.Attendees),
	}
}
