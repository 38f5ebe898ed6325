package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "bizcal/internal/log"
)

// ParsedEvent is a normalized VEVENT before recurrence expansion.
type ParsedEvent struct {
	Source Source

	UID string

	Summary    string
	Categories []string
	Attendees  []string

	Start  time.Time
	End    time.Time
	AllDay bool

	// AlarmOffset is the lead time of the first start-relative VALARM.
	AlarmOffset time.Duration
	HasAlarm    bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if this VEVENT overrides one instance
	IsOverride bool
}

// ParseICS parses one ICS payload. A VEVENT that cannot be read is logged
// and skipped; the rest of the calendar is still returned.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "url", redactURL(src.URL), "reason", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else {
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(p.Value, "T") {
			out.AllDay = true
		}
	}
	if out.AllDay && !out.End.After(out.Start) {
		out.End = out.Start.Add(24 * time.Hour)
	}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil && p.Value != "" {
		out.UID = p.Value
	} else {
		// Stable across refreshes so the alert's event ID does not churn.
		key := src.URL + "|" + out.Start.UTC().Format(time.RFC3339) + "|" + out.Summary
		out.UID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
	}

	for _, p := range ve.GetProperties("CATEGORIES") {
		for _, c := range strings.Split(p.Value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out.Categories = append(out.Categories, c)
			}
		}
	}

	for _, p := range ve.GetProperties("ATTENDEE") {
		if name := attendeeName(p.Value, p.ICalParameters["CN"]); name != "" {
			out.Attendees = append(out.Attendees, name)
		}
	}

	out.AlarmOffset, out.HasAlarm = firstAlarmOffset(ve, out.Start)

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// attendeeName prefers the CN parameter and falls back to the local part of
// the mailto address.
func attendeeName(value string, cn []string) string {
	if len(cn) > 0 {
		if name := strings.Trim(strings.TrimSpace(cn[0]), `"`); name != "" {
			return name
		}
	}
	addr := strings.TrimSpace(value)
	if len(addr) >= 7 && strings.EqualFold(addr[:7], "mailto:") {
		addr = addr[7:]
	}
	if i := strings.IndexByte(addr, '@'); i > 0 {
		addr = addr[:i]
	}
	return addr
}

// firstAlarmOffset returns the lead time of the first VALARM whose trigger
// is before the event start. END-related triggers are ignored.
func firstAlarmOffset(ve *ical.VEvent, start time.Time) (time.Duration, bool) {
	for _, c := range ve.Components {
		alarm, ok := c.(*ical.VAlarm)
		if !ok {
			continue
		}
		p := alarm.GetProperty("TRIGGER")
		if p == nil {
			continue
		}
		if rel := p.ICalParameters["RELATED"]; len(rel) > 0 && strings.EqualFold(rel[0], "END") {
			continue
		}

		if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE-TIME") {
			at, err := parseICSTime(p.Value)
			if err != nil || at.After(start) {
				continue
			}
			return start.Sub(at), true
		}

		d, err := parseDuration(p.Value)
		if err != nil || d > 0 {
			continue
		}
		return -d, true
	}
	return 0, false
}

// parseDuration parses an RFC 5545 duration such as "-PT15M", "-P1D" or
// "P1W". The result is signed.
func parseDuration(v string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	s = s[1:]

	var total time.Duration
	inTime, seen := false, false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			if inTime || num != "" {
				return 0, fmt.Errorf("invalid duration %q", v)
			}
			inTime = true
		default:
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", v)
			}
			num = ""
			var unit time.Duration
			switch {
			case r == 'W' && !inTime:
				unit = 7 * 24 * time.Hour
			case r == 'D' && !inTime:
				unit = 24 * time.Hour
			case r == 'H' && inTime:
				unit = time.Hour
			case r == 'M' && inTime:
				unit = time.Minute
			case r == 'S' && inTime:
				unit = time.Second
			default:
				return 0, fmt.Errorf("invalid duration %q", v)
			}
			total += time.Duration(n) * unit
			seen = true
		}
	}
	if num != "" || !seen {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return sign * total, nil
}

// parseICSTime parses the basic DATE / DATE-TIME forms used by EXDATE,
// RECURRENCE-ID and absolute TRIGGER values.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
