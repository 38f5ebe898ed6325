package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var errEmptyTime = errors.New("empty time value")

// RawEvent is the wire shape of an event record returned by the data API.
// Dates stay strings here so one malformed record cannot fail the decode of
// the whole list.
type RawEvent struct {
	ID           EventID      `json:"id"`
	Title        string       `json:"title"`
	StartDate    string       `json:"startDate"`
	EndDate      string       `json:"endDate"`
	Category     string       `json:"category"`
	Notification *string      `json:"notification"`
	Participants Participants `json:"participants"`
}

// Event normalizes the record. Unparseable dates are left as the zero time.
func (r RawEvent) Event() Event {
	ev := Event{
		ID:           string(r.ID),
		Title:        r.Title,
		Category:     ParseCategory(r.Category),
		Participants: r.Participants,
	}
	if r.Notification != nil {
		ev.Notification = strings.TrimSpace(*r.Notification)
	}
	if ev.Participants == nil {
		ev.Participants = Participants{}
	}
	if t, err := ParseTime(r.StartDate); err == nil {
		ev.StartDate = t
	}
	if t, err := ParseTime(r.EndDate); err == nil {
		ev.EndDate = t
	}
	return ev
}

// EventID accepts both JSON strings and numbers.
type EventID string

func (id *EventID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = EventID(n.String())
	return nil
}

// ParseTime parses the date formats the data API is known to send.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errEmptyTime
	}

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	// Local date-time without offset, e.g., 2025-01-01T09:00:00
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", v, time.Local); err == nil {
		return t, nil
	}
	// Date-only, e.g., 2025-01-01
	return time.ParseInLocation("2006-01-02", v, time.Local)
}
