package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Event is a single materialized calendar event as supplied by an event
// source. The alert engine treats it as read-only.
type Event struct {
	ID    string
	Title string

	// StartDate / EndDate are absolute instants. A zero StartDate means the
	// source sent a missing or unparseable date.
	StartDate time.Time
	EndDate   time.Time

	Category Category

	// Notification is the raw relative label, e.g. "10분 전" or "1일 전".
	// Empty, "없음" and "none" mean no notification is configured.
	Notification string

	Participants Participants
}

// Alert is derived from an Event for one evaluation cycle and then discarded.
type Alert struct {
	EventID     string    `json:"event_id"`
	Title       string    `json:"title"`
	Category    Category  `json:"category"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	TagColor    string    `json:"tag_color"`
	StartDate   time.Time `json:"start_date"`
	TriggerTime time.Time `json:"trigger_time"`
	Text        string    `json:"text"`
}

// Participants is the canonical ordered list of participant display names.
//
// The data API sends either a comma-joined string ("김승준, 장서진") or a JSON
// array; both decode into the same trimmed, non-empty sequence.
type Participants []string

// ParseParticipants splits a comma-joined participant string.
func ParseParticipants(s string) Participants {
	return NormalizeParticipants(strings.Split(s, ","))
}

// NormalizeParticipants trims every name and drops empty ones, keeping order.
func NormalizeParticipants(names []string) Participants {
	out := make(Participants, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (p *Participants) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Participants{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = ParseParticipants(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		// Non-string elements carry no usable name and are dropped.
		names := make([]string, 0, len(items))
		for _, item := range items {
			var name string
			if json.Unmarshal(item, &name) == nil {
				names = append(names, name)
			}
		}
		*p = NormalizeParticipants(names)
	default:
		// Anything else (numbers, objects) carries no usable names.
		*p = Participants{}
	}
	return nil
}
