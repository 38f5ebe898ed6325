package alert

import (
	"sort"
	"time"

	"bizcal/internal/model"
)

// DefaultHorizon is the forward limit on which events may surface at all.
const DefaultHorizon = 7 * Day

// State is the position of one event relative to its alert window at a
// given evaluation time.
type State int

const (
	// StateInvalid: the event has no usable start date.
	StateInvalid State = iota
	// StateDormant: no notification configured, or the trigger is still ahead.
	StateDormant
	// StateActive: trigger <= now < start and start is within the horizon.
	StateActive
	// StatePastStart: the event has begun.
	StatePastStart
	// StateBeyondHorizon: the trigger has passed but start is beyond the horizon.
	StateBeyondHorizon
)

func (s State) String() string {
	switch s {
	case StateInvalid:
		return "invalid"
	case StateDormant:
		return "dormant"
	case StateActive:
		return "active"
	case StatePastStart:
		return "past_start"
	case StateBeyondHorizon:
		return "beyond_horizon"
	default:
		return "unknown"
	}
}

// TriggerFor parses the event's notification label and returns its trigger
// instant. ok is false when the event has no notification.
func TriggerFor(ev model.Event) (trigger time.Time, ok bool) {
	offset, ok := ParseOffset(ev.Notification)
	if !ok {
		return time.Time{}, false
	}
	return ComputeTrigger(ev.StartDate, offset), true
}

// Classify places ev in exactly one State for the evaluation time now.
func Classify(ev model.Event, now time.Time, horizon time.Duration) State {
	if ev.StartDate.IsZero() {
		return StateInvalid
	}
	trigger, ok := TriggerFor(ev)
	if !ok {
		return StateDormant
	}
	if !now.Before(ev.StartDate) {
		return StatePastStart
	}
	if now.Before(trigger) {
		return StateDormant
	}
	// Upstream fetches are already bounded to the horizon; this check stays
	// because that bound belongs to the source, not to us.
	if ev.StartDate.Sub(now) > horizon {
		return StateBeyondHorizon
	}
	return StateActive
}

// Candidate is an Active event together with its trigger instant.
type Candidate struct {
	Event   model.Event
	Trigger time.Time
}

// Select returns the Active events for now, soonest start first. Events with
// equal start keep their input order.
func Select(events []model.Event, now time.Time, horizon time.Duration) []Candidate {
	out := make([]Candidate, 0)
	for _, ev := range events {
		if Classify(ev, now, horizon) != StateActive {
			continue
		}
		trigger, _ := TriggerFor(ev)
		out = append(out, Candidate{Event: ev, Trigger: trigger})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Event.StartDate.Before(out[j].Event.StartDate)
	})
	return out
}
