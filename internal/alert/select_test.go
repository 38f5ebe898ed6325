package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizcal/internal/model"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func event(id string, start time.Time, notification string) model.Event {
	return model.Event{
		ID:           id,
		Title:        "일정 " + id,
		StartDate:    start,
		EndDate:      start.Add(time.Hour),
		Category:     model.CategoryOther,
		Notification: notification,
		Participants: model.Participants{},
	}
}

func TestClassifyWithoutNotificationIsNeverActive(t *testing.T) {
	for _, label := range []string{"", "없음", "none", "언젠가"} {
		ev := event("a", base.Add(2*time.Hour), label)
		for offset := -48 * time.Hour; offset <= 48*time.Hour; offset += 15 * time.Minute {
			assert.NotEqual(t, StateActive, Classify(ev, base.Add(offset), DefaultHorizon), "label=%q offset=%s", label, offset)
		}
	}
}

func TestClassifyWindowBoundaries(t *testing.T) {
	// start = T+2h, "1시간 전" -> trigger = T+1h
	ev := event("a", base.Add(2*time.Hour), "1시간 전")

	assert.Equal(t, StateDormant, Classify(ev, base, DefaultHorizon))
	assert.Equal(t, StateDormant, Classify(ev, base.Add(time.Hour-time.Nanosecond), DefaultHorizon))
	assert.Equal(t, StateActive, Classify(ev, base.Add(time.Hour), DefaultHorizon))
	assert.Equal(t, StateActive, Classify(ev, base.Add(2*time.Hour-time.Nanosecond), DefaultHorizon))
	assert.Equal(t, StatePastStart, Classify(ev, base.Add(2*time.Hour), DefaultHorizon))
	assert.Equal(t, StatePastStart, Classify(ev, base.Add(3*time.Hour), DefaultHorizon))
}

func TestClassifyHorizonCap(t *testing.T) {
	// start = T+9d, "1일 전" -> trigger at T+8d, at which point start is 1d out.
	ev := event("a", base.Add(9*Day), "1일 전")
	assert.Equal(t, StateDormant, Classify(ev, base, DefaultHorizon))
	assert.Equal(t, StateActive, Classify(ev, base.Add(8*Day), DefaultHorizon))

	// A two-week offset triggers long before the event enters the horizon.
	far := event("b", base.Add(9*Day), "2주 전")
	assert.Equal(t, StateBeyondHorizon, Classify(far, base, DefaultHorizon))
	assert.Equal(t, StateBeyondHorizon, Classify(far, base.Add(2*Day-time.Nanosecond), DefaultHorizon))
	assert.Equal(t, StateActive, Classify(far, base.Add(2*Day), DefaultHorizon))

	// A custom horizon moves the cap.
	assert.Equal(t, StateActive, Classify(far, base, 10*Day))
}

func TestClassifyInvalidDate(t *testing.T) {
	ev := event("a", time.Time{}, "10분 전")
	assert.Equal(t, StateInvalid, Classify(ev, base, DefaultHorizon))
}

func TestSelectSkipsInvalidAndKeepsOthers(t *testing.T) {
	events := []model.Event{
		event("broken", time.Time{}, "10분 전"),
		event("ok", base.Add(5*time.Minute), "10분 전"),
		event("quiet", base.Add(5*time.Minute), "없음"),
	}
	got := Select(events, base, DefaultHorizon)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].Event.ID)
	assert.Equal(t, base.Add(-5*time.Minute), got[0].Trigger)
}

func TestSelectOrdersByStartAndIsStable(t *testing.T) {
	same := base.Add(30 * time.Minute)
	events := []model.Event{
		event("late", base.Add(3*time.Hour), "1일 전"),
		event("b", same, "1시간 전"),
		event("c", same, "1시간 전"),
		event("soon", base.Add(10*time.Minute), "1시간 전"),
	}

	ids := func(cs []Candidate) []string {
		out := make([]string, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.Event.ID)
		}
		return out
	}

	assert.Equal(t, []string{"soon", "b", "c", "late"}, ids(Select(events, base, DefaultHorizon)))

	events[1], events[2] = events[2], events[1]
	assert.Equal(t, []string{"soon", "c", "b", "late"}, ids(Select(events, base, DefaultHorizon)))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "beyond_horizon", StateBeyondHorizon.String())
	assert.Equal(t, "unknown", State(99).String())
}
