package alert

import (
	"strconv"
	"strings"
	"time"

	"bizcal/internal/model"
)

// Tier identifies which countdown phrasing applies to a remaining duration.
type Tier int

const (
	TierNow Tier = iota
	TierMinutes
	TierHours
	TierDays
	TierWeeks
)

// TierFor picks the coarsest unit that fits diff. Every non-negative diff
// maps to exactly one tier.
func TierFor(diff time.Duration) Tier {
	switch {
	case diff >= Week:
		return TierWeeks
	case diff >= Day:
		return TierDays
	case diff >= Hour:
		return TierHours
	case diff >= Minute:
		return TierMinutes
	default:
		return TierNow
	}
}

// ParticipantClause renders "A 님과의" or "A, B, C 님과의". No participants
// yields an empty clause.
func ParticipantClause(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, ", ") + " 님과의"
}

// TimeClause renders the remaining time until start, e.g. "1시간 30분 전입니다".
// Two adjacent units at most; remainders never spill into a third unit.
func TimeClause(start, now time.Time) string {
	if !now.Before(start) {
		return "지났습니다"
	}
	diff := start.Sub(now)

	switch TierFor(diff) {
	case TierWeeks:
		return pair(int64(diff/Week), "주", int64(diff%Week/Day), "일")
	case TierDays:
		return pair(int64(diff/Day), "일", int64(diff%Day/Hour), "시간")
	case TierHours:
		return pair(int64(diff/Hour), "시간", int64(diff%Hour/Minute), "분")
	case TierMinutes:
		return strconv.FormatInt(int64(diff/Minute), 10) + "분 전입니다"
	default:
		return "지금입니다"
	}
}

func pair(major int64, majorUnit string, minor int64, minorUnit string) string {
	s := strconv.FormatInt(major, 10) + majorUnit
	if minor > 0 {
		s += " " + strconv.FormatInt(minor, 10) + minorUnit
	}
	return s + " 전입니다"
}

// FormatAlert builds the full alert sentence for ev at time now, e.g.
// "김승준, 장서진 님과의 기획 회의 일정이 30분 전입니다."
func FormatAlert(ev model.Event, now time.Time) string {
	var b strings.Builder
	if clause := ParticipantClause(ev.Participants); clause != "" {
		b.WriteString(clause)
		b.WriteString(" ")
	}
	b.WriteString(ev.Title)
	b.WriteString(" 일정이 ")
	b.WriteString(TimeClause(ev.StartDate, now))
	b.WriteString(".")
	return b.String()
}
