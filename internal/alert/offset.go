package alert

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	Minute = time.Minute
	Hour   = time.Hour
	Day    = 24 * time.Hour
	Week   = 7 * Day
)

// unitSuffixes maps every accepted unit spelling to its duration. Korean
// suffixes are the ones the app writes; English spellings are accepted for
// records created by other clients.
var unitSuffixes = []struct {
	suffix string
	unit   time.Duration
}{
	{"분", Minute},
	{"시간", Hour},
	{"일", Day},
	{"주", Week},
	{"minutes", Minute},
	{"minute", Minute},
	{"hours", Hour},
	{"hour", Hour},
	{"days", Day},
	{"day", Day},
	{"weeks", Week},
	{"week", Week},
}

// ParseOffset turns a notification label such as "10분 전" or
// "2 hours before" into a duration. The second result is false when no
// notification is configured or the label cannot be understood.
func ParseOffset(label string) (time.Duration, bool) {
	s := strings.TrimSpace(label)
	switch strings.ToLower(s) {
	case "", "없음", "none":
		return 0, false
	}

	switch {
	case strings.HasSuffix(s, "전"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "전"))
	case strings.HasSuffix(strings.ToLower(s), "before"):
		s = strings.TrimSpace(s[:len(s)-len("before")])
	default:
		return 0, false
	}

	lower := strings.ToLower(s)
	for _, u := range unitSuffixes {
		if !strings.HasSuffix(lower, u.suffix) {
			continue
		}
		num := strings.TrimSpace(s[:len(s)-len(u.suffix)])
		n, err := strconv.Atoi(num)
		if err != nil || n < 0 || int64(n) > math.MaxInt64/int64(u.unit) {
			return 0, false
		}
		return time.Duration(n) * u.unit, true
	}
	return 0, false
}

// OffsetLabel renders d as the Korean label the app stores, using the
// largest unit that divides d exactly.
func OffsetLabel(d time.Duration) (string, bool) {
	if d < 0 || d%Minute != 0 {
		return "", false
	}
	switch {
	case d == 0:
		return "0분 전", true
	case d%Week == 0:
		return strconv.FormatInt(int64(d/Week), 10) + "주 전", true
	case d%Day == 0:
		return strconv.FormatInt(int64(d/Day), 10) + "일 전", true
	case d%Hour == 0:
		return strconv.FormatInt(int64(d/Hour), 10) + "시간 전", true
	default:
		return strconv.FormatInt(int64(d/Minute), 10) + "분 전", true
	}
}

// ComputeTrigger returns the instant at which an event starting at start
// becomes due for an alert. The result may lie in the past.
func ComputeTrigger(start time.Time, offset time.Duration) time.Time {
	return start.Add(-offset)
}
