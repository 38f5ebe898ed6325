package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizcal/internal/model"
)

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//bizcal//test//KO
BEGIN:VEVENT
UID:meeting-1
DTSTART:20250301T010000Z
DTEND:20250301T020000Z
SUMMARY:기획 회의
CATEGORIES:미팅
ATTENDEE;CN=김승준:mailto:sj@example.com
ATTENDEE:mailto:jang@example.com
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:-PT30M
END:VALARM
END:VEVENT
BEGIN:VEVENT
UID:standup
DTSTART:20250302T000000Z
DTEND:20250302T001500Z
SUMMARY:Standup
RRULE:FREQ=DAILY;COUNT=5
EXDATE:20250303T000000Z
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:-P1D
END:VALARM
END:VEVENT
BEGIN:VEVENT
DTSTART:20250304T090000Z
DTEND:20250304T100000Z
SUMMARY:No UID
END:VEVENT
END:VCALENDAR
`

var (
	windowStart = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = windowStart.Add(7 * 24 * time.Hour)
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseICS(t *testing.T) {
	src := Source{ID: "work", URL: "https://cal.example.com/x.ics", Category: model.CategoryWork}
	events, err := ParseICS(src, crlf(sampleICS))
	require.NoError(t, err)
	require.Len(t, events, 3)

	first := events[0]
	assert.Equal(t, "meeting-1", first.UID)
	assert.Equal(t, []string{"미팅"}, first.Categories)
	assert.Equal(t, []string{"김승준", "jang"}, first.Attendees)
	assert.True(t, first.HasAlarm)
	assert.Equal(t, 30*time.Minute, first.AlarmOffset)

	noUID := events[2]
	assert.NotEmpty(t, noUID.UID)
	again, err := ParseICS(src, crlf(sampleICS))
	require.NoError(t, err)
	assert.Equal(t, noUID.UID, again[2].UID, "fallback UID must be stable")
}

func TestExpandToEvents(t *testing.T) {
	src := Source{ID: "work", URL: "https://cal.example.com/x.ics", Category: model.CategoryWork}
	parsed, err := ParseICS(src, crlf(sampleICS))
	require.NoError(t, err)

	events, err := Expand(parsed, ExpandConfig{Location: time.UTC, RangeStart: windowStart, RangeEnd: windowEnd})
	require.NoError(t, err)

	var ids []string
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	// 5 daily standups minus one EXDATE, plus two single events.
	require.Len(t, events, 6, ids)

	meeting := events[0]
	assert.Equal(t, "meeting-1", meeting.ID)
	assert.Equal(t, "기획 회의", meeting.Title)
	assert.Equal(t, model.CategoryMeeting, meeting.Category)
	assert.Equal(t, "30분 전", meeting.Notification)
	assert.Equal(t, model.Participants{"김승준", "jang"}, meeting.Participants)

	standup := events[1]
	assert.Equal(t, "standup@20250302T000000Z", standup.ID)
	assert.Equal(t, model.CategoryWork, standup.Category, "source default applies without CATEGORIES")
	assert.Equal(t, "1일 전", standup.Notification)
	assert.Equal(t, 15*time.Minute, standup.EndDate.Sub(standup.StartDate))

	for _, ev := range events {
		assert.NotEqual(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC), ev.StartDate, "EXDATE instance must be removed")
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := Expand(nil, ExpandConfig{RangeStart: windowEnd, RangeEnd: windowStart})
	assert.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"-PT15M", -15 * time.Minute, true},
		{"-P1D", -24 * time.Hour, true},
		{"-P1W", -7 * 24 * time.Hour, true},
		{"-PT1H30M", -90 * time.Minute, true},
		{"PT0S", 0, true},
		{"+PT5M", 5 * time.Minute, true},
		{"15M", 0, false},
		{"-PT", 0, false},
		{"-P1H", 0, false},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCalendarFetchUsesCacheOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write(crlf(sampleICS))
	}))
	defer srv.Close()

	fetcher := NewFetcher(t.TempDir(), srv.Client())
	cal := NewCalendar(fetcher, []Source{{ID: "work", URL: srv.URL + "/cal.ics"}}, time.UTC)

	first, err := cal.FetchUpcomingEvents(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, first, 6)

	res, err := fetcher.FetchOne(context.Background(), Source{ID: "work", URL: srv.URL + "/cal.ics"})
	require.NoError(t, err)
	assert.True(t, res.FromCache, "304 must be served from cache")

	fail.Store(true)
	again, err := cal.FetchUpcomingEvents(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestCalendarFetchFailsWhenNothingReadable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cal := NewCalendar(NewFetcher(t.TempDir(), srv.Client()), []Source{{ID: "a", URL: srv.URL}}, time.UTC)
	_, err := cal.FetchUpcomingEvents(context.Background(), windowStart, windowEnd)
	assert.Error(t, err)

	empty := NewCalendar(NewFetcher(t.TempDir(), nil), nil, nil)
	events, err := empty.FetchUpcomingEvents(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://cal.example.com/...(redacted)", redactURL("https://cal.example.com/private/abc.ics?token=1"))
	assert.Equal(t, "https://cal.example.com/...(redacted)", redactURL("https://cal.example.com?token=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}
