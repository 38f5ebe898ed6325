package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseOffset(t *testing.T) {
	tests := []struct {
		label  string
		want   time.Duration
		wantOK bool
	}{
		{"10분 전", 10 * time.Minute, true},
		{"2시간 전", 2 * time.Hour, true},
		{"1일 전", 24 * time.Hour, true},
		{"1주 전", 7 * 24 * time.Hour, true},
		{" 3 시간 전 ", 3 * time.Hour, true},
		{"5분전", 5 * time.Minute, true},
		{"0분 전", 0, true},
		{"10 minutes before", 10 * time.Minute, true},
		{"1 hour before", time.Hour, true},
		{"2 Weeks Before", 14 * 24 * time.Hour, true},
		{"", 0, false},
		{"없음", 0, false},
		{"none", 0, false},
		{"1.5시간 전", 0, false},
		{"10초 전", 0, false},
		{"-5분 전", 0, false},
		{"분 전", 0, false},
		{"10분", 0, false},
		{"soon", 0, false},
		{"15251주 전", 0, false},
		{"30500주 전", 0, false},
		{"9223372036854775807분 전", 0, false},
		{"99999999999999999999분 전", 0, false},
		{"15250주 전", 15250 * 7 * 24 * time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := ParseOffset(tt.label)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetLabel(t *testing.T) {
	tests := []struct {
		d      time.Duration
		want   string
		wantOK bool
	}{
		{10 * time.Minute, "10분 전", true},
		{90 * time.Minute, "90분 전", true},
		{2 * time.Hour, "2시간 전", true},
		{48 * time.Hour, "2일 전", true},
		{14 * 24 * time.Hour, "2주 전", true},
		{0, "0분 전", true},
		{30 * time.Second, "", false},
		{-time.Minute, "", false},
	}
	for _, tt := range tests {
		got, ok := OffsetLabel(tt.d)
		assert.Equal(t, tt.wantOK, ok, tt.d)
		assert.Equal(t, tt.want, got, tt.d)
		if ok {
			back, ok := ParseOffset(got)
			assert.True(t, ok)
			assert.Equal(t, tt.d, back)
		}
	}
}

func TestComputeTriggerMayBeInPast(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 22, 10, 0, 0, 0, time.UTC), ComputeTrigger(start, Week))
	assert.Equal(t, start, ComputeTrigger(start, 0))
}
