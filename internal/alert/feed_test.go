package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bizcal/internal/model"
)

func TestFeedPublishReplacesSnapshot(t *testing.T) {
	f := NewFeed()
	f.now = fixedClock(base)

	assert.Empty(t, f.Current().Alerts)

	in := []model.Alert{{EventID: "a"}, {EventID: "b"}}
	f.Publish(in)
	in[0].EventID = "mutated"

	snap := f.Current()
	assert.Equal(t, base, snap.UpdatedAt)
	assert.Equal(t, "a", snap.Alerts[0].EventID)

	snap.Alerts[1].EventID = "mutated"
	_, ok := f.Lookup("b")
	assert.True(t, ok)

	f.Publish(nil)
	assert.Empty(t, f.Current().Alerts)
	_, ok = f.Lookup("a")
	assert.False(t, ok)
}

func TestFeedUpdatedAtAdvances(t *testing.T) {
	f := NewFeed()
	now := base
	f.now = func() time.Time { return now }

	f.Publish(nil)
	first := f.Current().UpdatedAt
	now = now.Add(30 * time.Second)
	f.Publish(nil)
	assert.Equal(t, 30*time.Second, f.Current().UpdatedAt.Sub(first))
}
