package followup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFollowup(t *testing.T) {
	f := New("C123", "1700000000.000100", "UASSIGNEE", "Alex", "UCREATOR", "Sam", PriorityHigh, "Fix the login bug", "https://tickets/42")

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, StateActive, f.State)
	assert.True(t, f.Active())
	assert.Equal(t, PriorityHigh, f.Priority)
	assert.Equal(t, 0, f.PingCount)
	assert.Nil(t, f.ResolvedAt)
	assert.Equal(t, f.CreatedAt, f.LastSent)
}

func TestPriorityInterval(t *testing.T) {
	tests := []struct {
		priority Priority
		expected time.Duration
	}{
		{PriorityCritical, 120 * time.Minute},
		{PriorityHigh, 360 * time.Minute},
		{PriorityMedium, 1440 * time.Minute},
		{PriorityLow, 2880 * time.Minute},
		{Priority("Unknown"), 1440 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.priority.Interval(), "priority %s", tt.priority)
	}
}

func TestResolve_SetsTimestampOnce(t *testing.T) {
	f := New("C1", "1.1", "UA", "", "UC", "", PriorityMedium, "note", "")

	first := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	f.Resolve(first)

	require.NotNil(t, f.ResolvedAt)
	assert.Equal(t, StateResolved, f.State)
	assert.False(t, f.Active())
	assert.Equal(t, first, *f.ResolvedAt)

	f.Resolve(first.Add(time.Hour))
	assert.Equal(t, first, *f.ResolvedAt, "repeated resolve must not move the timestamp")
}

func TestBlockAndReactivate(t *testing.T) {
	f := New("C1", "1.1", "UA", "", "UC", "", PriorityCritical, "note", "")
	f.PingCount = 4
	f.TargetNotified = true

	f.Block("[Technical] waiting on infra", false)
	assert.Equal(t, StateBlocked, f.State)
	assert.False(t, f.Active())
	assert.Equal(t, "[Technical] waiting on infra", f.BlockerReason)

	resumeAt := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	f.Reactivate(resumeAt)
	assert.Equal(t, StateActive, f.State)
	assert.True(t, f.Active())
	assert.Empty(t, f.BlockerReason)
	assert.Equal(t, resumeAt, f.LastSent)
	assert.False(t, f.TargetNotified)
	assert.Equal(t, 4, f.PingCount, "ping count never resets")
}

func TestBlock_WaitingOnCreator(t *testing.T) {
	f := New("C1", "1.1", "UA", "", "UC", "", PriorityHigh, "note", "")

	f.Block("[WAITING_ON_CREATOR] need repro steps", true)
	assert.Equal(t, StateWaitingOnCreator, f.State)
	assert.False(t, f.Active())
}

func TestActive_DeactivatedWins(t *testing.T) {
	f := New("C1", "1.1", "UA", "", "UC", "", PriorityHigh, "note", "")
	f.Deactivated = true

	assert.Equal(t, StateActive, f.State)
	assert.False(t, f.Active())
}

func TestTargetDateValue(t *testing.T) {
	f := New("C1", "1.1", "UA", "", "UC", "", PriorityHigh, "note", "")

	_, ok := f.TargetDateValue()
	assert.False(t, ok)

	f.TargetDate = "2026-04-15"
	d, ok := f.TargetDateValue()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), d)

	f.TargetDate = "not-a-date"
	_, ok = f.TargetDateValue()
	assert.False(t, ok)
}

func TestThreadLink(t *testing.T) {
	f := New("C0AB12CD3", "1700000000.000100", "UA", "", "UC", "", PriorityHigh, "note", "")

	assert.Equal(t, "https://slack.com/archives/C0AB12CD3/p1700000000000100", f.ThreadLink())
}

func TestClone_Independent(t *testing.T) {
	f := New("C1", "1.1", "UA", "", "UC", "", PriorityHigh, "note", "")
	f.Resolve(time.Now())

	c := f.Clone()
	c.PingCount = 99
	later := c.ResolvedAt.Add(time.Hour)
	*c.ResolvedAt = later

	assert.Equal(t, 0, f.PingCount)
	assert.NotEqual(t, later, *f.ResolvedAt)
}

func TestJSONRoundTrip(t *testing.T) {
	f := New("C1", "1.1", "UA", "Alex", "UC", "Sam", PriorityLow, "note", "ticket")
	f.Block("[Dependency] upstream release", false)

	data, err := f.ToJSON()
	require.NoError(t, err)

	restored, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, f.ID, restored.ID)
	assert.Equal(t, StateBlocked, restored.State)
	assert.Equal(t, f.BlockerReason, restored.BlockerReason)
}

func TestIsResolutionReply(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
	}{
		{"done", true},
		{"It's DONE, shipping now", true},
		{"fixed in the latest build", true},
		{"marking this resolved", true},
		{"still working on it", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, IsResolutionReply(tt.text), "text %q", tt.text)
	}
}
