package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadkeep/threadkeep/internal/followup"
)

func newFollowup(channel, threadTS string) *followup.Followup {
	return followup.New(channel, threadTS, "UASSIGNEE", "Alex", "UCREATOR", "Sam", followup.PriorityHigh, "note", "")
}

func TestInsertAndFind(t *testing.T) {
	reg := New()
	f := newFollowup("C1", "1.1")

	reg.Insert(f)

	got, ok := reg.Find(f.ID)
	require.True(t, ok)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, 1, reg.Len())

	_, ok = reg.Find("missing")
	assert.False(t, ok)
}

func TestFind_ReturnsClone(t *testing.T) {
	reg := New()
	f := newFollowup("C1", "1.1")
	reg.Insert(f)

	got, _ := reg.Find(f.ID)
	got.PingCount = 42

	again, _ := reg.Find(f.ID)
	assert.Equal(t, 0, again.PingCount)
}

func TestFindByThread(t *testing.T) {
	reg := New()
	f1 := newFollowup("C1", "1.1")
	f2 := newFollowup("C1", "2.2")
	reg.Insert(f1)
	reg.Insert(f2)

	got, ok := reg.FindByThread("C1", "2.2")
	require.True(t, ok)
	assert.Equal(t, f2.ID, got.ID)

	_, ok = reg.FindByThread("C9", "1.1")
	assert.False(t, ok)
}

func TestSnapshot_PreservesInsertionOrder(t *testing.T) {
	reg := New()
	f1 := newFollowup("C1", "1.1")
	f2 := newFollowup("C2", "2.2")
	f3 := newFollowup("C3", "3.3")
	reg.Insert(f1)
	reg.Insert(f2)
	reg.Insert(f3)

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 3)
	assert.Equal(t, []string{f1.ID, f2.ID, f3.ID}, []string{snapshot[0].ID, snapshot[1].ID, snapshot[2].ID})
}

func TestUpdate_SeesCurrentState(t *testing.T) {
	reg := New()
	f := newFollowup("C1", "1.1")
	reg.Insert(f)

	// A stale plan based on an old snapshot must observe the resolve that
	// landed in between.
	require.NoError(t, reg.Update(f.ID, func(cur *followup.Followup) error {
		cur.Resolve(time.Now())
		return nil
	}))

	var sawResolved bool
	require.NoError(t, reg.Update(f.ID, func(cur *followup.Followup) error {
		sawResolved = cur.State == followup.StateResolved
		if !cur.Active() {
			return nil
		}
		cur.PingCount++
		return nil
	}))

	assert.True(t, sawResolved)
	got, _ := reg.Find(f.ID)
	assert.Equal(t, 0, got.PingCount)
}

func TestUpdate_UnknownID(t *testing.T) {
	reg := New()

	err := reg.Update("missing", func(*followup.Followup) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ErrorAborts(t *testing.T) {
	reg := New()
	f := newFollowup("C1", "1.1")
	reg.Insert(f)

	boom := errors.New("boom")
	err := reg.Update(f.ID, func(cur *followup.Followup) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRemove(t *testing.T) {
	reg := New()
	f1 := newFollowup("C1", "1.1")
	f2 := newFollowup("C2", "2.2")
	reg.Insert(f1)
	reg.Insert(f2)

	assert.True(t, reg.Remove(f1.ID))
	assert.False(t, reg.Remove(f1.ID))
	assert.Equal(t, 1, reg.Len())

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, f2.ID, snapshot[0].ID)
}

func TestLoad_ReplacesCollection(t *testing.T) {
	reg := New()
	reg.Insert(newFollowup("C1", "1.1"))

	f2 := newFollowup("C2", "2.2")
	f3 := newFollowup("C3", "3.3")
	reg.Load([]*followup.Followup{f2, f3})

	assert.Equal(t, 2, reg.Len())
	_, ok := reg.FindByThread("C1", "1.1")
	assert.False(t, ok)
}

func TestReportLog(t *testing.T) {
	log := NewReportLog()

	log.Append(followup.Report{Reason: followup.ReasonSpam, FollowupID: "f1", Reporter: "U1"})
	log.Append(followup.Report{Reason: followup.ReasonInvalid, FollowupID: "f2", Reporter: "U2"})

	reports := log.Snapshot()
	require.Len(t, reports, 2)
	assert.Equal(t, followup.ReasonSpam, reports[0].Reason)

	// Snapshot is detached from the log.
	reports[0].Reason = followup.ReasonOther
	assert.Equal(t, followup.ReasonSpam, log.Snapshot()[0].Reason)
}

func TestReportLog_Usage(t *testing.T) {
	log := NewReportLog()

	log.RecordUsage("C1")
	log.RecordUsage("C2")
	log.RecordUsage("C1")

	usage := log.Usage()
	assert.Equal(t, 3, usage.FollowupsCreated)
	assert.Equal(t, []string{"C1", "C2"}, usage.ChannelsUsed)
}

func TestReportLog_Load(t *testing.T) {
	log := NewReportLog()
	log.Load(
		[]followup.Report{{Reason: followup.ReasonOther, FollowupID: "f1"}},
		followup.UsageStats{FollowupsCreated: 7, ChannelsUsed: []string{"C1"}},
	)

	assert.Len(t, log.Snapshot(), 1)
	assert.Equal(t, 7, log.Usage().FollowupsCreated)
}
