package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/registry"
)

func TestWriteback_TriggerSyncs(t *testing.T) {
	mock := NewMockStore()
	reg := registry.New()
	f := followup.New("C1", "1.1", "UA", "", "UC", "", followup.PriorityHigh, "note", "")
	reg.Insert(f)

	wb := NewWriteback(mock, reg, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wb.Run(ctx)

	wb.Trigger()

	assert.Eventually(t, func() bool {
		return mock.GetSyncCallCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	followups, _, _, err := mock.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, followups, 1)
	assert.Equal(t, f.ID, followups[0].ID)

	wb.Stop()
}

func TestWriteback_PeriodicSync(t *testing.T) {
	mock := NewMockStore()
	reg := registry.New()

	wb := NewWriteback(mock, reg, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wb.Run(ctx)

	assert.Eventually(t, func() bool {
		return mock.GetSyncCallCount() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	wb.Stop()
}

func TestWriteback_FinalSyncOnStop(t *testing.T) {
	mock := NewMockStore()
	reg := registry.New()
	reg.Insert(followup.New("C1", "1.1", "UA", "", "UC", "", followup.PriorityHigh, "note", ""))

	wb := NewWriteback(mock, reg, time.Hour)
	done := make(chan struct{})
	go func() {
		wb.Run(context.Background())
		close(done)
	}()

	wb.Stop()
	<-done

	assert.Equal(t, 1, mock.GetSyncCallCount())
}

func TestWriteback_TriggerNeverBlocks(t *testing.T) {
	wb := NewWriteback(NewMockStore(), registry.New(), time.Hour)

	// No Run loop draining; repeated triggers must coalesce, not block.
	for i := 0; i < 10; i++ {
		wb.Trigger()
	}
}
