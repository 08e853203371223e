package store

import (
	"context"
	"sync"

	"github.com/threadkeep/threadkeep/internal/followup"
)

// MockStore is an in-memory Store for tests and local runs.
type MockStore struct {
	mu sync.Mutex

	Followups []*followup.Followup
	Reports   []followup.Report
	Usage     followup.UsageStats

	SyncCalls   int
	SyncError   error
	AppendError error
	UsageError  error
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) LoadAll(ctx context.Context) ([]*followup.Followup, []followup.Report, followup.UsageStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	followups := make([]*followup.Followup, 0, len(m.Followups))
	for _, f := range m.Followups {
		followups = append(followups, f.Clone())
	}
	return followups, append([]followup.Report(nil), m.Reports...), m.Usage, nil
}

func (m *MockStore) SyncFollowups(ctx context.Context, followups []*followup.Followup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SyncCalls++
	if m.SyncError != nil {
		return m.SyncError
	}

	m.Followups = m.Followups[:0]
	for _, f := range followups {
		m.Followups = append(m.Followups, f.Clone())
	}
	return nil
}

func (m *MockStore) AppendReport(ctx context.Context, report followup.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendError != nil {
		return m.AppendError
	}
	m.Reports = append(m.Reports, report)
	return nil
}

func (m *MockStore) RecordUsage(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UsageError != nil {
		return m.UsageError
	}
	m.Usage.FollowupsCreated++
	for _, c := range m.Usage.ChannelsUsed {
		if c == channel {
			return nil
		}
	}
	m.Usage.ChannelsUsed = append(m.Usage.ChannelsUsed, channel)
	return nil
}

func (m *MockStore) GetSyncCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.SyncCalls
}

func (m *MockStore) Close() error {
	return nil
}
