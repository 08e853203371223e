package registry

import (
	"sync"

	"github.com/threadkeep/threadkeep/internal/followup"
)

// ReportLog caches the append-only report records and global usage counters
// in memory, mirroring what the store holds durably.
type ReportLog struct {
	mu      sync.RWMutex
	reports []followup.Report
	usage   followup.UsageStats
}

func NewReportLog() *ReportLog {
	return &ReportLog{}
}

func (l *ReportLog) Load(reports []followup.Report, usage followup.UsageStats) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reports = append([]followup.Report(nil), reports...)
	l.usage = followup.UsageStats{
		FollowupsCreated: usage.FollowupsCreated,
		ChannelsUsed:     append([]string(nil), usage.ChannelsUsed...),
	}
}

func (l *ReportLog) Append(r followup.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.reports = append(l.reports, r)
}

func (l *ReportLog) Snapshot() []followup.Report {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]followup.Report(nil), l.reports...)
}

// RecordUsage bumps the created counter and tracks distinct channels.
func (l *ReportLog) RecordUsage(channel string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.usage.FollowupsCreated++
	for _, c := range l.usage.ChannelsUsed {
		if c == channel {
			return
		}
	}
	l.usage.ChannelsUsed = append(l.usage.ChannelsUsed, channel)
}

func (l *ReportLog) Usage() followup.UsageStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return followup.UsageStats{
		FollowupsCreated: l.usage.FollowupsCreated,
		ChannelsUsed:     append([]string(nil), l.usage.ChannelsUsed...),
	}
}
