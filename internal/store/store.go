// Package store provides PostgreSQL persistence for the followup collection.
// Persistence is best-effort relative to in-memory state: the registry is the
// source of truth and the store converges on it through the write-behind
// syncer.
package store

import (
	"context"

	"github.com/threadkeep/threadkeep/internal/followup"
)

type Store interface {
	LoadAll(ctx context.Context) ([]*followup.Followup, []followup.Report, followup.UsageStats, error)
	SyncFollowups(ctx context.Context, followups []*followup.Followup) error
	AppendReport(ctx context.Context, report followup.Report) error
	RecordUsage(ctx context.Context, channel string) error
	Close() error
}
