package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/threadkeep/threadkeep/internal/followup"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]*followup.Followup, []followup.Report, followup.UsageStats, error) {
	followups, err := s.loadFollowups(ctx)
	if err != nil {
		return nil, nil, followup.UsageStats{}, err
	}

	reports, err := s.loadReports(ctx)
	if err != nil {
		return nil, nil, followup.UsageStats{}, err
	}

	usage, err := s.loadUsage(ctx)
	if err != nil {
		return nil, nil, followup.UsageStats{}, err
	}

	return followups, reports, usage, nil
}

func (s *PostgresStore) loadFollowups(ctx context.Context) ([]*followup.Followup, error) {
	query := `
		SELECT
			id, channel, thread_ts, assignee, assignee_name,
			created_by, creator_name, priority, note, ticket,
			state, blocker_reason, target_date, target_notified,
			ping_count, daily_ping_count, escalated, purge_warned,
			deactivated, created_at, last_sent, resolved_at
		FROM followups
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load followups: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Printf("failed to close rows: %v", closeErr)
		}
	}()

	var followups []*followup.Followup
	for rows.Next() {
		var f followup.Followup
		var ticket, blockerReason, targetDate sql.NullString
		var resolvedAt sql.NullTime

		if err := rows.Scan(
			&f.ID, &f.Channel, &f.ThreadTS, &f.Assignee, &f.AssigneeName,
			&f.CreatedBy, &f.CreatorName, &f.Priority, &f.Note, &ticket,
			&f.State, &blockerReason, &targetDate, &f.TargetNotified,
			&f.PingCount, &f.DailyPingCount, &f.Escalated, &f.PurgeWarned,
			&f.Deactivated, &f.CreatedAt, &f.LastSent, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan followup: %w", err)
		}

		f.Ticket = ticket.String
		f.BlockerReason = blockerReason.String
		f.TargetDate = targetDate.String
		if resolvedAt.Valid {
			f.ResolvedAt = &resolvedAt.Time
		}

		followups = append(followups, &f)
	}

	return followups, rows.Err()
}

func (s *PostgresStore) loadReports(ctx context.Context) ([]followup.Report, error) {
	query := `
		SELECT reason, followup_id, reporter, created_by, ticket, created_at
		FROM reports
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Printf("failed to close rows: %v", closeErr)
		}
	}()

	var reports []followup.Report
	for rows.Next() {
		var r followup.Report
		if err := rows.Scan(&r.Reason, &r.FollowupID, &r.Reporter, &r.CreatedBy, &r.Ticket, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

func (s *PostgresStore) loadUsage(ctx context.Context) (followup.UsageStats, error) {
	query := `SELECT followups_created, channels_used FROM usage_stats WHERE key = 'main'`

	var usage followup.UsageStats
	var channels pq.StringArray
	err := s.db.QueryRowContext(ctx, query).Scan(&usage.FollowupsCreated, &channels)
	if err == sql.ErrNoRows {
		return followup.UsageStats{}, nil
	}
	if err != nil {
		return followup.UsageStats{}, fmt.Errorf("load usage stats: %w", err)
	}

	usage.ChannelsUsed = channels
	return usage, nil
}

// SyncFollowups upserts the given collection and prunes rows no longer
// present in memory, so the table converges on the registry.
func (s *PostgresStore) SyncFollowups(ctx context.Context, followups []*followup.Followup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	upsert := `
		INSERT INTO followups (
			id, channel, thread_ts, assignee, assignee_name,
			created_by, creator_name, priority, note, ticket,
			state, blocker_reason, target_date, target_notified,
			ping_count, daily_ping_count, escalated, purge_warned,
			deactivated, created_at, last_sent, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			blocker_reason = EXCLUDED.blocker_reason,
			target_date = EXCLUDED.target_date,
			target_notified = EXCLUDED.target_notified,
			ping_count = EXCLUDED.ping_count,
			daily_ping_count = EXCLUDED.daily_ping_count,
			escalated = EXCLUDED.escalated,
			purge_warned = EXCLUDED.purge_warned,
			deactivated = EXCLUDED.deactivated,
			last_sent = EXCLUDED.last_sent,
			resolved_at = EXCLUDED.resolved_at
	`

	ids := make([]string, 0, len(followups))
	for _, f := range followups {
		ids = append(ids, f.ID)

		var resolvedAt any
		if f.ResolvedAt != nil {
			resolvedAt = *f.ResolvedAt
		}

		if _, err := tx.ExecContext(
			ctx,
			upsert,
			f.ID, f.Channel, f.ThreadTS, f.Assignee, f.AssigneeName,
			f.CreatedBy, f.CreatorName, f.Priority, f.Note, f.Ticket,
			f.State, f.BlockerReason, f.TargetDate, f.TargetNotified,
			f.PingCount, f.DailyPingCount, f.Escalated, f.PurgeWarned,
			f.Deactivated, f.CreatedAt, f.LastSent, resolvedAt,
		); err != nil {
			return fmt.Errorf("upsert followup %s: %w", f.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM followups WHERE NOT (id = ANY($1))`, pq.Array(ids)); err != nil {
		return fmt.Errorf("prune followups: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) AppendReport(ctx context.Context, report followup.Report) error {
	query := `
		INSERT INTO reports (reason, followup_id, reporter, created_by, ticket, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, report.Reason, report.FollowupID, report.Reporter, report.CreatedBy, report.Ticket, report.Timestamp)
	return err
}

func (s *PostgresStore) RecordUsage(ctx context.Context, channel string) error {
	query := `
		INSERT INTO usage_stats (key, followups_created, channels_used)
		VALUES ('main', 1, ARRAY[$1])
		ON CONFLICT (key) DO UPDATE SET
			followups_created = usage_stats.followups_created + 1,
			channels_used = CASE
				WHEN $1 = ANY(usage_stats.channels_used) THEN usage_stats.channels_used
				ELSE array_append(usage_stats.channels_used, $1)
			END
	`
	_, err := s.db.ExecContext(ctx, query, channel)
	return err
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
