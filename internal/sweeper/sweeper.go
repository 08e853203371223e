// Package sweeper implements the daily retention pass: warn creators about
// aging resolved followups, then archive and permanently delete followups
// past the retention window. All outbound sends go through the delivery
// queue, spaced out to respect destination rate limits.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/threadkeep/threadkeep/internal/delivery"
	"github.com/threadkeep/threadkeep/internal/export"
	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/metrics"
	"github.com/threadkeep/threadkeep/internal/notify"
	"github.com/threadkeep/threadkeep/internal/registry"
)

const (
	// WarnAfterDays opens the purge-warning window for resolved followups.
	WarnAfterDays = 25

	// PurgeAfterDays is the retention limit for resolved and blocked
	// followups.
	PurgeAfterDays = 30
)

type Sweeper struct {
	reg     *registry.Registry
	reports *registry.ReportLog
	queue   *delivery.Queue
	dir     notify.Directory
	stagger time.Duration
	persist func()
}

func New(reg *registry.Registry, reports *registry.ReportLog, queue *delivery.Queue, dir notify.Directory, stagger time.Duration, persist func()) *Sweeper {
	if persist == nil {
		persist = func() {}
	}
	return &Sweeper{
		reg:     reg,
		reports: reports,
		queue:   queue,
		dir:     dir,
		stagger: stagger,
		persist: persist,
	}
}

// Run executes one retention pass. Decisions are recomputed from current
// state every day, so a crash mid-pass resumes cleanly on the next run.
func (s *Sweeper) Run(ctx context.Context, now time.Time) {
	snapshot := s.reg.Snapshot()
	reports := s.reports.Snapshot()

	changed := false
	warned := 0
	purged := 0

	for _, f := range snapshot {
		age := ageDays(f, now)

		if f.State == followup.StateResolved && age >= WarnAfterDays && age < PurgeAfterDays && !f.PurgeWarned {
			s.queueWarning(f, age, warned)
			warned++
			changed = true
			continue
		}

		eligible := f.State == followup.StateResolved || f.State == followup.StateBlocked
		if eligible && age >= PurgeAfterDays {
			if s.purge(ctx, f, snapshot, reports, purged) {
				purged++
				changed = true
			}
		}
	}

	if changed {
		s.persist()
	}
	if warned > 0 || purged > 0 {
		log.Printf("Retention sweep: %d warned, %d purged", warned, purged)
	}
}

func (s *Sweeper) queueWarning(f *followup.Followup, age, index int) {
	text := fmt.Sprintf("Hi <@%s>, your follow-up %q is %d days old and marked %s. It will be automatically purged in %d day(s). Request an export if you'd like to keep a record.",
		f.CreatedBy, f.Note, age, f.State, PurgeAfterDays-age)

	job := delivery.NewJob(delivery.KindChat, map[string]any{
		"user": f.CreatedBy,
		"text": text,
	}, time.Now().Add(time.Duration(index)*s.stagger))

	if err := s.queue.Enqueue(job); err != nil {
		log.Printf("Could not queue purge warning for %s: %v", f.ID, err)
		return
	}

	// Latch so the warning fires once per followup, not once per day.
	_ = s.reg.Update(f.ID, func(cur *followup.Followup) error {
		if cur.State != followup.StateResolved {
			return nil
		}
		cur.PurgeWarned = true
		return nil
	})
	metrics.PurgeWarnings.Inc()
}

// purge queues the final archive export for the creator, then removes the
// record. The export is the only archive, so when its delivery cannot even be
// queued the record stays for the next sweep.
func (s *Sweeper) purge(ctx context.Context, f *followup.Followup, snapshot []*followup.Followup, reports []followup.Report, index int) bool {
	csvContent := export.CreatorCSV(snapshot, reports, f.CreatedBy)
	if csvContent != "" {
		email, err := s.creatorEmail(ctx, f.CreatedBy)
		if err != nil {
			log.Printf("Could not resolve archive recipient for %s, deferring purge: %v", f.ID, err)
			return false
		}

		job := delivery.NewJob(delivery.KindEmail, map[string]any{
			"to":       email,
			"subject":  "Final archive: follow-up purged",
			"body":     fmt.Sprintf("The follow-up %q is being purged from the system. The attached export is the only archive.", f.Note),
			"filename": fmt.Sprintf("Final_Archive_%s.csv", time.Now().Format("2006-01-02")),
			"csv":      csvContent,
		}, time.Now().Add(time.Duration(index)*s.stagger))

		if err := s.queue.Enqueue(job); err != nil {
			log.Printf("Could not queue final archive for %s, deferring purge: %v", f.ID, err)
			return false
		}
	}

	if !s.reg.Remove(f.ID) {
		return false
	}
	metrics.Purges.Inc()
	return true
}

func (s *Sweeper) creatorEmail(ctx context.Context, userID string) (string, error) {
	if s.dir == nil {
		return "", fmt.Errorf("no directory configured")
	}
	_, email, err := s.dir.UserInfo(ctx, userID)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", fmt.Errorf("no email on profile for %s", userID)
	}
	return email, nil
}

// ageDays uses the resolution timestamp for resolved followups and creation
// time otherwise.
func ageDays(f *followup.Followup, now time.Time) int {
	ref := f.CreatedAt
	if f.State == followup.StateResolved && f.ResolvedAt != nil {
		ref = *f.ResolvedAt
	}
	return int(now.Sub(ref).Hours() / 24)
}
