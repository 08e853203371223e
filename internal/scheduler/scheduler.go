// Package scheduler implements the per-minute pass that decides, for every
// active followup, whether to nudge, silence, escalate or deactivate.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/threadkeep/threadkeep/internal/config"
	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/insights"
	"github.com/threadkeep/threadkeep/internal/metrics"
	"github.com/threadkeep/threadkeep/internal/notify"
	"github.com/threadkeep/threadkeep/internal/registry"
)

type Scheduler struct {
	reg        *registry.Registry
	notifier   notify.Notifier
	schedule   config.Schedule
	dailyLimit int
	adminID    string
}

func New(reg *registry.Registry, notifier notify.Notifier, schedule config.Schedule, dailyLimit int, adminID string) *Scheduler {
	return &Scheduler{
		reg:        reg,
		notifier:   notifier,
		schedule:   schedule,
		dailyLimit: dailyLimit,
		adminID:    adminID,
	}
}

// Tick runs one scheduling pass. The working-hours gate short-circuits the
// whole pass before any followup is touched; the remaining rules apply per
// followup in a fixed order, most restrictive first.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	if !s.schedule.InWorkingHours(now) {
		return
	}

	for _, f := range s.reg.Snapshot() {
		// The state check is the authoritative skip condition; Active()
		// derives from it, so blocked and waiting followups never reach
		// the interval check.
		if !f.Active() {
			continue
		}

		// Medium priority is eligible only during the designated
		// morning hour, regardless of elapsed interval.
		if f.Priority == followup.PriorityMedium && now.Hour() != s.schedule.MorningHour {
			continue
		}

		if target, ok := f.TargetDateValue(); ok {
			diffDays := target.Sub(now).Hours() / 24
			if diffDays > 1 {
				continue
			}
			if diffDays > 0 {
				if !f.TargetNotified {
					s.sendTargetNotice(ctx, f)
				}
				// No regular pings during the final day.
				continue
			}
			// Date reached or passed: fall through to interval pinging.
		}

		recipient := f.Assignee
		if f.State == followup.StateWaitingOnCreator {
			recipient = f.CreatedBy
		}

		if now.Sub(f.LastSent) < f.Priority.Interval() {
			continue
		}
		if f.DailyPingCount >= s.dailyLimit {
			continue
		}

		s.sendPing(ctx, f, recipient, now)
	}
}

func (s *Scheduler) sendPing(ctx context.Context, f *followup.Followup, recipient string, now time.Time) {
	dest := notify.Destination{Channel: f.Channel, ThreadTS: f.ThreadTS}
	err := s.notifier.Send(ctx, dest, notify.Message{Text: pingText(recipient, f, now)})
	if errors.Is(err, notify.ErrChannelNotFound) {
		s.deactivate(ctx, f)
		return
	}
	if err != nil {
		metrics.RecordDeliveryFailure(false)
		log.Printf("Ping for %s failed, will retry next tick: %v", f.ID, err)
		return
	}

	escalate := false
	updateErr := s.reg.Update(f.ID, func(cur *followup.Followup) error {
		// Re-validate: an action may have landed since the snapshot.
		if !cur.Active() {
			return nil
		}
		cur.LastSent = now
		cur.PingCount++
		cur.DailyPingCount++
		if !cur.Escalated && cur.PingCount >= insights.EscalationPingThreshold {
			cur.Escalated = true
			escalate = true
		}
		return nil
	})
	if updateErr != nil {
		return
	}

	metrics.RecordPing(f.Priority)

	if escalate {
		s.sendEscalationAlert(ctx, f)
	}
}

func (s *Scheduler) sendTargetNotice(ctx context.Context, f *followup.Followup) {
	dest := notify.Destination{Channel: f.Channel, ThreadTS: f.ThreadTS}
	err := s.notifier.Send(ctx, dest, notify.Message{Text: "Target date is tomorrow! Make sure this is ready."})
	if errors.Is(err, notify.ErrChannelNotFound) {
		s.deactivate(ctx, f)
		return
	}
	if err != nil {
		metrics.RecordDeliveryFailure(false)
		log.Printf("Target-date notice for %s failed: %v", f.ID, err)
		return
	}

	_ = s.reg.Update(f.ID, func(cur *followup.Followup) error {
		if !cur.Active() {
			return nil
		}
		cur.TargetNotified = true
		return nil
	})
	metrics.TargetDateNotices.Inc()
}

// deactivate stops a followup permanently after its destination disappeared
// and tells the creator once.
func (s *Scheduler) deactivate(ctx context.Context, f *followup.Followup) {
	metrics.RecordDeliveryFailure(true)
	log.Printf("Channel %s not found, ending follow-up %s", f.Channel, f.ID)

	_ = s.reg.Update(f.ID, func(cur *followup.Followup) error {
		cur.Deactivated = true
		return nil
	})

	msg := fmt.Sprintf("The follow-up for %q has been stopped because the channel is no longer accessible.", f.Note)
	if err := notify.DM(ctx, s.notifier, f.CreatedBy, notify.Message{Text: msg}); err != nil {
		log.Printf("Could not notify creator %s about stopped follow-up: %v", f.CreatedBy, err)
	}
}

func (s *Scheduler) sendEscalationAlert(ctx context.Context, f *followup.Followup) {
	if s.adminID == "" {
		return
	}

	cur, ok := s.reg.Find(f.ID)
	if !ok {
		cur = f
	}
	text := fmt.Sprintf("Ticket in limbo: %q for <@%s> has reached %d pings.\nPriority: %s | Assigned by: <@%s>\n%s",
		cur.Note, cur.Assignee, cur.PingCount, cur.Priority, cur.CreatedBy, cur.ThreadLink())

	if err := notify.DM(ctx, s.notifier, s.adminID, notify.Message{Text: text}); err != nil {
		log.Printf("Could not send escalation alert for %s: %v", f.ID, err)
		return
	}
	metrics.EscalationAlerts.Inc()
}

func pingText(recipient string, f *followup.Followup, now time.Time) string {
	greet := greeting(now)
	if f.TargetDate != "" {
		return fmt.Sprintf("%s <@%s>, quick status update on this? We have it targeted for %s.", greet, recipient, f.TargetDate)
	}
	return fmt.Sprintf("%s <@%s>, any progress? If you can, drop a target date so we can plan around it.", greet, recipient)
}

func greeting(now time.Time) string {
	hour := now.Hour()
	switch {
	case hour < 12:
		return "Morning caffeine kick!"
	case hour <= 14:
		return "Hope lunch was great!"
	default:
		return "Evening vibes."
	}
}
