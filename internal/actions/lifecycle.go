package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/metrics"
	"github.com/threadkeep/threadkeep/internal/notify"
)

// MarkDone resolves a followup from the done button. Returns false when the
// action was ignored (unknown id or not currently active).
func (s *Service) MarkDone(ctx context.Context, id, actor string) bool {
	now := s.now()
	var resolved *followup.Followup

	_ = s.reg.Update(id, func(cur *followup.Followup) error {
		if !cur.Active() {
			return nil
		}
		cur.Resolve(now)
		resolved = cur.Clone()
		return nil
	})
	if resolved == nil {
		return false
	}

	s.persist()
	metrics.RecordResolution("action")

	s.send(ctx, notify.Destination{Channel: resolved.Channel, ThreadTS: resolved.ThreadTS}, appreciation(resolved.PingCount))
	return true
}

func appreciation(pingCount int) string {
	switch {
	case pingCount <= 1:
		return "Wow! That was fast. You crushed this."
	case pingCount <= 3:
		return "Nice! Got it done efficiently."
	case pingCount <= 5:
		return "Done! Your persistence paid off."
	default:
		return "Finally there! Great work sticking with it."
	}
}

// ReportBlocker pauses nudging with a categorized reason. A
// waiting-on-creator category redirects future pings at the creator once the
// followup resumes through the scheduler's recipient rule.
func (s *Service) ReportBlocker(ctx context.Context, id, actor, category, detail string) bool {
	reason := fmt.Sprintf("[%s] %s", category, detail)
	waiting := category == CategoryWaitingOnCreator

	var blocked *followup.Followup
	_ = s.reg.Update(id, func(cur *followup.Followup) error {
		if !cur.Active() {
			return nil
		}
		cur.Block(reason, waiting)
		blocked = cur.Clone()
		return nil
	})
	if blocked == nil {
		return false
	}

	s.persist()

	s.dm(ctx, blocked.CreatedBy, fmt.Sprintf("Blocker alert from <@%s>\nNote: %s\nDetail: %s\nUse the resume action once it's cleared.", actor, blocked.Note, blocked.BlockerReason))
	s.send(ctx, notify.Destination{Channel: blocked.Channel, ThreadTS: blocked.ThreadTS}, "Got it. Reminders paused until you're ready.")
	return true
}

// Resume reactivates a paused followup. Resolved and permanently deactivated
// followups are absorbing; the click is ignored.
func (s *Service) Resume(ctx context.Context, id, actor string) bool {
	now := s.now()

	var resumed *followup.Followup
	_ = s.reg.Update(id, func(cur *followup.Followup) error {
		if cur.State == followup.StateResolved || cur.Deactivated {
			return nil
		}
		cur.Reactivate(now)
		resumed = cur.Clone()
		return nil
	})
	if resumed == nil {
		return false
	}

	s.persist()

	s.send(ctx, notify.Destination{Channel: resumed.Channel, ThreadTS: resumed.ThreadTS}, "Unblocked! Reminders back on.")
	return true
}

// SetTargetDate records an assignee-supplied date after which silencing
// lifts. Dates strictly before today are rejected; today is accepted. The
// returned bool reports whether a record was mutated.
func (s *Service) SetTargetDate(ctx context.Context, id, date string) (bool, error) {
	parsed, err := time.Parse(followup.TargetDateLayout, date)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidTargetFmt, date)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if parsed.Before(today) {
		return false, ErrPastTargetDate
	}

	var updated *followup.Followup
	_ = s.reg.Update(id, func(cur *followup.Followup) error {
		if cur.State == followup.StateResolved || cur.Deactivated {
			return nil
		}
		cur.TargetDate = date
		cur.TargetNotified = false
		updated = cur.Clone()
		return nil
	})
	if updated == nil {
		return false, nil
	}

	s.persist()

	s.send(ctx, notify.Destination{Channel: updated.Channel, ThreadTS: updated.ThreadTS},
		fmt.Sprintf("Target date set to %s. No reminders until 1 day before.", date))
	return true, nil
}
