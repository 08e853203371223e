package actions

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/metrics"
	"github.com/threadkeep/threadkeep/internal/notify"
)

var reportAcks = map[string]string{
	followup.ReasonInvalid:       "Got it. Removing invalid ticket from tracking.",
	followup.ReasonDeprioritized: "Understood. Priorities shift. No hard feelings.",
	followup.ReasonSpam:          "Flagged as spam. Keeping the bot clean.",
	followup.ReasonOther:         "Thanks for the feedback. Admin will review.",
}

// ReportIssue appends a report record for a followup and notifies both
// parties. The report log is append-only; the followup itself is not mutated.
func (s *Service) ReportIssue(ctx context.Context, id, reporter, reason string) bool {
	f, ok := s.reg.Find(id)
	if !ok || !f.Active() {
		return false
	}

	normalized := strings.ToUpper(reason)
	if _, known := reportAcks[normalized]; !known {
		normalized = followup.ReasonOther
	}

	report := followup.Report{
		Reason:     normalized,
		FollowupID: f.ID,
		Reporter:   reporter,
		CreatedBy:  f.CreatedBy,
		Ticket:     f.Note,
		Timestamp:  s.now(),
	}
	s.reports.Append(report)

	go func() {
		if err := s.store.AppendReport(context.Background(), report); err != nil {
			log.Printf("Could not persist report for %s: %v", f.ID, err)
		}
	}()

	s.send(ctx, notify.Destination{Channel: f.Channel, ThreadTS: f.ThreadTS}, reportAcks[normalized])
	s.dm(ctx, f.CreatedBy, fmt.Sprintf("Your follow-up for %q was flagged. Please ensure you're using this bot responsibly.", f.Note))
	return true
}

// HandleReply resolves a followup when its assignee answers in the thread
// with a resolution keyword. Replies from anyone else, or without a keyword,
// are ignored.
func (s *Service) HandleReply(ctx context.Context, channel, threadTS, user, text string) bool {
	f, ok := s.reg.FindByThread(channel, threadTS)
	if !ok || !f.Active() || user != f.Assignee {
		return false
	}
	if !followup.IsResolutionReply(text) {
		return false
	}

	now := s.now()
	var resolved *followup.Followup
	_ = s.reg.Update(f.ID, func(cur *followup.Followup) error {
		if !cur.Active() || user != cur.Assignee {
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
	metrics.RecordResolution("reply")

	s.send(ctx, notify.Destination{Channel: resolved.Channel, ThreadTS: resolved.ThreadTS},
		fmt.Sprintf("Resolved! Nice work <@%s>.", resolved.Assignee))
	return true
}
