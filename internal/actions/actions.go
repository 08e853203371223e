// Package actions applies lifecycle transitions to followups in response to
// external events: button actions, modal submissions and threaded replies.
// Transitions re-validate record state inside the registry lock; notification
// side effects run after the mutation and never affect its outcome. Actions
// referencing unknown or resolved followups are silently ignored so duplicate
// and late clicks stay harmless.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/notify"
	"github.com/threadkeep/threadkeep/internal/registry"
	"github.com/threadkeep/threadkeep/internal/store"
)

// Blocker categories carried by the report-blocker modal.
const (
	CategoryTechnical        = "Technical"
	CategoryDependency       = "Dependency"
	CategoryWaitingOnCreator = "WAITING_ON_CREATOR"
)

var (
	ErrPastTargetDate   = errors.New("target date cannot be in the past")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidTargetFmt = errors.New("invalid target date format")
)

type Service struct {
	reg      *registry.Registry
	reports  *registry.ReportLog
	notifier notify.Notifier
	dir      notify.Directory
	store    store.Store
	persist  func()

	now func() time.Time
}

func NewService(reg *registry.Registry, reports *registry.ReportLog, notifier notify.Notifier, dir notify.Directory, st store.Store, persist func()) *Service {
	if persist == nil {
		persist = func() {}
	}
	return &Service{
		reg:      reg,
		reports:  reports,
		notifier: notifier,
		dir:      dir,
		store:    st,
		persist:  persist,
		now:      time.Now,
	}
}

// SetClock overrides the service clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

type CreateParams struct {
	Channel   string            `json:"channel"`
	ThreadTS  string            `json:"thread_ts"`
	Assignee  string            `json:"assignee"`
	CreatedBy string            `json:"created_by"`
	Priority  followup.Priority `json:"priority"`
	Note      string            `json:"note"`
	Ticket    string            `json:"ticket"`
}

// Create registers a new followup for a thread and posts the intro messages.
func (s *Service) Create(ctx context.Context, p CreateParams) (*followup.Followup, error) {
	if p.Channel == "" || p.ThreadTS == "" || p.Assignee == "" || p.CreatedBy == "" || p.Note == "" {
		return nil, fmt.Errorf("%w: channel, thread_ts, assignee, created_by and note are required", ErrInvalidInput)
	}
	if p.Priority == "" {
		p.Priority = followup.PriorityMedium
	}
	if !p.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, p.Priority)
	}

	assigneeName := s.lookupName(ctx, p.Assignee)
	creatorName := s.lookupName(ctx, p.CreatedBy)

	f := followup.New(p.Channel, p.ThreadTS, p.Assignee, assigneeName, p.CreatedBy, creatorName, p.Priority, p.Note, p.Ticket)
	s.reg.Insert(f)
	s.reports.RecordUsage(p.Channel)
	s.persist()

	go func() {
		if err := s.store.RecordUsage(context.Background(), p.Channel); err != nil {
			log.Printf("Could not record usage stats: %v", err)
		}
	}()

	dest := notify.Destination{Channel: f.Channel, ThreadTS: f.ThreadTS}
	intro := fmt.Sprintf("Hi <@%s>, a follow-up for this has been set by <@%s>. We'll check in regularly to keep things moving.\nPro tip: setting a target date means we'll stop bugging you until the final day.",
		f.Assignee, f.CreatedBy)
	s.send(ctx, dest, intro)
	s.send(ctx, dest, "What you can do: mark it done, report a blocker to pause reminders, set a target date, or flag the ticket.")

	return f.Clone(), nil
}

func (s *Service) lookupName(ctx context.Context, userID string) string {
	if s.dir == nil {
		return userID
	}
	name, _, err := s.dir.UserInfo(ctx, userID)
	if err != nil || name == "" {
		log.Printf("Could not resolve user %s: %v", userID, err)
		return userID
	}
	return name
}

// send posts a message and logs delivery failures; the caller's state change
// already happened and must not depend on delivery.
func (s *Service) send(ctx context.Context, dest notify.Destination, text string) {
	if err := s.notifier.Send(ctx, dest, notify.Message{Text: text}); err != nil {
		log.Printf("Notification to %s failed: %v", dest.Channel, err)
	}
}

func (s *Service) dm(ctx context.Context, userID, text string) {
	if err := notify.DM(ctx, s.notifier, userID, notify.Message{Text: text}); err != nil {
		log.Printf("DM to %s failed: %v", userID, err)
	}
}
