// Package followup defines the core follow-up domain model shared by the
// scheduler, lifecycle actions, analyzer and persistence layers.
package followup

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	State    string
	Priority string
)

const (
	StateActive           State = "ACTIVE"
	StateBlocked          State = "BLOCKED"
	StateWaitingOnCreator State = "WAITING_ON_CREATOR"
	StateResolved         State = "RESOLVED"
)

const (
	PriorityCritical Priority = "Critical"
	PriorityHigh     Priority = "High"
	PriorityMedium   Priority = "Medium"
	PriorityLow      Priority = "Low"
)

// TargetDateLayout is the wire format for target dates (date picker output).
const TargetDateLayout = "2006-01-02"

// Interval returns the nudge cadence for a priority level.
func (p Priority) Interval() time.Duration {
	switch p {
	case PriorityCritical:
		return 120 * time.Minute
	case PriorityHigh:
		return 360 * time.Minute
	case PriorityMedium:
		return 1440 * time.Minute
	case PriorityLow:
		return 2880 * time.Minute
	default:
		return 1440 * time.Minute
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Followup is one tracked follow-up bound to a conversation thread and an
// assignee. Channel, thread, parties, priority and note are immutable after
// creation; everything else is mutated in place by the engine and the
// lifecycle actions.
type Followup struct {
	ID           string `json:"id"`
	Channel      string `json:"channel"`
	ThreadTS     string `json:"thread_ts"`
	Assignee     string `json:"assignee"`
	AssigneeName string `json:"assignee_name"`
	CreatedBy    string `json:"created_by"`
	CreatorName  string `json:"creator_name"`

	Priority Priority `json:"priority"`
	Note     string   `json:"note"`
	Ticket   string   `json:"ticket,omitempty"`

	State         State  `json:"state"`
	BlockerReason string `json:"blocker_reason,omitempty"`

	TargetDate     string `json:"target_date,omitempty"`
	TargetNotified bool   `json:"target_notified"`

	PingCount      int  `json:"ping_count"`
	DailyPingCount int  `json:"daily_ping_count"`
	Escalated      bool `json:"escalated"`
	PurgeWarned    bool `json:"purge_warned"`

	// Deactivated marks a followup the scheduler must never ping again,
	// set when the destination channel no longer exists.
	Deactivated bool `json:"deactivated"`

	CreatedAt  time.Time  `json:"created_at"`
	LastSent   time.Time  `json:"last_sent"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func New(channel, threadTS, assignee, assigneeName, createdBy, creatorName string, priority Priority, note, ticket string) *Followup {
	now := time.Now()
	return &Followup{
		ID:           uuid.New().String(),
		Channel:      channel,
		ThreadTS:     threadTS,
		Assignee:     assignee,
		AssigneeName: assigneeName,
		CreatedBy:    createdBy,
		CreatorName:  creatorName,
		Priority:     priority,
		Note:         note,
		Ticket:       ticket,
		State:        StateActive,
		CreatedAt:    now,
		LastSent:     now,
	}
}

// Active reports whether the scheduler should consider this followup at all.
// It is derived from state so the flag and the state can never disagree.
func (f *Followup) Active() bool {
	return f.State == StateActive && !f.Deactivated
}

// Resolve moves the followup to its terminal state. The resolution timestamp
// is set exactly once; repeated calls are no-ops.
func (f *Followup) Resolve(at time.Time) {
	if f.State == StateResolved {
		return
	}
	f.State = StateResolved
	f.BlockerReason = ""
	ts := at
	f.ResolvedAt = &ts
}

// Block pauses nudges with a recorded reason. waiting selects the
// waiting-on-creator variant, which redirects pings at the creator once
// resumed via the scheduler's recipient rule.
func (f *Followup) Block(reason string, waiting bool) {
	if waiting {
		f.State = StateWaitingOnCreator
	} else {
		f.State = StateBlocked
	}
	f.BlockerReason = reason
}

// Reactivate resumes nudging. lastSent resets so the next ping waits a full
// interval, and the target-date notice re-arms.
func (f *Followup) Reactivate(now time.Time) {
	f.State = StateActive
	f.BlockerReason = ""
	f.LastSent = now
	f.TargetNotified = false
}

// TargetDateValue parses the target date, reporting false when none is set.
func (f *Followup) TargetDateValue() (time.Time, bool) {
	if f.TargetDate == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(TargetDateLayout, f.TargetDate)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// ThreadLink builds the deep link back to the original conversation.
func (f *Followup) ThreadLink() string {
	return fmt.Sprintf("https://slack.com/archives/%s/p%s", f.Channel, strings.ReplaceAll(f.ThreadTS, ".", ""))
}

// Clone returns a shallow copy safe to read outside the registry lock.
func (f *Followup) Clone() *Followup {
	c := *f
	if f.ResolvedAt != nil {
		ts := *f.ResolvedAt
		c.ResolvedAt = &ts
	}
	return &c
}

func (f *Followup) ToJSON() (string, error) {
	data, err := json.Marshal(f)
	return string(data), err
}

func FromJSON(data string) (*Followup, error) {
	var f Followup
	err := json.Unmarshal([]byte(data), &f)
	return &f, err
}

var resolutionKeywords = []string{"done", "fixed", "resolved"}

// IsResolutionReply reports whether a threaded reply should resolve the
// followup. Matching is case-insensitive substring, per the fixed keyword set.
func IsResolutionReply(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range resolutionKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
