// Package export produces the tabular artifacts the bot hands back to
// creators and the admin: per-creator task exports and the admin-wide report,
// delivered as email attachments.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/insights"
)

// CreatorCSV renders every followup created by creatorID. Returns "" when the
// creator has nothing tracked.
func CreatorCSV(followups []*followup.Followup, reports []followup.Report, creatorID string) string {
	var mine []*followup.Followup
	for _, f := range followups {
		if f.CreatedBy == creatorID {
			mine = append(mine, f)
		}
	}
	if len(mine) == 0 {
		return ""
	}

	reasonByID := make(map[string]string)
	for _, r := range reports {
		if _, seen := reasonByID[r.FollowupID]; !seen {
			reasonByID[r.FollowupID] = r.Reason
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Created At", "Assignee", "Status", "Pings", "Priority", "Target Date", "Report Reason", "Ticket Link", "Thread Link", "Note"})

	for _, f := range mine {
		reason := reasonByID[f.ID]
		if reason == "" {
			reason = "None"
		}
		_ = w.Write([]string{
			f.CreatedAt.Format("2006-01-02"),
			f.AssigneeName,
			string(f.State),
			fmt.Sprintf("%d", f.PingCount),
			orDefault(string(f.Priority), "N/A"),
			orDefault(f.TargetDate, "Not Set"),
			reason,
			orDefault(f.Ticket, "Not Provided"),
			f.ThreadLink(),
			f.Note,
		})
	}

	w.Flush()
	return buf.String()
}

// AdminCSV renders the full collection with per-assignee efficiency and
// escalation markers for the admin report.
func AdminCSV(followups []*followup.Followup, summary insights.Summary, escalations []*followup.Followup, now time.Time) string {
	escalated := make(map[string]bool, len(escalations))
	for _, f := range escalations {
		escalated[f.ID] = true
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Ticket", "Assignee", "Reporter", "Status", "Pings", "Priority", "Created", "Resolution Days", "Channel", "Thread Link", "Blocker Reason", "Escalated", "Assignee Efficiency", "Ticket Link"})

	for _, f := range followups {
		resolutionDays := "Active"
		if f.State == followup.StateResolved {
			resolvedAt := now
			if f.ResolvedAt != nil {
				resolvedAt = *f.ResolvedAt
			}
			resolutionDays = fmt.Sprintf("%.1f", resolvedAt.Sub(f.CreatedAt).Hours()/24)
		}

		efficiency := "N/A"
		if stats, ok := summary.Assignees[f.Assignee]; ok && stats.Completed > 0 {
			efficiency = fmt.Sprintf("%.1f", stats.EfficiencyScore)
		}

		mark := "NO"
		if escalated[f.ID] {
			mark = "YES"
		}

		_ = w.Write([]string{
			f.Note,
			f.AssigneeName,
			f.CreatorName,
			string(f.State),
			fmt.Sprintf("%d", f.PingCount),
			orDefault(string(f.Priority), "N/A"),
			f.CreatedAt.Format("2006-01-02"),
			resolutionDays,
			f.Channel,
			f.ThreadLink(),
			orDefault(f.BlockerReason, "None"),
			mark,
			efficiency,
			orDefault(f.Ticket, "N/A"),
		})
	}

	w.Flush()
	return buf.String()
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
