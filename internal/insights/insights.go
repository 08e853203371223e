// Package insights derives aggregate performance and escalation signals from
// a snapshot of the followup collection. Everything here is a pure read-side
// computation, safe to run concurrently with scheduling mutations.
package insights

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/threadkeep/threadkeep/internal/followup"
)

const (
	// EscalationPingThreshold flags followups whose lifetime ping count
	// signals they are stuck.
	EscalationPingThreshold = 15

	// BlockedEscalationAge flags followups blocked for too long.
	BlockedEscalationAge = 24 * time.Hour
)

type AssigneeStats struct {
	Active            int     `json:"active"`
	Completed         int     `json:"completed"`
	TotalPings        int     `json:"total_pings"`
	AvgResolutionDays float64 `json:"avg_resolution_days"`
	AvgPingsPerTask   float64 `json:"avg_pings_per_task"`
	EfficiencyScore   float64 `json:"efficiency_score"`

	totalResolutionDays float64
}

type Summary struct {
	Total             int                       `json:"total"`
	Active            int                       `json:"active"`
	Resolved          int                       `json:"resolved"`
	Blocked           int                       `json:"blocked"`
	WaitingOnCreator  int                       `json:"waiting_on_creator"`
	CompletionRate    int                       `json:"completion_rate"`
	AvgResolutionDays float64                   `json:"avg_resolution_days"`
	AvgPingsPerTask   float64                   `json:"avg_pings_per_task"`
	Assignees         map[string]*AssigneeStats `json:"assignees"`
}

// Summarize computes per-assignee and overall aggregates. Resolution time for
// entries missing a resolution timestamp falls back to now as a conservative
// estimate; resolved items always carry the timestamp, so the fallback only
// matters for malformed data.
func Summarize(followups []*followup.Followup, now time.Time) Summary {
	sum := Summary{
		Total:     len(followups),
		Assignees: make(map[string]*AssigneeStats),
	}

	var totalResolutionDays, totalPings float64
	for _, f := range followups {
		stats := sum.Assignees[f.Assignee]
		if stats == nil {
			stats = &AssigneeStats{}
			sum.Assignees[f.Assignee] = stats
		}

		switch f.State {
		case followup.StateActive:
			sum.Active++
			stats.Active++
		case followup.StateBlocked:
			sum.Blocked++
		case followup.StateWaitingOnCreator:
			sum.WaitingOnCreator++
		case followup.StateResolved:
			sum.Resolved++
			stats.Completed++
			days := resolutionDays(f, now)
			stats.totalResolutionDays += days
			stats.TotalPings += f.PingCount
			totalResolutionDays += days
			totalPings += float64(f.PingCount)
		}
	}

	for _, stats := range sum.Assignees {
		if stats.Completed == 0 {
			continue
		}
		stats.AvgResolutionDays = stats.totalResolutionDays / float64(stats.Completed)
		stats.AvgPingsPerTask = float64(stats.TotalPings) / float64(stats.Completed)
		stats.EfficiencyScore = math.Max(1, 5-stats.AvgResolutionDays/2-stats.AvgPingsPerTask/5)
	}

	if sum.Resolved > 0 {
		sum.AvgResolutionDays = totalResolutionDays / float64(sum.Resolved)
		sum.AvgPingsPerTask = totalPings / float64(sum.Resolved)
	}
	if sum.Total > 0 {
		sum.CompletionRate = int(math.Round(float64(sum.Resolved) / float64(sum.Total) * 100))
	}

	return sum
}

// EscalationCandidates returns active, unresolved followups that crossed the
// ping threshold or have been blocked for more than a day, sorted by ping
// count descending.
func EscalationCandidates(followups []*followup.Followup, now time.Time) []*followup.Followup {
	var out []*followup.Followup
	for _, f := range followups {
		if f.State == followup.StateResolved || f.Deactivated {
			continue
		}
		pingEscalation := f.PingCount >= EscalationPingThreshold
		blockedLong := f.State == followup.StateBlocked && now.Sub(f.CreatedAt) > BlockedEscalationAge
		if pingEscalation || blockedLong {
			out = append(out, f)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PingCount > out[j].PingCount
	})
	return out
}

type ReasonCount struct {
	Reason     string `json:"reason"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// ReportBreakdown groups reports by reason with a percentage of total,
// most frequent first.
func ReportBreakdown(reports []followup.Report) []ReasonCount {
	counts := make(map[string]int)
	for _, r := range reports {
		counts[r.Reason]++
	}

	total := len(reports)
	out := make([]ReasonCount, 0, len(counts))
	for reason, count := range counts {
		out = append(out, ReasonCount{
			Reason:     reason,
			Count:      count,
			Percentage: int(math.Round(float64(count) / float64(total) * 100)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Recommendations applies the advisory rule list against the computed
// signals. An empty rule set yields a single all-clear line.
func Recommendations(sum Summary, escalations []*followup.Followup, breakdown []ReasonCount) []string {
	var recs []string

	if len(escalations) > 0 {
		recs = append(recs, fmt.Sprintf("%d ticket(s) at risk - consider manual intervention or re-prioritization", len(escalations)))
	}

	if len(breakdown) > 0 {
		top := breakdown[0]
		recs = append(recs, fmt.Sprintf("Most common issue: %s (%d reports) - may indicate process problem", top.Reason, top.Count))
	}

	var noisy []string
	for assignee, stats := range sum.Assignees {
		if stats.Completed > 0 && stats.AvgPingsPerTask > 10 {
			noisy = append(noisy, assignee)
		}
	}
	sort.Strings(noisy)
	if len(noisy) > 2 {
		noisy = noisy[:2]
	}
	if len(noisy) > 0 {
		recs = append(recs, fmt.Sprintf("Check in with %v - might need support or clarity", noisy))
	}

	if sum.Total > 0 && sum.CompletionRate < 50 {
		recs = append(recs, fmt.Sprintf("Completion rate is %d%% - consider reviewing priority/scope", sum.CompletionRate))
	}

	if len(recs) == 0 {
		recs = append(recs, "Everything looks good!")
	}
	return recs
}

type AssigneeWorkload struct {
	Assignee  string `json:"assignee"`
	Name      string `json:"name"`
	Active    int    `json:"active"`
	Blocked   int    `json:"blocked"`
	Completed int    `json:"completed"`
}

// Workload computes the per-assignee task distribution, busiest first.
func Workload(followups []*followup.Followup) []AssigneeWorkload {
	byAssignee := make(map[string]*AssigneeWorkload)
	var order []string

	for _, f := range followups {
		w := byAssignee[f.Assignee]
		if w == nil {
			w = &AssigneeWorkload{Assignee: f.Assignee, Name: f.AssigneeName}
			byAssignee[f.Assignee] = w
			order = append(order, f.Assignee)
		}
		switch f.State {
		case followup.StateActive:
			w.Active++
		case followup.StateBlocked:
			w.Blocked++
		case followup.StateResolved:
			w.Completed++
		}
	}

	out := make([]AssigneeWorkload, 0, len(order))
	for _, id := range order {
		out = append(out, *byAssignee[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Active > out[j].Active
	})
	return out
}

func resolutionDays(f *followup.Followup, now time.Time) float64 {
	resolvedAt := now
	if f.ResolvedAt != nil {
		resolvedAt = *f.ResolvedAt
	}
	return resolvedAt.Sub(f.CreatedAt).Hours() / 24
}
