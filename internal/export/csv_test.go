package export

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadkeep/threadkeep/internal/followup"
	"github.com/threadkeep/threadkeep/internal/insights"
)

var now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func parseCSV(t *testing.T, content string) [][]string {
	t.Helper()

	records, err := csv.NewReader(strings.NewReader(content)).ReadAll()
	require.NoError(t, err)
	return records
}

func sampleFollowup(createdBy string) *followup.Followup {
	f := followup.New("C1", "1700000000.000100", "UA", "Alex", createdBy, "Sam", followup.PriorityHigh, "Fix login", "")
	f.CreatedAt = now.Add(-72 * time.Hour)
	f.PingCount = 4
	return f
}

func TestCreatorCSV(t *testing.T) {
	mine := sampleFollowup("UCREATOR")
	mine.TargetDate = "2026-03-10"
	theirs := sampleFollowup("USOMEONE")

	reports := []followup.Report{{Reason: followup.ReasonSpam, FollowupID: mine.ID}}

	content := CreatorCSV([]*followup.Followup{mine, theirs}, reports, "UCREATOR")
	records := parseCSV(t, content)

	require.Len(t, records, 2, "header plus the creator's single row")
	assert.Equal(t, "Created At", records[0][0])

	row := records[1]
	assert.Equal(t, "Alex", row[1])
	assert.Equal(t, "ACTIVE", row[2])
	assert.Equal(t, "4", row[3])
	assert.Equal(t, "High", row[4])
	assert.Equal(t, "2026-03-10", row[5])
	assert.Equal(t, "SPAM", row[6])
	assert.Equal(t, "Not Provided", row[7])
	assert.Contains(t, row[8], "https://slack.com/archives/C1/p")
	assert.Equal(t, "Fix login", row[9])
}

func TestCreatorCSV_Defaults(t *testing.T) {
	f := sampleFollowup("UCREATOR")

	content := CreatorCSV([]*followup.Followup{f}, nil, "UCREATOR")
	records := parseCSV(t, content)

	row := records[1]
	assert.Equal(t, "Not Set", row[5])
	assert.Equal(t, "None", row[6])
}

func TestCreatorCSV_NoFollowups(t *testing.T) {
	f := sampleFollowup("USOMEONE")

	assert.Empty(t, CreatorCSV([]*followup.Followup{f}, nil, "UCREATOR"))
}

func TestAdminCSV(t *testing.T) {
	resolved := sampleFollowup("UCREATOR")
	resolved.Resolve(resolved.CreatedAt.Add(36 * time.Hour))

	stuck := sampleFollowup("UCREATOR")
	stuck.PingCount = 20

	followups := []*followup.Followup{resolved, stuck}
	summary := insights.Summarize(followups, now)
	escalations := insights.EscalationCandidates(followups, now)

	content := AdminCSV(followups, summary, escalations, now)
	records := parseCSV(t, content)

	require.Len(t, records, 3)
	assert.Equal(t, "Ticket", records[0][0])

	resolvedRow := records[1]
	assert.Equal(t, "RESOLVED", resolvedRow[3])
	assert.Equal(t, "1.5", resolvedRow[7])
	assert.Equal(t, "NO", resolvedRow[11])
	assert.NotEqual(t, "N/A", resolvedRow[12], "assignee with completions has an efficiency score")

	stuckRow := records[2]
	assert.Equal(t, "ACTIVE", stuckRow[3])
	assert.Equal(t, "Active", stuckRow[7])
	assert.Equal(t, "YES", stuckRow[11])
}

func TestAdminCSV_BlockerReason(t *testing.T) {
	blocked := sampleFollowup("UCREATOR")
	blocked.Block("[Dependency] upstream release", false)

	content := AdminCSV([]*followup.Followup{blocked}, insights.Summary{}, nil, now)
	records := parseCSV(t, content)

	assert.Equal(t, "[Dependency] upstream release", records[1][10])
}
