package followup

import "time"

// Report reason categories, as submitted through the report-issue modal.
const (
	ReasonInvalid       = "INVALID"
	ReasonDeprioritized = "DEPRIORITIZED"
	ReasonSpam          = "SPAM"
	ReasonOther         = "OTHER"
)

// Report is an append-only record of a user flagging a followup.
type Report struct {
	Reason     string    `json:"reason"`
	FollowupID string    `json:"followup_id"`
	Reporter   string    `json:"reporter"`
	CreatedBy  string    `json:"created_by"`
	Ticket     string    `json:"ticket"`
	Timestamp  time.Time `json:"timestamp"`
}

// UsageStats are global append-only usage counters.
type UsageStats struct {
	FollowupsCreated int      `json:"followups_created"`
	ChannelsUsed     []string `json:"channels_used"`
}
