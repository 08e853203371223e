// Package delivery provides a Redis-backed queue for outbound notifications
// whose sends must be spaced out, plus the dispatcher that drains it. Purge
// warnings, archive emails and dashboard sends go through here; scheduler
// pings do not, because the scheduler needs the send result synchronously.
package delivery

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Job struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Payload    map[string]any `json:"payload"`
	Attempts   int            `json:"attempts"`
	MaxRetries int            `json:"max_retries"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	DeliverAt  time.Time      `json:"deliver_at"`
}

const (
	KindChat  = "chat"
	KindEmail = "email"
)

func NewJob(kind string, payload map[string]any, deliverAt time.Time) *Job {
	return &Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		Payload:    payload,
		Attempts:   0,
		MaxRetries: 3,
		EnqueuedAt: time.Now(),
		DeliverAt:  deliverAt,
	}
}

func (j *Job) ToJSON() (string, error) {
	data, err := json.Marshal(j)
	return string(data), err
}

func JobFromJSON(data string) (*Job, error) {
	var j Job
	err := json.Unmarshal([]byte(data), &j)
	return &j, err
}
