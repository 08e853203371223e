// Package notify defines the notification boundary: sending messages to
// threads, channels and users, and resolving user details. The scheduler only
// distinguishes two failure kinds: a destination that no longer exists
// (permanent) and everything else (transient, retried on the next tick).
package notify

import (
	"context"
	"errors"
)

// ErrChannelNotFound marks a permanently unreachable destination. The
// scheduler deactivates the followup when it sees this.
var ErrChannelNotFound = errors.New("channel not found")

// Destination addresses a message. ThreadTS is empty for top-level channel
// messages and DMs.
type Destination struct {
	Channel  string `json:"channel"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

type Message struct {
	Text string `json:"text"`
}

type Notifier interface {
	Send(ctx context.Context, dest Destination, msg Message) error
	OpenDM(ctx context.Context, userID string) (string, error)
}

// Directory resolves user metadata from the chat platform.
type Directory interface {
	UserInfo(ctx context.Context, userID string) (name, email string, err error)
}

// DM opens a direct channel to a user and sends one message.
func DM(ctx context.Context, n Notifier, userID string, msg Message) error {
	channel, err := n.OpenDM(ctx, userID)
	if err != nil {
		return err
	}
	return n.Send(ctx, Destination{Channel: channel}, msg)
}
