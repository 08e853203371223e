// Package handlers provides delivery handlers for the dispatcher. Each
// handler implements one outbound side channel and is registered against a
// job kind.
package handlers

import (
	"context"

	"github.com/threadkeep/threadkeep/internal/delivery"
	"github.com/threadkeep/threadkeep/internal/notify"
)

// ChatHandler sends a chat message. Payload fields: "user" for a DM, or
// "channel" (+ optional "thread_ts") for a thread or channel message, plus
// "text".
func ChatHandler(notifier notify.Notifier) delivery.Handler {
	return func(ctx context.Context, job *delivery.Job) error {
		text, err := delivery.StringField(job, "text")
		if err != nil {
			return err
		}

		if user, ok := job.Payload["user"].(string); ok && user != "" {
			return notify.DM(ctx, notifier, user, notify.Message{Text: text})
		}

		channel, err := delivery.StringField(job, "channel")
		if err != nil {
			return err
		}
		threadTS, _ := job.Payload["thread_ts"].(string)

		return notifier.Send(ctx, notify.Destination{Channel: channel, ThreadTS: threadTS}, notify.Message{Text: text})
	}
}
