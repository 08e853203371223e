package handlers

import (
	"context"

	"github.com/threadkeep/threadkeep/internal/delivery"
	"github.com/threadkeep/threadkeep/internal/export"
)

// EmailHandler delivers a CSV export by email. Payload fields: "to",
// "subject", "body", "filename", "csv".
func EmailHandler(mailer *export.Mailer) delivery.Handler {
	return func(ctx context.Context, job *delivery.Job) error {
		to, err := delivery.StringField(job, "to")
		if err != nil {
			return err
		}
		subject, err := delivery.StringField(job, "subject")
		if err != nil {
			return err
		}
		body, err := delivery.StringField(job, "body")
		if err != nil {
			return err
		}
		filename, err := delivery.StringField(job, "filename")
		if err != nil {
			return err
		}
		csvContent, err := delivery.StringField(job, "csv")
		if err != nil {
			return err
		}

		return mailer.SendCSV(to, subject, body, filename, csvContent)
	}
}
