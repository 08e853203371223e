package export

import (
	"encoding/base64"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers CSV exports as email attachments through SendGrid.
type Mailer struct {
	client      *sendgrid.Client
	fromName    string
	fromAddress string
}

func NewMailer(apiKey, fromName, fromAddress string) *Mailer {
	return &Mailer{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromAddress: fromAddress,
	}
}

func (m *Mailer) SendCSV(to, subject, body, filename, csvContent string) error {
	from := mail.NewEmail(m.fromName, m.fromAddress)
	toEmail := mail.NewEmail("", to)

	message := mail.NewSingleEmail(from, subject, toEmail, body, body)

	attachment := mail.NewAttachment()
	attachment.SetContent(base64.StdEncoding.EncodeToString([]byte(csvContent)))
	attachment.SetType("text/csv")
	attachment.SetFilename(filename)
	attachment.SetDisposition("attachment")
	message.AddAttachment(attachment)

	response, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send export email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	log.Printf("Export %s sent to %s (status: %d)", filename, to, response.StatusCode)
	return nil
}
