package mail

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey   string
	from     string
	fromName string
}

// NewSendGridMailer creates a SendGridMailer. apiKey and from must be
// non-empty; that is validated at config load, not here.
func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, from: from, fromName: fromName}
}

// Send delivers a single plain-text message.
func (m *SendGridMailer) Send(_ context.Context, msg Message) error {
	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(m.fromName, m.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Body,
		fmt.Sprintf("<pre>%s</pre>", msg.Body),
	)

	resp, err := sendgrid.NewSendClient(m.apiKey).Send(message)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if resp.StatusCode >= 400 {
		return errors.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}
	return nil
}
