package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/rs/zerolog/log"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

// SendGridMailer sends messages through the SendGrid v3 API.
type SendGridMailer struct {
	key  string
	host string
	from *sgmail.Email
}

var _ Mailer = (*SendGridMailer)(nil)

// NewSendGridMailer creates a mailer using the given API key. An empty host uses
// the public SendGrid API.
func NewSendGridMailer(key, host string, from mail.Address) *SendGridMailer {
	if host == "" {
		host = sendGridHost
	}
	return &SendGridMailer{
		key:  key,
		host: host,
		from: sgmail.NewEmail(from.Name, from.Address),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(m.key, sendGridEndpoint, m.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: sendgrid returned status %d: %s", ErrSendFailed, res.StatusCode, res.Body)
	}

	log.Ctx(ctx).Debug().
		Int("status", res.StatusCode).
		Int("recipients", len(msg.To)).
		Msg("Sent email via SendGrid")

	return nil
}

func (m *SendGridMailer) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(m.from)
	v3.Subject = msg.Subject
	v3.AddPersonalizations(p)

	v3.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		v3.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}

	for _, a := range msg.Attachments {
		v3.AddAttachment(&sgmail.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			Type:        a.ContentType,
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}

	return v3
}
