package notify

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rs/zerolog/log"
)

// SESAPI is the subset of the SES v2 client used by SESMailer.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends raw MIME messages through Amazon SES.
type SESMailer struct {
	client SESAPI
	from   mail.Address
}

var _ Mailer = (*SESMailer)(nil)

// NewSESMailer creates a mailer sending from the given verified identity.
func NewSESMailer(client SESAPI, from mail.Address) *SESMailer {
	return &SESMailer{client: client, from: from}
}

func (m *SESMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	raw, err := buildRawMessage(m.from, msg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to build message: %w", err)
	}

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from.String()),
		Destination:      &types.Destination{ToAddresses: addresses(msg.To)},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	log.Ctx(ctx).Debug().
		Str("message_id", aws.ToString(out.MessageId)).
		Int("recipients", len(msg.To)).
		Msg("Sent email via SES")

	return nil
}
