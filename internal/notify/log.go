package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogMailer writes messages to the log instead of sending them. Used in development.
type LogMailer struct{}

var _ Mailer = LogMailer{}

func (LogMailer) Send(ctx context.Context, msg *Message) error {
	if err := msg.validate(); err != nil {
		return err
	}

	evt := log.Info().
		Strs("to", addresses(msg.To)).
		Str("subject", msg.Subject).
		Int("attachments", len(msg.Attachments))
	for _, a := range msg.Attachments {
		evt = evt.Int(a.Filename, len(a.Data))
	}
	evt.Msg(msg.Text)

	return nil
}
