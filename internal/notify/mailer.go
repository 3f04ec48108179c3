// Package notify delivers signing invitations and completion notices by email.
package notify

import (
	"context"
	"errors"
	"net/mail"
)

var (
	ErrNoRecipients = errors.New("message has no recipients")
	ErrSendFailed   = errors.New("mail provider rejected the message")
)

// Attachment is a file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a rendered email.
type Message struct {
	To          []mail.Address
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Mailer sends rendered messages through a provider.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

func (m *Message) validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	return nil
}

func addresses(list []mail.Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}
