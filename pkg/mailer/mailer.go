// Package mailer sends transactional email through one of several drivers.
package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/raids-lab/cobrew/pkg/config"
)

var ErrNoRecipient = errors.New("mail has no recipient")

type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// New picks the driver named by the mail section of the config.
func New(conf *config.Config) (Sender, error) {
	mail := conf.Mail
	switch mail.Driver {
	case "smtp":
		return NewSMTPSender(mail.SMTP.Host, mail.SMTP.Port, mail.SMTP.User, mail.SMTP.Password, mail.From), nil
	case "resend":
		if mail.Resend.APIKey == "" {
			return nil, errors.New("mail.resend.apiKey is not set")
		}
		return NewResendSender(mail.Resend.Endpoint, mail.Resend.APIKey, mail.From), nil
	case "log", "":
		return NewLogSender(), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", mail.Driver)
	}
}

func validate(msg *Message) error {
	if msg == nil || len(msg.To) == 0 {
		return ErrNoRecipient
	}
	for _, to := range msg.To {
		if to == "" {
			return ErrNoRecipient
		}
	}
	return nil
}
