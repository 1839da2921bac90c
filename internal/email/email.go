package email

import (
	"context"
	"fmt"
	"io"

	"github.com/Domenick1991/hotelbooking/config"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Attachment is embedded inline; HTML refers to it as cid:<Name>.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	FromName string
	To       string
	Subject  string
	HTML     string
	Inline   []Attachment
}

// Transport delivers one message and returns its Message-ID.
type Transport interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
	host   string
}

func NewSMTPTransport(cfg config.MailConfig) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		host:   cfg.Host,
	}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), t.host)
	m := buildMessage(t.from, messageID, msg)

	if err := t.dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return messageID, nil
}

func buildMessage(from, messageID string, msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("Message-ID", messageID)
	m.SetAddressHeader("From", from, msg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	for _, a := range msg.Inline {
		data := a.Data
		m.Embed(a.Name,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}),
		)
	}
	return m
}
