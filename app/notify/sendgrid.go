package notify

import (
	"context"
	"fmt"

	sendgridgo "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var _ Sender = (*SendGridSender)(nil)

type SendGridSender struct {
	client     *sendgridgo.Client
	sender     string
	senderName string
}

func NewSendGridSender(apiKey, sender, senderName string) *SendGridSender {
	return &SendGridSender{
		client:     sendgridgo.NewSendClient(apiKey),
		sender:     sender,
		senderName: senderName,
	}
}

func (s *SendGridSender) Send(ctx context.Context, to, subject, body string) error {
	from := mail.NewEmail(s.senderName, s.sender)
	message := mail.NewSingleEmail(from, subject, mail.NewEmail(to, to), body, "")

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
