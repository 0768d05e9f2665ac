// internal/transport/email.go
package transport

import (
	"context"
	"fmt"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

// EmailResult carries provider feedback for a successful send.
type EmailResult struct {
	StatusCode int
}

// EmailTransport is the outbound email capability the send pipeline
// depends on. Implementations own their timeouts; the pipeline treats any
// returned error as a per-recipient failure.
type EmailTransport interface {
	Send(ctx context.Context, toAddress, toName, subject, html string) (EmailResult, error)
}

// MailjetTransport sends through the Mailjet v3.1 API.
type MailjetTransport struct {
	Client      *mailjet.Client
	SenderEmail string
	SenderName  string
}

func NewMailjetTransport(publicKey, privateKey, senderEmail, senderName string) *MailjetTransport {
	return &MailjetTransport{
		Client:      mailjet.NewMailjetClient(publicKey, privateKey),
		SenderEmail: senderEmail,
		SenderName:  senderName,
	}
}

// Send posts one message through the v3.1 send API. The pinned client has
// no context-aware call, so ctx gates the attempt but cannot cancel a
// request already on the wire.
func (t *MailjetTransport) Send(ctx context.Context, toAddress, toName, subject, html string) (EmailResult, error) {
	if err := ctx.Err(); err != nil {
		return EmailResult{}, err
	}

	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: t.SenderEmail, Name: t.SenderName},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: toAddress, Name: toName}},
		Subject:  subject,
		HTMLPart: html,
	}}

	msgs := mailjet.MessagesV31{Info: info}
	if _, err := t.Client.SendMailV31(&msgs); err != nil {
		return EmailResult{}, fmt.Errorf("could not send mail: %w", err)
	}
	return EmailResult{StatusCode: 200}, nil
}

var _ EmailTransport = (*MailjetTransport)(nil)
