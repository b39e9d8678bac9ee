package provider

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"gopkg.in/gomail.v2"
)

// Dialer is the part of gomail.Dialer the SMTP provider needs.
type Dialer interface {
	DialAndSend(messages ...*gomail.Message) error
}

// SMTPProvider delivers one HTML message with an attachment per Send over an
// authenticated SMTP session.
type SMTPProvider struct {
	dialer        Dialer
	senderAddress string
	senderName    string
	host          string
	newID         func() string
}

func NewSMTPProvider(host string, port int, user, password, senderAddress, senderName string) (*SMTPProvider, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port <= 0 {
		return nil, fmt.Errorf("smtp port must be positive")
	}

	return NewSMTPProviderWithDialer(gomail.NewDialer(host, port, user, password), host, senderAddress, senderName)
}

func NewSMTPProviderWithDialer(dialer Dialer, host, senderAddress, senderName string) (*SMTPProvider, error) {
	if dialer == nil {
		return nil, fmt.Errorf("smtp dialer is required")
	}
	senderAddress = strings.TrimSpace(senderAddress)
	if senderAddress == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	return &SMTPProvider{
		dialer:        dialer,
		senderAddress: senderAddress,
		senderName:    strings.TrimSpace(senderName),
		host:          messageIDHost(host, senderAddress),
		newID:         uuid.NewString,
	}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, message domain.Message) (*ProviderResponse, error) {
	if p == nil || p.dialer == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messageID := fmt.Sprintf("<%s@%s>", p.newID(), p.host)
	msg := p.buildMessage(message, messageID)

	if err := p.dialer.DialAndSend(msg); err != nil {
		var smtpErr *textproto.Error
		if errors.As(err, &smtpErr) {
			return nil, &ProviderError{
				StatusCode: smtpErr.Code,
				Message:    "smtp server rejected message",
				Transient:  isTransientSMTPCode(smtpErr.Code),
				Cause:      err,
			}
		}
		return nil, &ProviderError{
			Message:   "smtp delivery failed",
			Transient: IsTransient(err),
			Cause:     err,
		}
	}

	return &ProviderResponse{MessageID: messageID}, nil
}

func (p *SMTPProvider) buildMessage(message domain.Message, messageID string) *gomail.Message {
	msg := gomail.NewMessage()
	if p.senderName != "" {
		msg.SetAddressHeader("From", p.senderAddress, p.senderName)
	} else {
		msg.SetHeader("From", p.senderAddress)
	}
	msg.SetHeader("To", message.To)
	msg.SetHeader("Subject", message.Subject)
	msg.SetHeader("Message-ID", messageID)
	msg.SetBody("text/html", message.HTMLBody)
	if message.AttachmentPath != "" {
		msg.Attach(message.AttachmentPath)
	}
	return msg
}

func messageIDHost(host, senderAddress string) string {
	if at := strings.LastIndex(senderAddress, "@"); at >= 0 && at < len(senderAddress)-1 {
		return senderAddress[at+1:]
	}
	if host != "" {
		return host
	}
	return "localhost"
}
