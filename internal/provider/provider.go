package provider

import (
	"context"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
)

// Provider is the outbound mail delivery port.
type Provider interface {
	Send(ctx context.Context, message domain.Message) (*ProviderResponse, error)
}

// ProviderResponse stores provider call metadata. MessageID is the delivery id
// written to the success log.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
