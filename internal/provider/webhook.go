package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/mail-dispatch/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookAttachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type webhookRequest struct {
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html"`
	Attachments []webhookAttachment `json:"attachments,omitempty"`
}

// WebhookProvider hands messages to an HTTP mail API that accepts a JSON
// envelope and a bearer secret.
type WebhookProvider struct {
	client   *resty.Client
	endpoint string
	secret   string
	from     string
}

func NewWebhookProvider(endpoint, secret, from string) (*WebhookProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)

	return NewWebhookProviderWithClient(endpoint, secret, from, client)
}

func NewWebhookProviderWithClient(endpoint, secret, from string, client *resty.Client) (*WebhookProvider, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)

	return &WebhookProvider{
		client:   client,
		endpoint: trimmedEndpoint,
		secret:   strings.TrimSpace(secret),
		from:     strings.TrimSpace(from),
	}, nil
}

func (p *WebhookProvider) Send(ctx context.Context, message domain.Message) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	reqBody := webhookRequest{
		From:    p.from,
		To:      message.To,
		Subject: message.Subject,
		HTML:    message.HTMLBody,
	}
	if message.AttachmentPath != "" {
		attachment, err := encodeAttachment(message.AttachmentPath)
		if err != nil {
			return nil, &ProviderError{Message: "failed to read attachment", Cause: err}
		}
		reqBody.Attachments = []webhookAttachment{attachment}
	}

	request := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody)
	if p.secret != "" {
		request.SetAuthToken(p.secret)
	}

	response, err := request.Post(p.endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "provider request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "provider returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  providerMessageID(response),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

// providerMessageID prefers a response header and falls back to an id field
// of a JSON body.
func providerMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Request-ID"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	var body struct {
		ID        string `json:"id"`
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(response.Body(), &body); err != nil {
		return ""
	}
	if id := strings.TrimSpace(body.MessageID); id != "" {
		return id
	}
	return strings.TrimSpace(body.ID)
}

func encodeAttachment(path string) (webhookAttachment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return webhookAttachment{}, err
	}
	return webhookAttachment{
		Filename: filepath.Base(path),
		Content:  base64.StdEncoding.EncodeToString(content),
	}, nil
}
