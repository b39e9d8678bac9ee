package domain

import (
	"fmt"
	"strings"
)

// Message is a fully rendered e-mail ready for the transport.
type Message struct {
	To             string
	Subject        string
	HTMLBody       string
	AttachmentPath string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	return nil
}
