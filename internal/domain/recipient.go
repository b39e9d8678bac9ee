package domain

import (
	"fmt"
	"strings"
)

// Recipient is one row of the recipient source. Fields holds every column of
// the row, the address column included.
type Recipient struct {
	Address string
	Fields  map[string]string
}

func NewRecipient(address string, fields map[string]string) Recipient {
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	return Recipient{
		Address: strings.TrimSpace(address),
		Fields:  copied,
	}
}

// Lookup returns the named field, or "" when the recipient has no such field.
func (r Recipient) Lookup(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

func (r Recipient) Validate() error {
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: recipient address is required", ErrValidation)
	}
	if strings.Contains(r.Address, AuditFieldSeparator) {
		return fmt.Errorf("%w: recipient address %q contains %q", ErrValidation, r.Address, AuditFieldSeparator)
	}
	return nil
}
