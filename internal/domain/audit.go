package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AuditOutcome tells which log an entry belongs to.
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "SUCCESS"
	AuditOutcomeFailure AuditOutcome = "FAILURE"
)

func (o AuditOutcome) String() string { return string(o) }

func (o AuditOutcome) IsValid() bool {
	switch o {
	case AuditOutcomeSuccess, AuditOutcomeFailure:
		return true
	}
	return false
}

// AuditFieldSeparator separates the fields of an audit log line.
const AuditFieldSeparator = "|"

// AuditEntry is one line of the success or the failure log.
type AuditEntry struct {
	Timestamp     time.Time
	Recipient     string
	Outcome       AuditOutcome
	DeliveryID    string
	AttemptNumber int
	Error         string
}

func NewSuccessEntry(at time.Time, recipient string, deliveryID string) AuditEntry {
	return AuditEntry{
		Timestamp:  at.UTC(),
		Recipient:  recipient,
		Outcome:    AuditOutcomeSuccess,
		DeliveryID: deliveryID,
	}
}

func NewFailureEntry(at time.Time, recipient string, attempt int, errDescription string) AuditEntry {
	return AuditEntry{
		Timestamp:     at.UTC(),
		Recipient:     recipient,
		Outcome:       AuditOutcomeFailure,
		AttemptNumber: attempt,
		Error:         errDescription,
	}
}

// Line renders the entry as "timestamp | recipient | payload...".
func (e AuditEntry) Line() string {
	parts := []string{
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		flattenField(e.Recipient),
	}

	switch e.Outcome {
	case AuditOutcomeFailure:
		parts = append(parts, "attempt "+strconv.Itoa(e.AttemptNumber), flattenField(e.Error))
	default:
		parts = append(parts, flattenField(e.DeliveryID))
	}

	return strings.Join(parts, " "+AuditFieldSeparator+" ")
}

func (e AuditEntry) Validate() error {
	if strings.TrimSpace(e.Recipient) == "" {
		return fmt.Errorf("%w: audit recipient is required", ErrValidation)
	}
	if strings.Contains(e.Recipient, AuditFieldSeparator) {
		return fmt.Errorf("%w: audit recipient %q contains %q", ErrValidation, e.Recipient, AuditFieldSeparator)
	}
	if !e.Outcome.IsValid() {
		return fmt.Errorf("%w: invalid audit outcome %q", ErrValidation, e.Outcome)
	}
	if e.Outcome == AuditOutcomeFailure && e.AttemptNumber < 1 {
		return fmt.Errorf("%w: failure attempt number must be positive (got %d)", ErrValidation, e.AttemptNumber)
	}
	return nil
}

// ParseAuditRecipient extracts the recipient field from a log line. It returns
// false for lines with fewer than two fields.
func ParseAuditRecipient(line string) (string, bool) {
	parts := strings.Split(line, AuditFieldSeparator)
	if len(parts) < 2 {
		return "", false
	}

	recipient := strings.TrimSpace(parts[1])
	if recipient == "" {
		return "", false
	}
	return recipient, true
}

// flattenField keeps a field on a single log line.
func flattenField(value string) string {
	value = strings.ReplaceAll(value, "\r\n", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.TrimSpace(value)
}
