// Package selection asks the operator which subject, template and attachment
// a recipient gets, and whether the answer applies to everyone left.
package selection

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"github.com/kursadbilgin/mail-dispatch/internal/interpolate"
	"github.com/kursadbilgin/mail-dispatch/internal/prompt"
)

// customSubjectValue cannot collide with a candidate: candidates are trimmed
// non-empty lines and never contain a NUL byte.
const customSubjectValue = "\x00custom"

const customSubjectLabel = "Enter a custom subject..."

// Candidates are the choices offered for every selection cycle.
type Candidates struct {
	Subjects    []string
	Templates   []string
	Attachments []string
}

// Validate reports the precondition failures that must stop a run before its
// first recipient.
func (c Candidates) Validate() error {
	if len(c.Templates) == 0 {
		return domain.ErrNoTemplates
	}
	if len(c.Attachments) == 0 {
		return domain.ErrNoAttachments
	}
	return nil
}

type Resolver struct {
	prompter prompt.Prompter
}

func NewResolver(prompter prompt.Prompter) (*Resolver, error) {
	if prompter == nil {
		return nil, fmt.Errorf("prompter is required")
	}
	return &Resolver{prompter: prompter}, nil
}

// Resolve runs one selection cycle for recipient. The returned subject is raw:
// candidate labels are rendered for preview only.
func (r *Resolver) Resolve(ctx context.Context, recipient domain.Recipient, candidates Candidates) (domain.Selection, error) {
	if err := candidates.Validate(); err != nil {
		return domain.Selection{}, err
	}

	subject, err := r.askSubject(ctx, recipient, candidates.Subjects)
	if err != nil {
		return domain.Selection{}, err
	}

	template, err := r.prompter.Select(ctx,
		fmt.Sprintf("Template for %s:", recipient.Address),
		plainOptions(candidates.Templates), 0)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("failed to choose template: %w", err)
	}

	attachment, err := r.prompter.Select(ctx,
		fmt.Sprintf("Attachment for %s:", recipient.Address),
		plainOptions(candidates.Attachments), 0)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("failed to choose attachment: %w", err)
	}

	sticky, err := r.prompter.Confirm(ctx, "Apply these choices to all remaining recipients?", false)
	if err != nil {
		return domain.Selection{}, fmt.Errorf("failed to confirm scope: %w", err)
	}

	selection := domain.Selection{
		Subject:    subject,
		Template:   template,
		Attachment: attachment,
		Sticky:     sticky,
	}
	if err := selection.Validate(); err != nil {
		return domain.Selection{}, err
	}

	return selection, nil
}

func (r *Resolver) askSubject(ctx context.Context, recipient domain.Recipient, subjects []string) (string, error) {
	options := make([]prompt.Option, 0, len(subjects)+1)
	for _, subject := range subjects {
		options = append(options, prompt.Option{
			Label: interpolate.Render(subject, recipient),
			Value: subject,
		})
	}
	options = append(options, prompt.Option{Label: customSubjectLabel, Value: customSubjectValue})

	picked, err := r.prompter.Select(ctx, fmt.Sprintf("Subject for %s:", recipient.Address), options, 0)
	if err != nil {
		return "", fmt.Errorf("failed to choose subject: %w", err)
	}
	if picked != customSubjectValue {
		return picked, nil
	}

	custom, err := r.prompter.Input(ctx, "Enter custom subject:", validateSubject)
	if err != nil {
		return "", fmt.Errorf("failed to read custom subject: %w", err)
	}
	if err := validateSubject(custom); err != nil {
		return "", err
	}
	return strings.TrimSpace(custom), nil
}

func validateSubject(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: subject cannot be empty", domain.ErrValidation)
	}
	return nil
}

func plainOptions(values []string) []prompt.Option {
	options := make([]prompt.Option, len(values))
	for i, value := range values {
		options[i] = prompt.Option{Label: value, Value: value}
	}
	return options
}
