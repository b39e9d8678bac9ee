// Package prompt is the operator question-and-answer surface.
package prompt

import "context"

// Option is one entry of a single-choice prompt. Label is what the operator
// sees, Value is what the caller gets back.
type Option struct {
	Label string
	Value string
}

// Prompter asks the operator. Implementations may block indefinitely.
type Prompter interface {
	Select(ctx context.Context, message string, options []Option, defaultIndex int) (string, error)
	Input(ctx context.Context, message string, validate func(string) error) (string, error)
	Confirm(ctx context.Context, message string, defaultValue bool) (bool, error)
}
