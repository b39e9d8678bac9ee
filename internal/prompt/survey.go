package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrInterrupted is returned when the operator aborts a prompt.
var ErrInterrupted = errors.New("prompt interrupted")

var _ Prompter = (*SurveyPrompter)(nil)

// SurveyPrompter asks on the controlling terminal.
type SurveyPrompter struct {
	opts []survey.AskOpt
}

func NewSurveyPrompter(stdio terminal.Stdio) *SurveyPrompter {
	var opts []survey.AskOpt
	if stdio.In != nil && stdio.Out != nil {
		opts = append(opts, survey.WithStdio(stdio.In, stdio.Out, stdio.Err))
	}
	return &SurveyPrompter{opts: opts}
}

func (p *SurveyPrompter) Select(ctx context.Context, message string, options []Option, defaultIndex int) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options to choose from")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if defaultIndex < 0 || defaultIndex >= len(options) {
		defaultIndex = 0
	}

	labels := make([]string, len(options))
	for i, option := range options {
		labels[i] = option.Label
	}

	var index int
	question := &survey.Select{
		Message:  message,
		Options:  labels,
		Default:  defaultIndex,
		PageSize: 12,
	}
	if err := survey.AskOne(question, &index, p.opts...); err != nil {
		return "", wrapSurveyError(err)
	}
	if index < 0 || index >= len(options) {
		return "", fmt.Errorf("selected option %d out of range", index)
	}

	return options[index].Value, nil
}

func (p *SurveyPrompter) Input(ctx context.Context, message string, validate func(string) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := append([]survey.AskOpt{}, p.opts...)
	if validate != nil {
		opts = append(opts, survey.WithValidator(func(ans interface{}) error {
			value, ok := ans.(string)
			if !ok {
				return fmt.Errorf("unexpected answer type %T", ans)
			}
			return validate(value)
		}))
	}

	var answer string
	if err := survey.AskOne(&survey.Input{Message: message}, &answer, opts...); err != nil {
		return "", wrapSurveyError(err)
	}
	return answer, nil
}

func (p *SurveyPrompter) Confirm(ctx context.Context, message string, defaultValue bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var answer bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: defaultValue}, &answer, p.opts...); err != nil {
		return false, wrapSurveyError(err)
	}
	return answer, nil
}

func wrapSurveyError(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrInterrupted
	}
	return fmt.Errorf("prompt failed: %w", err)
}
