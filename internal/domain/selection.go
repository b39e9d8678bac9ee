package domain

import (
	"fmt"
	"strings"
)

// Selection is the content chosen for one recipient, or for every remaining
// recipient when Sticky is set. Subject is kept raw and rendered per recipient.
type Selection struct {
	Subject    string
	Template   string
	Attachment string
	Sticky     bool
}

func (s Selection) Validate() error {
	if strings.TrimSpace(s.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(s.Template) == "" {
		return fmt.Errorf("%w: template is required", ErrValidation)
	}
	if strings.TrimSpace(s.Attachment) == "" {
		return fmt.Errorf("%w: attachment is required", ErrValidation)
	}
	return nil
}

// SelectionStateKind enumerates the states of the selection held by a run.
type SelectionStateKind int

const (
	SelectionUnset SelectionStateKind = iota
	SelectionStickyHeld
	SelectionOneShotHeld
)

func (k SelectionStateKind) String() string {
	switch k {
	case SelectionUnset:
		return "UNSET"
	case SelectionStickyHeld:
		return "STICKY"
	case SelectionOneShotHeld:
		return "ONE_SHOT"
	}
	return "UNKNOWN"
}

// SelectionState is the selection held between recipients of a run.
//
//	Unset --Hold(sticky)--> StickyHeld (terminal for the run)
//	Unset --Hold(one-shot)--> OneShotHeld --Advance--> Unset
//
// The zero value is Unset.
type SelectionState struct {
	kind      SelectionStateKind
	selection Selection
}

func (s SelectionState) Kind() SelectionStateKind { return s.kind }

// Current returns the held selection, or false when a prompt is needed.
func (s SelectionState) Current() (Selection, bool) {
	if s.kind == SelectionUnset {
		return Selection{}, false
	}
	return s.selection, true
}

// Hold stores a freshly resolved selection. Holding over an already held
// selection replaces it.
func (s SelectionState) Hold(selection Selection) SelectionState {
	if selection.Sticky {
		return SelectionState{kind: SelectionStickyHeld, selection: selection}
	}
	return SelectionState{kind: SelectionOneShotHeld, selection: selection}
}

// Advance is applied once a recipient has been processed.
func (s SelectionState) Advance() SelectionState {
	if s.kind == SelectionOneShotHeld {
		return SelectionState{}
	}
	return s
}
