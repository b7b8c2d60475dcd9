// Package monitor tracks detected forms as the underlying page mutates:
// it keeps a registry of monitored forms, recomputes validation state on
// relevant changes (debounced per field), and emits change events to
// subscribers. It is driven entirely by the dom mutation contract, so a
// real browser feed and a synthetic test feed are interchangeable.
package monitor

import (
	"slices"
	"time"
)

// EventType is the kind of observed transition.
type EventType string

const (
	EventFormAdded         EventType = "form_added"
	EventFormRemoved       EventType = "form_removed"
	EventFieldAdded        EventType = "field_added"
	EventFieldRemoved      EventType = "field_removed"
	EventFieldChanged      EventType = "field_changed"
	EventValidationChanged EventType = "validation_changed"
)

// ChangeEvent is an immutable fact about one transition. The monitor emits
// and forgets; retention is the subscriber's concern.
type ChangeEvent struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	FormID   string    `json:"form_id"`
	FieldID  string    `json:"field_id,omitempty"`
	OldValue string    `json:"old_value,omitempty"`
	NewValue string    `json:"new_value,omitempty"`
	At       time.Time `json:"at"`
}

// ValidationState is the derived validation snapshot for one form. It is
// recomputed wholesale, never mutated in place.
type ValidationState struct {
	FormID          string              `json:"form_id"`
	IsValid         bool                `json:"is_valid"`
	Errors          map[string][]string `json:"errors,omitempty"`
	Warnings        map[string][]string `json:"warnings,omitempty"`
	RequiredFields  []string            `json:"required_fields"`
	CompletedFields []string            `json:"completed_fields"`
	LastValidated   time.Time           `json:"last_validated"`
}

// Equal compares the externally meaningful parts of two states: IsValid,
// Errors, Warnings and CompletedFields. LastValidated is bookkeeping and
// is ignored.
func (v *ValidationState) Equal(o *ValidationState) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.IsValid != o.IsValid {
		return false
	}
	if !slices.Equal(v.CompletedFields, o.CompletedFields) {
		return false
	}
	return equalMsgMaps(v.Errors, o.Errors) && equalMsgMaps(v.Warnings, o.Warnings)
}

func equalMsgMaps(a, b map[string][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !slices.Equal(av, bv) {
			return false
		}
	}
	return true
}
