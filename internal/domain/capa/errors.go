package capa

import "fmt"

const (
	KindValidation   = "validation"
	KindNotFound     = "not_found"
	KindInvalidState = "invalid_state"
)

// ValidationError reports a missing required field or a value outside its allowed set.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Kind() string { return KindValidation }

// NotFoundError reports a missing CAPA or a missing action item under an existing CAPA.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Kind() string { return KindNotFound }

// InvalidStateError reports an operation the current status does not allow.
type InvalidStateError struct {
	Number    string
	Status    Status
	Operation string
	Reason    string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s %s in status %s", e.Operation, e.Number, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidStateError) Kind() string { return KindInvalidState }

func missing(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

func invalidValue(field string, value any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf("has invalid value %q", fmt.Sprint(value))}
}

func CAPANotFound(number string) error {
	return &NotFoundError{Entity: "capa", ID: number}
}

func ActionItemNotFound(number string, itemID uint64) error {
	return &NotFoundError{Entity: "action item", ID: fmt.Sprintf("%s/%d", number, itemID)}
}

func terminalState(c CAPA, op string) error {
	return &InvalidStateError{Number: c.Number, Status: c.Status, Operation: op, Reason: "record is terminal"}
}
