package intake

import (
	"fmt"

	"github.com/Zachkp/portfolio/internal/mailer"
)

const (
	ReasonMissingFields = "missing_fields"
	ReasonInvalidEmail  = "invalid_email"
)

// ValidationError is a defect in the caller's input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConfigurationError means the mail transport cannot be used in this deployment.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "mail transport not configured: " + e.Detail
}

// PersistenceError wraps a store failure. No notification is attempted after one.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("unable to persist submission - %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DeliveryError is a notification failure after the submission was already stored.
type DeliveryError struct {
	Kind         mailer.FailureKind
	SubmissionID string
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("unable to deliver notification for %s (%s) - %v", e.SubmissionID, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
