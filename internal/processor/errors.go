package processor

import (
	"errors"
	"fmt"

	"github.com/junksamiad/template-sender-engine-sub000/internal/models"
)

// FailureKind classifies why a delivery failed. It is richer than the status
// codes persisted on the record.
type FailureKind string

const (
	KindValidation  FailureKind = "validation"
	// KindDuplicate is never returned; duplicates are acknowledged.
	KindDuplicate   FailureKind = "duplicate"
	KindCredentials FailureKind = "credentials"
	KindGeneration  FailureKind = "generation"
	KindDispatch    FailureKind = "dispatch"
	KindPersistence FailureKind = "persistence"
	KindLease       FailureKind = "lease"
	KindUnknown     FailureKind = "unknown"
)

// StageError is the single error shape that leaves the pipeline.
type StageError struct {
	Kind FailureKind
	// Status is written to the record by the failure handler. Empty means the
	// record must not be touched.
	Status string
	// Detail is a low-cardinality sub-classification, e.g. not_found.
	Detail string
	Err    error
}

func (e *StageError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(kind FailureKind, detail string, err error) *StageError {
	return &StageError{Kind: kind, Status: statusFor(kind), Detail: detail, Err: err}
}

// statusFor maps a failure kind to the persisted conversation_status. All
// credential sub-kinds share one status.
func statusFor(kind FailureKind) string {
	switch kind {
	case KindCredentials:
		return models.StatusFailedSecretsFetch
	case KindGeneration:
		return models.StatusFailedToProcessAI
	case KindDispatch:
		return models.StatusFailedToSendMessage
	case KindLease:
		return ""
	default:
		return models.StatusFailedUnknown
	}
}

// asStageError normalizes any error into a StageError.
func asStageError(err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return stageErr(KindUnknown, "", err)
}
