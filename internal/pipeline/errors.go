package pipeline

import (
	"errors"
	"strings"

	"po-notifier-go/internal/lock"
	"po-notifier-go/internal/notifier"
	"po-notifier-go/internal/ratelimit"
	"po-notifier-go/internal/validator"
)

var (
	// ErrMappingNotFound means the email or order status column is missing
	ErrMappingNotFound = errors.New("required columns not found")
	// ErrAlreadyNotified means the row already holds a notification timestamp
	ErrAlreadyNotified = errors.New("already notified")
	// ErrDuplicateSuppressed means the same order was notified recently
	ErrDuplicateSuppressed = errors.New("duplicate email prevented - same order already sent recently")
)

// ValidationError lists the problems that blocked a send
type ValidationError struct {
	Problems []*validator.Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Outcome classifies how a row was handled
type Outcome string

const (
	OutcomeSent             Outcome = "sent"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeAlreadyNotified  Outcome = "already_notified"
	OutcomeDuplicate        Outcome = "duplicate"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeValidationFailed Outcome = "validation_failed"
	OutcomeSendFailed       Outcome = "send_failed"
	OutcomeLockTimeout      Outcome = "lock_timeout"
	OutcomeMappingNotFound  Outcome = "mapping_not_found"
	OutcomeError            Outcome = "error"
)

// Classify maps an error returned by the pipeline to an outcome
func Classify(err error) Outcome {
	var (
		validationErr *ValidationError
		exceededErr   *ratelimit.ExceededError
		sendErr       *notifier.SendError
	)
	switch {
	case err == nil:
		return OutcomeSent
	case errors.Is(err, lock.ErrTimeout):
		return OutcomeLockTimeout
	case errors.Is(err, ErrMappingNotFound):
		return OutcomeMappingNotFound
	case errors.Is(err, ErrAlreadyNotified):
		return OutcomeAlreadyNotified
	case errors.Is(err, ErrDuplicateSuppressed):
		return OutcomeDuplicate
	case errors.As(err, &validationErr):
		return OutcomeValidationFailed
	case errors.As(err, &exceededErr):
		return OutcomeRateLimited
	case errors.As(err, &sendErr):
		return OutcomeSendFailed
	default:
		return OutcomeError
	}
}
