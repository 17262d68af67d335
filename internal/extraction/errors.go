package extraction

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the inference service responds without
// any text at all.
var ErrEmptyResponse = errors.New("empty response from model")

// ErrNoTransactionData is returned when insights are requested for an empty
// transaction set. No external call is made in that case.
var ErrNoTransactionData = errors.New("no transaction data to analyze")

// ServiceError reports a failed call to the external inference service.
type ServiceError struct {
	// Status is the error status reported by the service, when known.
	Status string
	Err    error
}

func (e *ServiceError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("inference service error (%s): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("inference service error: %v", e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// FormatError reports a model response that did not contain one parseable
// top-level JSON object.
type FormatError struct {
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model response: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("malformed model response: %s", e.Detail)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
