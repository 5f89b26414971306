package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Submission errors
	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyURL     = fmt.Errorf("%w: url cannot be empty", ErrInvalidInput)

	// Scanner / relay errors
	ErrMalformedResponse  = errors.New("malformed scanner response")
	ErrScannerUnavailable = errors.New("scanner unavailable")
	ErrRequestTooLarge    = errors.New("request body too large")

	// Report errors
	ErrNoReport            = errors.New("no report available")
	ErrSerializationFailed = errors.New("serialization failed")

	// Lifecycle errors
	ErrControllerClosed = errors.New("lifecycle controller closed")
)
