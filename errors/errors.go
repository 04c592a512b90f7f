package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Returned to callers
	ErrValidation        = fmt.Errorf("validation error")
	ErrNotConnected      = fmt.Errorf("chat session is not connected")
	ErrConnectInProgress = fmt.Errorf("chat connection already in progress")
	ErrSessionClosed     = fmt.Errorf("chat session loop is not running")

	// Recovered internally, only logged
	ErrTransportUnavailable = fmt.Errorf("live channel unavailable")
	ErrDeliveryUncertain    = fmt.Errorf("message delivery uncertain")
	ErrFetchFailure         = fmt.Errorf("message history fetch failed")

	ErrEmptyWords     = fmt.Errorf("no words have been found")
	ErrUnexpectedCode = fmt.Errorf("unexpected status code")
)
