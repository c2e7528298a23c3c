package model

import (
	"errors"
	"fmt"
)

// Domain errors for model calls.
var (
	// ErrModelCall wraps every failed call to the model service.
	ErrModelCall = errors.New("model call failed")

	// ErrEmptyResponse indicates the service returned no choices.
	ErrEmptyResponse = errors.New("model returned no content")
)

// APIError is an error response from the model service.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Code       string
}

// Error implements error.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Type != "" {
		msg = e.Type + ": " + msg
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%d %s", e.StatusCode, msg)
	}
	return msg
}

// Unwrap makes APIError match ErrModelCall.
func (e *APIError) Unwrap() error {
	return ErrModelCall
}

// Retryable reports whether the status suggests a transient failure.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
