package assessment

import (
	"fmt"
	"net/http"
)

// Kind classifies an assessment failure.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindInput         Kind = "input"
	KindUpstream      Kind = "upstream"
	KindUpstreamShape Kind = "upstream_shape"
	KindFormat        Kind = "format"
	KindProcessing    Kind = "processing"
)

const (
	msgNoIntakeText     = "No intake text provided"
	msgInvalidBody      = "Invalid request body"
	msgInvalidFormat    = "Invalid response format"
	msgMissingFields    = "Missing required fields in AI response"
	msgProcessingFailed = "Failed to process request"
	msgNoChoices        = "No choices in response"
)

// Error is the structured failure returned by Service.Assess. Category is
// shown to users; Details carries the optional diagnostic text.
type Error struct {
	Kind     Kind
	Status   int
	Category string
	Details  string
	Err      error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Details)
	}
	return e.Category
}

func (e *Error) Unwrap() error { return e.Err }

func configurationError(providerName, envVar string, err error) *Error {
	return &Error{
		Kind:     KindConfiguration,
		Status:   http.StatusInternalServerError,
		Category: providerName + " API key not configured",
		Details:  fmt.Sprintf("Please add %s to your environment variables", envVar),
		Err:      err,
	}
}

// InputError reports a missing or blank intake text.
func InputError() *Error {
	return &Error{
		Kind:     KindInput,
		Status:   http.StatusBadRequest,
		Category: msgNoIntakeText,
	}
}

// BodyError reports a request body that could not be decoded.
func BodyError(err error) *Error {
	e := &Error{
		Kind:     KindInput,
		Status:   http.StatusBadRequest,
		Category: msgInvalidBody,
		Err:      err,
	}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func upstreamError(providerName, message string, err error) *Error {
	return &Error{
		Kind:     KindUpstream,
		Status:   http.StatusInternalServerError,
		Category: providerName + " API error",
		Details:  message,
		Err:      err,
	}
}

func upstreamShapeError(providerName string, err error) *Error {
	return &Error{
		Kind:     KindUpstreamShape,
		Status:   http.StatusInternalServerError,
		Category: "Invalid response from " + providerName,
		Details:  msgNoChoices,
		Err:      err,
	}
}

func formatError() *Error {
	return &Error{
		Kind:     KindFormat,
		Status:   http.StatusInternalServerError,
		Category: msgInvalidFormat,
		Details:  msgMissingFields,
	}
}

func processingError(err error) *Error {
	return &Error{
		Kind:     KindProcessing,
		Status:   http.StatusInternalServerError,
		Category: msgProcessingFailed,
		Details:  err.Error(),
		Err:      err,
	}
}

// parseError reports a completion that is not a JSON object after fence
// stripping.
func parseError(err error) *Error {
	return &Error{
		Kind:     KindFormat,
		Status:   http.StatusInternalServerError,
		Category: msgProcessingFailed,
		Details:  err.Error(),
		Err:      err,
	}
}
