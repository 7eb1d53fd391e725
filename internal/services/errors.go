package services

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrBackend       = errors.New("backend error")
)

// ServiceError carries the stage context of a failure alongside its marker.
type ServiceError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *ServiceError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return e.Marker.Error() + ": " + detail + ": " + e.Cause.Error()
	}
	return e.Marker.Error() + ": " + detail
}

func (e *ServiceError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &ServiceError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// Details summarizes an error for structured logging.
type Details struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     string
}

// DetailsOf extracts the structured fields of err. Errors not produced by Wrap
// are reported with kind "unknown" and the full text as message.
func DetailsOf(err error) Details {
	if err == nil {
		return Details{}
	}
	var svc *ServiceError
	if !errors.As(err, &svc) {
		kind := "unknown"
		switch {
		case errors.Is(err, context.Canceled):
			kind = "canceled"
		case errors.Is(err, context.DeadlineExceeded):
			kind = ErrTimeout.Error()
		}
		return Details{Kind: kind, Message: err.Error()}
	}
	d := Details{
		Kind:      svc.Marker.Error(),
		Stage:     svc.Stage,
		Operation: svc.Operation,
		Message:   svc.Message,
	}
	if svc.Cause != nil {
		d.Cause = svc.Cause.Error()
	}
	return d
}

// Retryable reports whether err is worth retrying without operator action.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// Hint returns an operator-facing next step for err.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "supply the missing input and rerun the stage"
	case errors.Is(err, ErrConfiguration):
		return "fix the configuration and restart"
	case errors.Is(err, ErrNotFound):
		return "check the VOD and segment identifiers"
	case errors.Is(err, ErrBackend):
		return "inspect the media backend logs"
	case Retryable(err):
		return "check backend connectivity and retry"
	default:
		return "check logs for details"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
