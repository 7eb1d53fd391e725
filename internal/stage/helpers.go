package stage

import (
	"errors"
	"strings"

	"vodpipe/internal/backend"
	"vodpipe/internal/services"
)

// Precondition reports missing input for stage. The message is what the
// operator sees as the stage output, e.g. "Missing vod_id".
func Precondition(stage, message string) error {
	return services.Wrap(services.ErrValidation, stage, "precondition", message, nil)
}

// OutputOf renders err as the text recorded for a failed stage run. Backend
// failures show the response text; precondition failures show their message.
func OutputOf(err error) string {
	if err == nil {
		return ""
	}
	var status *backend.StatusError
	if errors.As(err, &status) {
		return status.Message
	}
	var svc *services.ServiceError
	if errors.As(err, &svc) && errors.Is(err, services.ErrValidation) && svc.Cause == nil && svc.Message != "" {
		return svc.Message
	}
	return strings.TrimSpace(err.Error())
}
