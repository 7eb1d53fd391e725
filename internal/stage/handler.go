package stage

import (
	"context"

	"vodpipe/internal/queue"
)

// Handler is one automatic-lane stage as the workflow manager sees it.
// Prepare stamps progress before the item is persisted as in-flight; Execute
// performs the backend call and leaves the item ready for the next status.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health is a stage's readiness as reported in daemon status.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy reports stage name as ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy reports stage name as not ready.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// Probe turns the result of a dependency check into a Health record.
func Probe(name, dependency string, err error) Health {
	if err != nil {
		return Unhealthy(name, dependency+" unreachable: "+err.Error())
	}
	return Healthy(name)
}
