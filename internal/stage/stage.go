// Package stage defines the contract the workflow reconciler needs from each
// pipeline stage.
package stage

import (
	"context"

	"reelsmith/internal/queue"
)

// Handler runs one pipeline stage for a work item. Prepare performs cheap
// checks and setup; Execute does the work and must leave the item's artifacts
// valid before returning nil.
type Handler interface {
	Stage() queue.Stage
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
