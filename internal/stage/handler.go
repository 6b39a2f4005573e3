// Package stage defines the contract the pipeline manager uses to drive
// each processing stage.
package stage

import (
	"context"

	"scenecast/internal/scenes"
)

// Handler describes the contract the pipeline manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *scenes.Item) error
	Execute(context.Context, *scenes.Item) error
	HealthCheck(context.Context) Health
}
