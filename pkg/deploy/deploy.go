// Package deploy hands compiled routing definitions to the call-handling runtime.
package deploy

import (
	"context"
	"errors"

	"github.com/dukex/callflow/pkg/models"
)

var ErrNilDefinition = errors.New("routing definition is nil")

// Handle identifies one deployment. Its contents are owned by the target runtime.
type Handle struct {
	ID     string `json:"id"`
	Target string `json:"target"`
}

func (h Handle) String() string {
	return h.Target + "/" + h.ID
}

// Deployer publishes a routing definition. Implementations surface target errors
// unchanged and do not retry.
type Deployer interface {
	Deploy(ctx context.Context, definition *models.RoutingDefinition) (Handle, error)
}

// DeployerFunc adapts a function to the Deployer interface.
type DeployerFunc func(ctx context.Context, definition *models.RoutingDefinition) (Handle, error)

func (f DeployerFunc) Deploy(ctx context.Context, definition *models.RoutingDefinition) (Handle, error) {
	return f(ctx, definition)
}
