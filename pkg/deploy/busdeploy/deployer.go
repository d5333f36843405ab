// Package busdeploy deploys routing definitions by publishing them on the event bus.
package busdeploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/callflow/pkg/deploy"
	"github.com/dukex/callflow/pkg/eventbus"
	"github.com/dukex/callflow/pkg/events"
	"github.com/dukex/callflow/pkg/models"
)

// Target names the deployments made by this package.
const Target = "eventbus"

type Deployer struct {
	bus    eventbus.EventBus
	logger *slog.Logger
}

func NewDeployer(bus eventbus.EventBus, logger *slog.Logger) *Deployer {
	return &Deployer{
		bus:    bus,
		logger: logger.With("module", "busdeploy"),
	}
}

// Deploy publishes a routing.deployed event keyed by workflow id.
func (d *Deployer) Deploy(ctx context.Context, definition *models.RoutingDefinition) (deploy.Handle, error) {
	if definition == nil {
		return deploy.Handle{}, deploy.ErrNilDefinition
	}

	event := events.RoutingDeployed{
		BaseEvent:    events.NewBaseEvent(events.RoutingDeployedEvent, definition.WorkflowID),
		DeploymentID: d.bus.GenerateID(),
		Definition:   definition,
	}

	err := d.bus.Publish(ctx, definition.WorkflowID, event)
	if err != nil {
		return deploy.Handle{}, fmt.Errorf("failed to publish routing definition: %w", err)
	}

	d.logger.InfoContext(ctx, "Published routing definition",
		"workflow_id", definition.WorkflowID,
		"deployment_id", event.DeploymentID,
	)

	return deploy.Handle{ID: event.DeploymentID, Target: Target}, nil
}
