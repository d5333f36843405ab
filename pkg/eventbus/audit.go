package eventbus

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/callflow/pkg/events"
)

// AuditLog writes one structured log line for every callflow event on the bus.
type AuditLog struct {
	logger *slog.Logger
}

func NewAuditLog(logger *slog.Logger) *AuditLog {
	return &AuditLog{logger: logger.With("module", "event_audit")}
}

// Attach registers the audit handler for every event type and starts consuming.
func (a *AuditLog) Attach(ctx context.Context, bus EventSubscriber) error {
	for _, eventType := range events.Types() {
		if err := bus.Handle(eventType, a.record); err != nil {
			return fmt.Errorf("failed to handle %s events: %w", eventType, err)
		}
	}

	return bus.Subscribe(ctx)
}

func (a *AuditLog) record(ctx context.Context, event any) error {
	var attrs []any

	switch e := event.(type) {
	case *events.WorkflowSaved:
		attrs = append(baseAttrs(e.BaseEvent),
			"name", e.Name,
			"nodes", e.NodeCount,
			"edges", e.EdgeCount,
			"forced", e.Forced)
	case *events.WorkflowDeleted:
		attrs = baseAttrs(e.BaseEvent)
	case *events.WorkflowCompiled:
		attrs = append(baseAttrs(e.BaseEvent),
			"schema_version", e.SchemaVersion,
			"actions", e.ActionCount,
			"transitions", e.TransitionCount)
	case *events.RoutingDeployed:
		attrs = append(baseAttrs(e.BaseEvent), "deployment_id", e.DeploymentID)
		if e.Definition != nil {
			attrs = append(attrs, "entry_node_id", e.Definition.EntryNodeID)
		}
	default:
		a.logger.WarnContext(ctx, "Unexpected event payload", "payload_type", fmt.Sprintf("%T", event))

		return nil
	}

	a.logger.InfoContext(ctx, "Event received", attrs...)

	return nil
}

func baseAttrs(base events.BaseEvent) []any {
	return []any{
		"event_id", base.ID,
		"event_type", string(base.Type),
		"workflow_id", base.WorkflowID,
	}
}
