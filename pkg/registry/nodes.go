package registry

import (
	"log/slog"

	"github.com/dukex/callflow/pkg/nodes/apirequest"
	conditionnode "github.com/dukex/callflow/pkg/nodes/condition"
	"github.com/dukex/callflow/pkg/nodes/conversation"
	"github.com/dukex/callflow/pkg/nodes/endcall"
	"github.com/dukex/callflow/pkg/nodes/global"
	"github.com/dukex/callflow/pkg/nodes/tool"
	"github.com/dukex/callflow/pkg/nodes/transfercall"
	"github.com/dukex/callflow/pkg/nodes/trigger"
)

// RegisterDefaultNodes registers all built-in node factories with the registry.
func (r *Registry) RegisterDefaultNodes() {
	r.RegisterNode(trigger.NewTriggerNodeFactory())
	r.RegisterNode(conversation.NewConversationNodeFactory())
	r.RegisterNode(apirequest.NewAPIRequestNodeFactory())
	r.RegisterNode(tool.NewToolNodeFactory())

	// Terminal nodes
	r.RegisterNode(transfercall.NewTransferCallNodeFactory())
	r.RegisterNode(endcall.NewEndCallNodeFactory())

	// Routing-only nodes
	r.RegisterNode(conditionnode.NewConditionNodeFactory())
	r.RegisterNode(global.NewGlobalNodeFactory())
}

// NewDefaultRegistry returns a registry holding every built-in node kind.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)
	r.RegisterDefaultNodes()

	return r
}
