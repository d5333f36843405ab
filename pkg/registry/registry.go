// Package registry provides the node type registry: the fixed set of node kinds,
// their default configuration and structural constraints.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidConfig = errors.New("invalid node config")

// Registry maps node kinds to their factories. It is populated once at startup and
// is read-only afterwards.
type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeKind]protocol.NodeFactory
	schemas   map[models.NodeKind]*gojsonschema.Schema
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		factories: make(map[models.NodeKind]protocol.NodeFactory),
		schemas:   make(map[models.NodeKind]*gojsonschema.Schema),
	}
}

// RegisterNode registers a node factory, replacing any factory of the same kind.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	kind := factory.Kind()
	r.factories[kind] = factory

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(factory.Schema()))
	if err != nil {
		r.logger.Error("Invalid node schema, config validation disabled for kind",
			"kind", kind, "error", err)
		delete(r.schemas, kind)

		return
	}

	r.schemas[kind] = schema
}

// Lookup returns the factory registered for kind.
func (r *Registry) Lookup(kind models.NodeKind) (protocol.NodeFactory, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownNodeKind, kind)
	}

	return factory, nil
}

// Kinds returns the registered kinds in canonical order.
func (r *Registry) Kinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.factories))

	for _, kind := range models.NodeKinds() {
		if _, ok := r.factories[kind]; ok {
			kinds = append(kinds, kind)
		}
	}

	return kinds
}

// GetAvailableNodes returns all registered factories in canonical kind order.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	kinds := r.Kinds()
	factories := make([]protocol.NodeFactory, 0, len(kinds))

	for _, kind := range kinds {
		factories = append(factories, r.factories[kind])
	}

	return factories
}

// DefaultConfig returns a fresh canonical starting configuration for kind.
func (r *Registry) DefaultConfig(kind models.NodeKind) (models.NodeConfig, error) {
	factory, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}

	return factory.DefaultConfig(), nil
}

// IsTerminal reports whether nodes of kind end call handling and so expect no
// outgoing edges. Unknown kinds are not terminal.
func (r *Registry) IsTerminal(kind models.NodeKind) bool {
	factory, ok := r.factories[kind]

	return ok && factory.Terminal()
}

// DisplayName returns a human label for kind, falling back to the kind itself.
func (r *Registry) DisplayName(kind models.NodeKind) string {
	factory, ok := r.factories[kind]
	if !ok {
		return string(kind)
	}

	return factory.Name()
}

// Primitive returns the runtime action primitive nodes of kind lower to.
func (r *Registry) Primitive(kind models.NodeKind) (models.ActionPrimitive, error) {
	factory, err := r.Lookup(kind)
	if err != nil {
		return "", err
	}

	return factory.Primitive(), nil
}

// ValidateConfig checks config against the JSON schema of kind. The returned error
// wraps ErrInvalidConfig and lists every schema violation.
func (r *Registry) ValidateConfig(kind models.NodeKind, config models.NodeConfig) error {
	if _, err := r.Lookup(kind); err != nil {
		return err
	}

	if config == nil {
		return fmt.Errorf("%w: missing config", ErrInvalidConfig)
	}

	if config.Kind() != kind {
		return fmt.Errorf("%w: %s config on %s node", ErrInvalidConfig, config.Kind(), kind)
	}

	schema, ok := r.schemas[kind]
	if !ok {
		return nil
	}

	document, err := models.ConfigToMap(config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

// HealthCheck reports whether every node kind has a factory.
func (r *Registry) HealthCheck() error {
	var missing []string

	for _, kind := range models.NodeKinds() {
		if _, ok := r.factories[kind]; !ok {
			missing = append(missing, string(kind))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("node kinds without factory: %s", strings.Join(missing, ", "))
	}

	return nil
}
