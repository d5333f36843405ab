// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/callflow/pkg/registry"
)

// NewRegistry returns a registry holding every built-in node kind. It fails when
// a kind is left without factory.
func NewRegistry(logger *slog.Logger) (*registry.Registry, error) {
	reg := registry.NewDefaultRegistry(logger)

	if err := reg.HealthCheck(); err != nil {
		return nil, err
	}

	return reg, nil
}
