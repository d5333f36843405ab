package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/callflow/pkg/compiler"
	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/config"
	"github.com/dukex/callflow/pkg/log"
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/otelhelper"
	"github.com/dukex/callflow/pkg/registry"
	"github.com/dukex/callflow/pkg/store"
	"github.com/dukex/callflow/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

var ErrMissingFile = errors.New("a snapshot file is required")

// toolchain bundles what the offline commands share.
type toolchain struct {
	logger    *slog.Logger
	registry  *registry.Registry
	logical   *condition.LogicalEvaluator
	validator *validation.Validator
	compiler  *compiler.Compiler
}

func newToolchain() *toolchain {
	logger := log.WithModule("cli")
	reg := registry.NewDefaultRegistry(logger)
	logical := condition.NewLogicalEvaluator(logger)
	validator := validation.NewValidator(reg, logical, logger)

	return &toolchain{
		logger:    logger,
		registry:  reg,
		logical:   logical,
		validator: validator,
		compiler:  compiler.NewCompiler(reg, validator, otelhelper.NoopTracer(), logger),
	}
}

// load reads the snapshot named by the first argument and normalizes it through a
// store import, which enforces the schema version and fills missing configs.
func (tc *toolchain) load(command *cli.Command) (*models.Snapshot, error) {
	path := command.Args().First()
	if path == "" {
		return nil, ErrMissingFile
	}

	snapshot, err := config.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}

	s, err := store.New(tc.registry, store.WithLogger(tc.logger))
	if err != nil {
		return nil, err
	}

	if err := s.Import(snapshot); err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}

	return s.Export(), nil
}
