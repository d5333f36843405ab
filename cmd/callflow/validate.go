package main

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"
)

var ErrWorkflowInvalid = errors.New("workflow has validation errors")

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check a workflow snapshot for structural problems",
		ArgsUsage: "FILE",
		Action: func(_ context.Context, command *cli.Command) error {
			tc := newToolchain()

			snapshot, err := tc.load(command)
			if err != nil {
				return err
			}

			report := tc.validator.Validate(&snapshot.Workflow)
			out := command.Root().Writer

			_, _ = fmt.Fprintf(out, "Workflow: %s (%s)\n", snapshot.Name, snapshot.ID)

			for _, finding := range report.Findings {
				_, _ = fmt.Fprintf(out, "  %s\n", finding)
			}

			if report.HasErrors() {
				_, _ = fmt.Fprintf(out, "%d error(s), %d warning(s)\n", len(report.Errors()), len(report.Warnings()))

				return ErrWorkflowInvalid
			}

			_, _ = fmt.Fprintf(out, "valid, %d warning(s)\n", len(report.Warnings()))

			return nil
		},
	}
}
