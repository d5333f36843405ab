package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukex/callflow/pkg/compiler"
	cli "github.com/urfave/cli/v3"
)

func NewCompileCommand() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Aliases:   []string{"c"},
		Usage:     "Compile a workflow snapshot into a routing definition",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the definition to this file instead of stdout",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			tc := newToolchain()

			snapshot, err := tc.load(command)
			if err != nil {
				return err
			}

			definition, err := tc.compiler.Compile(ctx, snapshot)
			if err != nil {
				if report, ok := compiler.ReportFrom(err); ok {
					for _, finding := range report.Errors() {
						_, _ = fmt.Fprintf(command.Root().ErrWriter, "  %s\n", finding)
					}
				}

				return err
			}

			data, err := json.MarshalIndent(definition, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode definition: %w", err)
			}

			data = append(data, '\n')

			if output := command.String("output"); output != "" {
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}

				return nil
			}

			_, err = command.Root().Writer.Write(data)

			return err
		},
	}
}
