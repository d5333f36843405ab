package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"

	"github.com/dukex/callflow/pkg/condition"
	"github.com/dukex/callflow/pkg/config"
	"github.com/dukex/callflow/pkg/template"
	cli "github.com/urfave/cli/v3"
)

var ErrMissingFrom = errors.New("--from is required")

// routeResult is the decision plus what the caller hears at its target.
type routeResult struct {
	Decision *condition.Decision `json:"decision"`
	Say      map[string]string   `json:"say,omitempty"`
}

func NewRouteCommand() *cli.Command {
	return &cli.Command{
		Name:      "route",
		Aliases:   []string{"r"},
		Usage:     "Show which transition a turn would take out of a node",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Node the call is currently at",
			},
			&cli.StringFlag{
				Name:  "intent",
				Usage: "Detected caller intent",
			},
			&cli.StringFlag{
				Name:  "utterance",
				Usage: "Caller utterance",
			},
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "Call variable as name=value (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "slot",
				Usage: "Extracted slot as name=value (repeatable)",
			},
			&cli.StringFlag{
				Name:    "classifier-url",
				Usage:   "Intent classifier endpoint used by AI conditions",
				Sources: cli.EnvVars("CLASSIFIER_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			from := command.String("from")
			if from == "" {
				return ErrMissingFrom
			}

			variables, err := config.ParseAssignments(command.StringSlice("var"))
			if err != nil {
				return err
			}

			slots, err := config.ParseAssignments(command.StringSlice("slot"))
			if err != nil {
				return err
			}

			tc := newToolchain()

			snapshot, err := tc.load(command)
			if err != nil {
				return err
			}

			definition, err := tc.compiler.Compile(ctx, snapshot)
			if err != nil {
				return err
			}

			if _, ok := definition.Action(from); !ok {
				return fmt.Errorf("node %s is not part of workflow %s", from, definition.WorkflowID)
			}

			scope := maps.Clone(definition.Variables)
			if scope == nil {
				scope = make(map[string]any)
			}

			maps.Copy(scope, variables)

			var classifier condition.IntentClassifier
			if url := command.String("classifier-url"); url != "" {
				classifier = condition.NewHTTPClassifier(url, tc.logger)
			}

			router := condition.NewRouter(tc.logical, classifier, tc.logger)

			decision, err := router.RouteDefinition(ctx, definition, from, condition.TurnContext{
				Intent:    command.String("intent"),
				Utterance: command.String("utterance"),
				Slots:     slots,
				Variables: scope,
			})
			if err != nil {
				return err
			}

			result := routeResult{Decision: decision}

			if target, ok := definition.Action(decision.Target); ok {
				data := template.Scope(command.String("intent"), scope, slots)

				for field, text := range template.Spoken(target.Config) {
					rendered, err := template.Render(text, data)
					if err != nil {
						return fmt.Errorf("node %s %s: %w", target.NodeID, field, err)
					}

					if result.Say == nil {
						result.Say = make(map[string]string)
					}

					result.Say[field] = rendered
				}
			}

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(result)
		},
	}
}
