// Package template renders the spoken text of call nodes (greetings, prompts and
// messages) with Go text/template syntax, e.g. "Hi {{ .vars.first_name }}".
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/callflow/pkg/models"
)

const noValue = "<no value>"

func newTemplate(name string) *template.Template {
	return template.
		New(name).
		Option("missingkey=zero").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"default": func(fallback, value any) any {
				if value == nil || value == "" {
					return fallback
				}

				return value
			},
		})
}

// NeedsTemplating reports whether input contains template actions.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// Check parses input without executing it.
func Check(input string) error {
	if !NeedsTemplating(input) {
		return nil
	}

	if _, err := newTemplate("check").Parse(input); err != nil {
		return fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	return nil
}

// Render executes input against data. Missing map keys render as empty text.
func Render(input string, data any) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	tmpl, err := newTemplate("render").Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	return strings.TrimSpace(strings.ReplaceAll(buf.String(), noValue, "")), nil
}

// Scope builds the data a spoken template sees: the call variables under vars,
// the extracted slots under slots and the caller intent.
func Scope(intent string, variables, slots map[string]any) map[string]any {
	return map[string]any{
		"intent": intent,
		"vars":   variables,
		"slots":  slots,
	}
}

// Spoken returns the text the caller hears from a node config, keyed by config
// field. Kinds that say nothing return an empty map.
func Spoken(config models.NodeConfig) map[string]string {
	fields := make(map[string]string)

	switch c := config.(type) {
	case *models.TriggerConfig:
		fields["greeting"] = c.Greeting
	case *models.ConversationConfig:
		fields["prompt"] = c.Prompt
	case *models.TransferCallConfig:
		fields["message"] = c.Message
	case *models.EndCallConfig:
		fields["message"] = c.Message
	}

	for name, text := range fields {
		if text == "" {
			delete(fields, name)
		}
	}

	return fields
}
