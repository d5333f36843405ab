package template

import (
	"testing"

	"github.com/dukex/callflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	data := Scope("billing",
		map[string]any{"first_name": "Ana", "account": map[string]any{"balance": 42.5}},
		map[string]any{"amount": 100},
	)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text is untouched", "Thanks for calling", "Thanks for calling"},
		{"variable", "Hi {{ .vars.first_name }}!", "Hi Ana!"},
		{"nested variable", "Your balance is {{ .vars.account.balance }}", "Your balance is 42.5"},
		{"slot and intent", "{{ .intent }} for {{ .slots.amount }}", "billing for 100"},
		{"missing key renders empty", "Hi {{ .vars.last_name }}", "Hi"},
		{"default helper", `Hi {{ default "there" .vars.nickname }}`, "Hi there"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.input, data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Errors(t *testing.T) {
	_, err := Render("Hi {{ .vars.name ", Scope("", nil, nil))
	assert.ErrorContains(t, err, "failed to parse template")

	_, err = Render("{{ index .vars 3 }}", Scope("", map[string]any{}, nil))
	assert.ErrorContains(t, err, "failed to execute template")
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("no actions here"))
	assert.NoError(t, Check("Hello {{ .vars.name }}"))
	assert.Error(t, Check("Hello {{ .vars.name"))
	assert.Error(t, Check("{{ unknownFunc .vars }}"))
}

func TestSpoken(t *testing.T) {
	assert.Equal(t, map[string]string{"greeting": "Welcome"}, Spoken(&models.TriggerConfig{Greeting: "Welcome"}))
	assert.Equal(t, map[string]string{"prompt": "How can I help?"}, Spoken(&models.ConversationConfig{Prompt: "How can I help?"}))
	assert.Equal(t, map[string]string{"message": "Bye"}, Spoken(&models.EndCallConfig{Message: "Bye"}))
	assert.Equal(t, map[string]string{"message": "Hold on"}, Spoken(&models.TransferCallConfig{Destination: "+1555", Message: "Hold on"}))
	assert.Empty(t, Spoken(&models.EndCallConfig{}))
	assert.Empty(t, Spoken(&models.ConditionConfig{}))
	assert.Empty(t, Spoken(nil))
}
