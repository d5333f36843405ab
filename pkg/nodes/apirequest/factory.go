// Package apirequest provides the external API request node factory for the registry system.
package apirequest

import (
	"github.com/dukex/callflow/pkg/models"
	"github.com/dukex/callflow/pkg/protocol"
)

const DefaultTimeoutSeconds = 10

// APIRequestNodeFactory describes a call to an external HTTP endpoint.
type APIRequestNodeFactory struct{}

// NewAPIRequestNodeFactory creates a new API request node factory.
func NewAPIRequestNodeFactory() protocol.NodeFactory {
	return &APIRequestNodeFactory{}
}

// Kind returns the node kind.
func (f *APIRequestNodeFactory) Kind() models.NodeKind {
	return models.NodeKindAPIRequest
}

// Name returns the factory name.
func (f *APIRequestNodeFactory) Name() string {
	return "API Request"
}

// Description returns the factory description.
func (f *APIRequestNodeFactory) Description() string {
	return "Calls an external HTTP endpoint and binds the response into a workflow variable"
}

// DefaultConfig returns a GET request with no headers.
func (f *APIRequestNodeFactory) DefaultConfig() models.NodeConfig {
	return &models.APIRequestConfig{
		Method:         "GET",
		Headers:        map[string]string{},
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// Terminal reports whether call handling ends at this node.
func (f *APIRequestNodeFactory) Terminal() bool {
	return false
}

// Primitive returns the runtime action primitive.
func (f *APIRequestNodeFactory) Primitive() models.ActionPrimitive {
	return models.PrimitiveInvokeEndpoint
}

// Schema returns the JSON schema for API request node configuration.
func (f *APIRequestNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
			},
			"url": map[string]any{
				"type":        "string",
				"description": "Endpoint URL",
				"examples": []string{
					"https://crm.example.com/api/customers/lookup",
				},
			},
			"headers": map[string]any{
				"type":                 "object",
				"description":          "HTTP headers sent with the request",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Request body, opaque to the workflow",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Request timeout in seconds",
				"default":     DefaultTimeoutSeconds,
				"minimum":     1,
				"maximum":     300,
			},
			"response_variable": map[string]any{
				"type":        "string",
				"description": "Workflow variable that receives the response",
				"pattern":     "^[A-Za-z_][A-Za-z0-9_]*$",
			},
		},
		"required":             []string{"method", "url", "headers", "timeout_seconds"},
		"additionalProperties": false,
	}
}
