// Package httpdeploy deploys routing definitions to the runtime's HTTP deployment endpoint.
package httpdeploy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dukex/callflow/pkg/deploy"
	"github.com/dukex/callflow/pkg/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Target names the deployments made by this package.
const Target = "http"

const defaultTimeout = 30 * time.Second

var ErrMissingDeploymentID = errors.New("deployment response carries no id")

// StatusError reports a non-2xx answer from the deployment endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deployment endpoint returned %d: %s", e.StatusCode, e.Body)
}

type deployResponse struct {
	ID string `json:"id"`
}

type Deployer struct {
	url     string
	headers map[string]string
	client  *http.Client
	logger  *slog.Logger
}

type Option func(*Deployer)

// WithHeader adds a header to every deployment request.
func WithHeader(key, value string) Option {
	return func(d *Deployer) {
		d.headers[key] = value
	}
}

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Deployer) {
		d.client = client
	}
}

func NewDeployer(url string, logger *slog.Logger, opts ...Option) *Deployer {
	deployer := &Deployer{
		url:     url,
		headers: map[string]string{},
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With("module", "httpdeploy"),
	}

	for _, opt := range opts {
		opt(deployer)
	}

	return deployer
}

// Deploy POSTs the definition as JSON. The deployment id is taken from the
// response body's "id" field, or else from the last segment of the Location header.
func (d *Deployer) Deploy(ctx context.Context, definition *models.RoutingDefinition) (deploy.Handle, error) {
	if definition == nil {
		return deploy.Handle{}, deploy.ErrNilDefinition
	}

	payload, err := json.Marshal(definition)
	if err != nil {
		return deploy.Handle{}, fmt.Errorf("failed to encode routing definition: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return deploy.Handle{}, fmt.Errorf("failed to create deployment request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range d.headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return deploy.Handle{}, fmt.Errorf("deployment request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return deploy.Handle{}, fmt.Errorf("failed to read deployment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return deploy.Handle{}, &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	id := deploymentID(resp.Header.Get("Location"), body)
	if id == "" {
		return deploy.Handle{}, ErrMissingDeploymentID
	}

	d.logger.InfoContext(ctx, "Deployed routing definition",
		"workflow_id", definition.WorkflowID,
		"deployment_id", id,
		"status", resp.StatusCode,
	)

	return deploy.Handle{ID: id, Target: Target}, nil
}

func deploymentID(location string, body []byte) string {
	var response deployResponse
	if len(body) > 0 && json.Unmarshal(body, &response) == nil && response.ID != "" {
		return response.ID
	}

	location = strings.TrimRight(location, "/")
	if location == "" {
		return ""
	}

	return path.Base(location)
}
