package condition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultClassifierTimeout = 10 * time.Second

var ErrClassifierStatus = errors.New("intent classifier returned an error status")

// Match is the result of judging an AI condition. Only Matched drives routing;
// Confidence is informational.
type Match struct {
	Matched    bool    `json:"matched"`
	Confidence float64 `json:"confidence"`
}

// IntentClassifier judges a natural-language criterion against the current turn.
type IntentClassifier interface {
	Evaluate(ctx context.Context, description string, turn TurnContext) (Match, error)
}

// ClassifierFunc adapts a function to IntentClassifier.
type ClassifierFunc func(ctx context.Context, description string, turn TurnContext) (Match, error)

func (f ClassifierFunc) Evaluate(ctx context.Context, description string, turn TurnContext) (Match, error) {
	return f(ctx, description, turn)
}

type classifyRequest struct {
	Description string      `json:"description"`
	Turn        TurnContext `json:"turn"`
}

// HTTPClassifier delegates AI conditions to an external classification endpoint.
// It POSTs {"description", "turn"} and expects {"matched", "confidence"}.
type HTTPClassifier struct {
	URL     string
	Headers map[string]string
	Client  *http.Client
	logger  *slog.Logger
}

func NewHTTPClassifier(url string, logger *slog.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		URL:     url,
		Headers: map[string]string{},
		Client: &http.Client{
			Timeout:   defaultClassifierTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger.With("module", "http_classifier"),
	}
}

// Evaluate implements IntentClassifier. Failures are returned as-is; there is no retry.
func (c *HTTPClassifier) Evaluate(ctx context.Context, description string, turn TurnContext) (Match, error) {
	payload, err := json.Marshal(classifyRequest{Description: description, Turn: turn})
	if err != nil {
		return Match{}, fmt.Errorf("failed to encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return Match{}, fmt.Errorf("failed to create classify request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return Match{}, fmt.Errorf("classify request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Match{}, fmt.Errorf("failed to read classify response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Match{}, fmt.Errorf("%w: %d %s", ErrClassifierStatus, resp.StatusCode, bytes.TrimSpace(body))
	}

	var match Match
	if err := json.Unmarshal(body, &match); err != nil {
		return Match{}, fmt.Errorf("failed to decode classify response: %w", err)
	}

	c.logger.DebugContext(ctx, "Classified AI condition",
		"description", description, "matched", match.Matched, "confidence", match.Confidence)

	return match, nil
}
