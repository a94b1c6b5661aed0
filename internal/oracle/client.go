package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/statement"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// Client calls the Anthropic Messages API and enforces the reply contract:
// the text content must be JSON (code fences tolerated) and must satisfy
// the stage schema. Any failure, transport or contract, fails the attempt
// and the whole attempt is retried.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
	stats      *Stats
	retry      Policy
	baseURL    string
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		log:     log,
		stats:   NewStats(time.Hour),
		retry:   DefaultPolicy(),
		baseURL: defaultBaseURL,
	}
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Call runs one oracle stage to completion, retrying failed attempts per
// the client's policy. The returned payload is the fence-stripped JSON
// text, already validated against req.Schema and req.Check when set.
func (c *Client) Call(ctx context.Context, req CallRequest) (json.RawMessage, error) {
	policy := c.retry
	if req.MaxAttempts > 0 {
		policy.MaxAttempts = req.MaxAttempts
	}

	c.log.Info("oracle.call.start",
		"stage", req.Stage,
		"model", c.cfg.Model,
		"images", len(req.Images),
		"max_attempts", policy.MaxAttempts,
	)

	var payload json.RawMessage
	var lastRaw string
	attempt := 0
	err := policy.Do(ctx, func() error {
		attempt++
		start := time.Now()
		out, raw, err := c.attempt(ctx, req)
		c.stats.Record(time.Since(start))
		if raw != "" {
			lastRaw = raw
		}
		if err != nil {
			c.log.Warn("oracle.call.retry",
				"stage", req.Stage,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		payload = out
		return nil
	})
	if err != nil {
		c.log.Error("oracle.call.error",
			"stage", req.Stage,
			"attempts", attempt,
			"error", err,
			"raw", truncate(lastRaw, 200),
		)
		return nil, &StageError{Stage: req.Stage, Err: err, Raw: lastRaw}
	}

	c.log.Info("oracle.call.ok",
		"stage", req.Stage,
		"attempts", attempt,
		"bytes", len(payload),
	)
	return payload, nil
}

// attempt performs a single round trip and enforces the reply contract.
// The second return is the fence-stripped reply text once one was
// extracted, whether or not it passed validation.
func (c *Client) attempt(ctx context.Context, req CallRequest) (json.RawMessage, string, error) {
	content := make([]contentBlock, 0, len(req.Images)+1)
	for _, img := range req.Images {
		mediaType := img.MediaType
		if mediaType == "" {
			mediaType = statement.JPEGMediaType
		}
		content = append(content, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mediaType,
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	content = append(content, contentBlock{Type: "text", Text: req.Prompt})

	reqBody := anthropicRequest{
		Model:     c.cfg.Model,
		MaxTokens: 4096,
		Messages: []anthropicMessage{
			{Role: "user", Content: content},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("oracle api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode >= 500 {
		return nil, "", &ServiceError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("oracle api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, "", fmt.Errorf("oracle error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return nil, "", fmt.Errorf("empty response from oracle")
	}

	text := stripCodeBlock(apiResp.Content[0].Text)
	if !json.Valid([]byte(text)) {
		return nil, text, fmt.Errorf("response is not valid json (raw: %s)", truncate(text, 200))
	}
	if req.Schema != nil {
		if err := ValidateAgainstSchema([]byte(text), req.Schema); err != nil {
			return nil, text, fmt.Errorf("schema validation: %w", err)
		}
	}
	if req.Check != nil {
		if err := req.Check(json.RawMessage(text)); err != nil {
			return nil, text, err
		}
	}

	return json.RawMessage(text), text, nil
}

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ServiceError indicates a transient upstream failure.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("oracle service error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Model reports the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Stats exposes the latency tracker for the stats endpoint.
func (c *Client) Stats() *Stats {
	return c.stats
}

// Close releases resources.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
