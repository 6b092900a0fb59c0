// Package llm provides the JSON chat-completion classifier client used by
// the LLM matcher and the fallback controller.
//
// go-openai is deliberately not used here: the wire contract accepts
// OpenAI-style, Anthropic-style, and generic response shapes from the same
// endpoint, which a typed SDK client cannot parse.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/intentd/internal/profile"
)

// Error reason codes surfaced as llm_error_reason on failure responses.
const (
	ReasonMissingConfig = "missing_api_key_or_url"
	ReasonConnection    = "api_connection_error"
	ReasonUnknown       = "unknown_error"
	ReasonNoResult      = "llm_no_result"
)

const (
	defaultTimeout = 10 * time.Second
	maxTimeout     = 30 * time.Second

	systemPrompt = "You are an intent classification assistant. Respond only with valid JSON."
)

// Classification is the parsed LLM verdict.
type Classification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Client is a pooled HTTP client against a chat-completion endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string

	httpClient *http.Client
	connected  bool
}

// NewClient builds a client from the profile. The client is usable even with
// incomplete configuration; calls then fail with ReasonMissingConfig.
func NewClient(profile *profile.Profile) *Client {
	timeout := time.Duration(profile.LLMTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	return &Client{
		apiKey:  profile.LLMAPIKey,
		baseURL: profile.LLMBaseURL,
		model:   profile.LLMModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether the client has everything it needs to call out.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.baseURL != "" && c.model != ""
}

// Connected reports the status recorded by the last health probe.
func (c *Client) Connected() bool {
	return c.connected
}

// HealthCheck performs a minimal probe and records connection status.
// A failed probe is logged but never fatal.
func (c *Client) HealthCheck(ctx context.Context) {
	if !c.Configured() {
		slog.Warn("llm client incomplete configuration, probe skipped",
			"has_api_key", c.apiKey != "", "has_base_url", c.baseURL != "", "has_model", c.model != "")
		return
	}
	if _, err := c.complete(ctx, "Health check"); err != nil {
		c.connected = false
		slog.Warn("llm connection probe failed", "error", err)
		return
	}
	c.connected = true
	slog.Info("llm connection probe succeeded", "base_url", c.baseURL, "model", c.model)
}

// Classify sends a classification prompt and parses the JSON verdict.
// A reason code accompanies every error.
func (c *Client) Classify(ctx context.Context, prompt string) (*Classification, string, error) {
	if !c.Configured() {
		return nil, ReasonMissingConfig, errors.New("llm api key, base url or model not configured")
	}

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, ReasonConnection, err
	}
	if content == "" {
		return nil, ReasonNoResult, errors.New("llm returned empty content")
	}

	var classification Classification
	if err := json.Unmarshal([]byte(content), &classification); err != nil {
		return nil, ReasonUnknown, errors.Wrapf(err, "llm returned non-JSON content: %s", content)
	}
	if classification.Intent == "" {
		return nil, ReasonNoResult, errors.Errorf("llm returned no intent: %s", content)
	}
	return &classification, "", nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		// Low temperature for consistent classification output.
		Temperature: 0.1,
		MaxTokens:   100,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal llm request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build llm request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "llm api call failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read llm response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("llm api returned status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	content, err := extractContent(data)
	if err != nil {
		return "", err
	}
	return content, nil
}

// extractContent unwraps the assistant text from the provider-specific
// response shape: OpenAI choices, Anthropic content, or a generic message.
func extractContent(data []byte) (string, error) {
	var shape struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Content json.RawMessage `json:"content"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return "", errors.Wrap(err, "parse llm response envelope")
	}

	if len(shape.Choices) > 0 {
		return stripFences(shape.Choices[0].Message.Content), nil
	}
	if len(shape.Content) > 0 {
		// Anthropic responses carry content as a plain string.
		var content string
		if err := json.Unmarshal(shape.Content, &content); err == nil {
			return stripFences(content), nil
		}
	}
	if shape.Message.Content != "" {
		return stripFences(shape.Message.Content), nil
	}
	return "", errors.New("no content found in llm response")
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	} else {
		return content
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
