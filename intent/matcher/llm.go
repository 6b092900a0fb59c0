package matcher

import (
	"context"
	"log/slog"

	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/store"
)

// maximum confidence attributed to an LLM verdict
const llmConfidenceCap = 0.95

// LLMMatcher classifies input with a chat-completion endpoint. It never
// returns an error: any HTTP, parse, or timeout failure yields the sentinel
// with confidence 0.0, and the failure is visible in the chain via the
// recorded reason.
type LLMMatcher struct {
	client  *llm.Client
	enabled bool
}

func NewLLMMatcher(client *llm.Client, enabled bool) *LLMMatcher {
	return &LLMMatcher{client: client, enabled: enabled}
}

func (m *LLMMatcher) Type() string  { return TypeLLM }
func (m *LLMMatcher) Enabled() bool { return m.enabled }

// Initialize probes the endpoint once. Connection failure is recorded but
// never refuses startup.
func (m *LLMMatcher) Initialize(ctx context.Context) error {
	if m.enabled {
		m.client.HealthCheck(ctx)
	}
	return nil
}

func (m *LLMMatcher) Shutdown() {}

func (m *LLMMatcher) Recognize(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (*Result, error) {
	active := make([]*store.IntentCategory, 0, len(categories))
	for _, c := range categories {
		if c.IsActive {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		slog.Warn("no active categories available for llm recognition")
		return m.sentinel(llm.ReasonNoResult), nil
	}

	prompt := llm.BuildPrompt(text, active)
	classification, reason, err := m.client.Classify(ctx, prompt)
	if err != nil {
		slog.Warn("llm classification failed", "reason", reason, "error", err)
		return m.sentinel(reason), nil
	}

	// An intent outside the candidate set is treated as "no match".
	if classification.Intent != Sentinel && !containsCode(active, classification.Intent) {
		slog.Warn("llm returned unknown intent code", "intent", classification.Intent)
		return m.sentinel(""), nil
	}
	if classification.Intent == Sentinel {
		return m.sentinel(""), nil
	}

	confidence := classification.Confidence
	if confidence > llmConfidenceCap {
		confidence = llmConfidenceCap
	}
	if confidence < 0 {
		confidence = 0
	}

	return &Result{
		Intent:         classification.Intent,
		Confidence:     confidence,
		RecognizerType: TypeLLM,
	}, nil
}

func (m *LLMMatcher) sentinel(reason string) *Result {
	return &Result{
		Intent:         Sentinel,
		Confidence:     0.0,
		RecognizerType: TypeLLM,
		LLMErrorReason: reason,
	}
}

func containsCode(categories []*store.IntentCategory, code string) bool {
	for _, c := range categories {
		if c.Code == code {
			return true
		}
	}
	return false
}
