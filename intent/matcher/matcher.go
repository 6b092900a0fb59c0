// Package matcher defines the recognizer contract and its four concrete
// implementations: keyword, regex, semantic, and llm.
package matcher

import (
	"context"

	"github.com/hrygo/intentd/store"
)

// Matcher type tags, stable across the wire and the recognition chain.
const (
	TypeKeyword  = "keyword"
	TypeRegex    = "regex"
	TypeSemantic = "semantic"
	TypeLLM      = "llm"
)

// Chain entry statuses.
const (
	StatusSuccess = "success"
	StatusNoMatch = "no_match"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Sentinel is the literal the LLM returns to denote "no category fits".
// It is part of the wire contract and must be preserved byte-for-byte.
const Sentinel = "LLM无法匹配"

// MatchedRule is a snapshot of a rule that argued for the returned intent.
type MatchedRule struct {
	ID       int32   `json:"id"`
	RuleType string  `json:"rule_type"`
	Content  string  `json:"content"`
	Weight   float64 `json:"weight"`
}

// ChainEntry is one step of the per-request recognition audit trace.
type ChainEntry struct {
	Recognizer string   `json:"recognizer"`
	Status     string   `json:"status"`
	Intent     string   `json:"intent,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	TimeMs     float64  `json:"time_ms"`
	Reason     string   `json:"reason,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Result is a matcher's finding: a candidate intent with its evidence.
type Result struct {
	Intent         string            `json:"intent"`
	Confidence     float64           `json:"confidence"`
	MatchedRules   []MatchedRule     `json:"matched_rules"`
	Entities       map[string]string `json:"entities"`
	RecognizerType string            `json:"recognizer_type"`

	// LLMErrorReason carries the reason code when an LLM sentinel was
	// produced by a failure rather than a genuine "no category fits".
	LLMErrorReason string `json:"-"`
}

// Matcher consumes text and emits at most one candidate intent. A nil result
// with a nil error means "nothing matched". Matchers never panic; unexpected
// conditions surface as error values the pipeline records in the chain.
type Matcher interface {
	Type() string
	Enabled() bool

	// Initialize is called once at pipeline compile time. It may load
	// models or open connections.
	Initialize(ctx context.Context) error
	Shutdown()

	Recognize(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (*Result, error)
}

func ruleSetSignature(rules []*store.IntentRule) string {
	// Cheap identity for the lazily built index: rule ids plus update times.
	// Enough to detect a refreshed AppContext after an admin write.
	sig := make([]byte, 0, len(rules)*12)
	for _, r := range rules {
		sig = appendInt(sig, int64(r.ID))
		sig = appendInt(sig, r.UpdatedAt.Unix())
	}
	return string(sig)
}

func appendInt(b []byte, v int64) []byte {
	for i := 0; i < 8; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func categoryCodeByID(categories []*store.IntentCategory, id int32) (string, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c.Code, true
		}
	}
	return "", false
}
