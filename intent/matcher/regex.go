package matcher

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hrygo/intentd/store"
)

// RegexMatcher matches input against regex rules. Patterns compile
// case-insensitively; invalid patterns are logged and skipped, never fatal.
type RegexMatcher struct {
	enabled bool

	mu       sync.Mutex
	sig      string
	compiled []compiledRegex
}

type compiledRegex struct {
	re           *regexp.Regexp
	categoryCode string
	rule         *store.IntentRule
}

func NewRegexMatcher() *RegexMatcher {
	return &RegexMatcher{enabled: true}
}

func (m *RegexMatcher) Type() string  { return TypeRegex }
func (m *RegexMatcher) Enabled() bool { return m.enabled }

func (m *RegexMatcher) Initialize(ctx context.Context) error { return nil }
func (m *RegexMatcher) Shutdown()                            {}

func (m *RegexMatcher) Recognize(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (*Result, error) {
	input := strings.TrimSpace(text)
	if input == "" {
		return nil, nil
	}

	compiled := m.compile(categories, rules)
	inputLen := float64(utf8.RuneCountInString(input))

	var best *Result
	for _, c := range compiled {
		loc := c.re.FindStringIndex(input)
		if loc == nil {
			continue
		}
		coverage := float64(utf8.RuneCountInString(input[loc[0]:loc[1]])) / inputLen
		confidence := (0.7 + 0.3*coverage) * c.rule.Weight
		if confidence > 1.0 {
			confidence = 1.0
		}
		if best != nil && confidence <= best.Confidence {
			continue
		}

		entities := map[string]string{}
		match := c.re.FindStringSubmatch(input)
		for i, name := range c.re.SubexpNames() {
			if name != "" && i < len(match) {
				entities[name] = match[i]
			}
		}

		best = &Result{
			Intent:     c.categoryCode,
			Confidence: confidence,
			MatchedRules: []MatchedRule{{
				ID:       c.rule.ID,
				RuleType: c.rule.RuleType,
				Content:  c.rule.Content,
				Weight:   c.rule.Weight,
			}},
			Entities:       entities,
			RecognizerType: TypeRegex,
		}
	}

	return best, nil
}

func (m *RegexMatcher) compile(categories []*store.IntentCategory, rules []*store.IntentRule) []compiledRegex {
	sig := ruleSetSignature(rules)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.compiled != nil && m.sig == sig {
		return m.compiled
	}

	compiled := []compiledRegex{}
	for _, rule := range rules {
		if rule.RuleType != store.RuleTypeRegex {
			continue
		}
		code, ok := categoryCodeByID(categories, rule.CategoryID)
		if !ok {
			continue
		}
		re, err := regexp.Compile("(?i)" + rule.Content)
		if err != nil {
			slog.Warn("skipping invalid regex rule", "rule_id", rule.ID, "error", err)
			continue
		}
		compiled = append(compiled, compiledRegex{re: re, categoryCode: code, rule: rule})
	}

	m.sig = sig
	m.compiled = compiled
	return compiled
}
