package matcher

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/hrygo/intentd/store"
)

// KeywordMatcher matches input against keyword rules. A rule content of the
// form "^查找零件" registers an exact-match token; otherwise the content is a
// comma-separated token list scored by containment position and weight.
type KeywordMatcher struct {
	enabled bool

	mu    sync.Mutex
	sig   string
	index *keywordIndex
}

type keywordIndex struct {
	// exact token (lowercased) → category code
	exact map[string]string
	// partial token (lowercased) → candidate entries
	partial map[string][]keywordCandidate
	// partial tokens in rule insertion order, so equal scores resolve to the
	// earliest rule instead of map iteration order
	tokens []string
}

type keywordCandidate struct {
	categoryCode string
	rule         *store.IntentRule
}

func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{enabled: true}
}

func (m *KeywordMatcher) Type() string  { return TypeKeyword }
func (m *KeywordMatcher) Enabled() bool { return m.enabled }

func (m *KeywordMatcher) Initialize(ctx context.Context) error { return nil }
func (m *KeywordMatcher) Shutdown()                            {}

func (m *KeywordMatcher) Recognize(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (*Result, error) {
	input := strings.ToLower(strings.TrimSpace(text))
	if input == "" {
		return nil, nil
	}

	index := m.buildIndex(categories, rules)

	// Exact matches win outright and carry no rule snapshots.
	if code, ok := index.exact[input]; ok {
		return &Result{
			Intent:         code,
			Confidence:     1.0,
			RecognizerType: TypeKeyword,
		}, nil
	}

	var best *Result
	inputLen := utf8.RuneCountInString(input)
	for _, token := range index.tokens {
		if !strings.Contains(input, token) {
			continue
		}
		candidates := index.partial[token]
		base := scoreBase(input, token)
		bonus := 0.2 * float64(utf8.RuneCountInString(token)) / float64(inputLen)
		if bonus > 0.2 {
			bonus = 0.2
		}
		score := base + bonus
		if score > 1.0 {
			score = 1.0
		}
		for _, c := range candidates {
			confidence := score * c.rule.Weight
			if confidence > 1.0 {
				confidence = 1.0
			}
			if best == nil || confidence > best.Confidence {
				best = &Result{
					Intent:     c.categoryCode,
					Confidence: confidence,
					MatchedRules: []MatchedRule{{
						ID:       c.rule.ID,
						RuleType: c.rule.RuleType,
						Content:  c.rule.Content,
						Weight:   c.rule.Weight,
					}},
					RecognizerType: TypeKeyword,
				}
			}
		}
	}

	return best, nil
}

func scoreBase(input, token string) float64 {
	switch {
	case token == input:
		return 1.0
	case strings.HasPrefix(input, token):
		return 0.9
	case strings.HasSuffix(input, token):
		return 0.85
	case strings.Contains(" "+input+" ", " "+token+" "), strings.Contains(input, " "+token):
		return 0.8
	default:
		return 0.6
	}
}

// buildIndex lazily builds the token indexes and memoizes them until the
// rule set changes.
func (m *KeywordMatcher) buildIndex(categories []*store.IntentCategory, rules []*store.IntentRule) *keywordIndex {
	sig := ruleSetSignature(rules)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index != nil && m.sig == sig {
		return m.index
	}

	index := &keywordIndex{
		exact:   make(map[string]string),
		partial: make(map[string][]keywordCandidate),
	}
	for _, rule := range rules {
		if rule.RuleType != store.RuleTypeKeyword {
			continue
		}
		code, ok := categoryCodeByID(categories, rule.CategoryID)
		if !ok {
			continue
		}
		content := strings.ToLower(strings.TrimSpace(rule.Content))
		if content == "" {
			continue
		}
		if strings.HasPrefix(content, "^") {
			token := strings.TrimSpace(strings.TrimPrefix(content, "^"))
			if token != "" {
				index.exact[token] = code
			}
			continue
		}
		for _, token := range strings.Split(content, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if _, seen := index.partial[token]; !seen {
				index.tokens = append(index.tokens, token)
			}
			index.partial[token] = append(index.partial[token], keywordCandidate{
				categoryCode: code,
				rule:         rule,
			})
		}
	}

	m.sig = sig
	m.index = index
	return index
}
