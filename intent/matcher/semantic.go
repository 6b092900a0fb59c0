package matcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/hrygo/intentd/intent/embedding"
	"github.com/hrygo/intentd/store"
)

// SemanticMatcher matches input against example utterances via vector
// similarity. Rule vectors are batch-encoded lazily on first use and
// memoized until the rule set changes.
type SemanticMatcher struct {
	encoder   embedding.Encoder
	threshold float64
	enabled   bool

	mu    sync.Mutex
	sig   string
	index map[int32][]semanticEntry // category id → encoded rules
}

type semanticEntry struct {
	vector []float32
	weight float64
	rule   *store.IntentRule
}

func NewSemanticMatcher(encoder embedding.Encoder, threshold float64) *SemanticMatcher {
	return &SemanticMatcher{
		encoder:   encoder,
		threshold: threshold,
		enabled:   true,
	}
}

func (m *SemanticMatcher) Type() string  { return TypeSemantic }
func (m *SemanticMatcher) Enabled() bool { return m.enabled }

func (m *SemanticMatcher) Initialize(ctx context.Context) error { return nil }
func (m *SemanticMatcher) Shutdown()                            {}

func (m *SemanticMatcher) Recognize(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (*Result, error) {
	index, err := m.buildIndex(ctx, rules)
	if err != nil {
		return nil, err
	}
	if len(index) == 0 {
		return nil, nil
	}

	inputVec, err := m.encoder.Encode(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	var (
		bestScore float64 = -1
		bestRule  *store.IntentRule
		bestCat   int32
	)
	for categoryID, entries := range index {
		for _, e := range entries {
			score := embedding.Cosine(inputVec, e.vector) * e.weight
			if score > bestScore {
				bestScore = score
				bestRule = e.rule
				bestCat = categoryID
			}
		}
	}

	if bestRule == nil || bestScore < m.threshold {
		return nil, nil
	}
	code, ok := categoryCodeByID(categories, bestCat)
	if !ok {
		return nil, nil
	}
	if bestScore > 1.0 {
		bestScore = 1.0
	}

	return &Result{
		Intent:     code,
		Confidence: bestScore,
		MatchedRules: []MatchedRule{{
			ID:       bestRule.ID,
			RuleType: bestRule.RuleType,
			Content:  bestRule.Content,
			Weight:   bestRule.Weight,
		}},
		RecognizerType: TypeSemantic,
	}, nil
}

func (m *SemanticMatcher) buildIndex(ctx context.Context, rules []*store.IntentRule) (map[int32][]semanticEntry, error) {
	sig := ruleSetSignature(rules)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index != nil && m.sig == sig {
		return m.index, nil
	}

	var semanticRules []*store.IntentRule
	var contents []string
	for _, rule := range rules {
		if rule.RuleType != store.RuleTypeSemantic || rule.Content == "" {
			continue
		}
		semanticRules = append(semanticRules, rule)
		contents = append(contents, rule.Content)
	}

	index := map[int32][]semanticEntry{}
	if len(contents) > 0 {
		vectors, err := m.encoder.EncodeBatch(ctx, contents)
		if err != nil {
			return nil, fmt.Errorf("encode rule contents: %w", err)
		}
		if len(vectors) != len(semanticRules) {
			return nil, fmt.Errorf("encoder returned %d vectors for %d rules", len(vectors), len(semanticRules))
		}
		for i, rule := range semanticRules {
			index[rule.CategoryID] = append(index[rule.CategoryID], semanticEntry{
				vector: vectors[i],
				weight: rule.Weight,
				rule:   rule,
			})
		}
	}

	m.sig = sig
	m.index = index
	return index, nil
}
