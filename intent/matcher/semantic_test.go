package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/intentd/store"
)

// stubEncoder maps texts to fixed unit vectors so similarity is controlled
// by the test.
type stubEncoder struct {
	vectors map[string][]float32
	batches int
}

func (e *stubEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (e *stubEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEncoder) Dimensions() int { return 3 }

func TestSemanticMatch(t *testing.T) {
	ctx := context.Background()
	encoder := &stubEncoder{vectors: map[string][]float32{
		"查询零件信息": {1, 0, 0},
		"查零件":    {1, 0, 0},
		"创建图纸":   {0, 1, 0},
	}}
	m := NewSemanticMatcher(encoder, 0.55)
	categories := []*store.IntentCategory{testCategory(1, "SEARCH_PART"), testCategory(2, "CREATE_DRAWING")}
	rules := []*store.IntentRule{
		testRule(1, 1, store.RuleTypeSemantic, "查询零件信息", 1.0),
		testRule(2, 2, store.RuleTypeSemantic, "创建图纸", 1.0),
	}

	result, err := m.Recognize(ctx, "查零件", categories, rules, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, "SEARCH_PART", result.Intent)
	require.InDelta(t, 1.0, result.Confidence, 1e-6)
	require.Len(t, result.MatchedRules, 1)
	require.Equal(t, int32(1), result.MatchedRules[0].ID)
}

func TestSemanticBelowThreshold(t *testing.T) {
	ctx := context.Background()
	// cosine between input and rule is 0.5, below the 0.55 threshold
	encoder := &stubEncoder{vectors: map[string][]float32{
		"example": {1, 0, 0},
		"input":   {0.5, 0.8660254, 0},
	}}
	m := NewSemanticMatcher(encoder, 0.55)
	categories := []*store.IntentCategory{testCategory(1, "A")}
	rules := []*store.IntentRule{testRule(1, 1, store.RuleTypeSemantic, "example", 1.0)}

	result, err := m.Recognize(ctx, "input", categories, rules, nil)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestSemanticWeightApplied(t *testing.T) {
	ctx := context.Background()
	encoder := &stubEncoder{vectors: map[string][]float32{
		"example": {1, 0, 0},
		"input":   {1, 0, 0},
	}}
	m := NewSemanticMatcher(encoder, 0.55)
	categories := []*store.IntentCategory{testCategory(1, "A")}
	rules := []*store.IntentRule{testRule(1, 1, store.RuleTypeSemantic, "example", 0.8)}

	result, err := m.Recognize(ctx, "input", categories, rules, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.InDelta(t, 0.8, result.Confidence, 1e-6)
}

func TestSemanticRulesEncodedOnce(t *testing.T) {
	ctx := context.Background()
	encoder := &stubEncoder{vectors: map[string][]float32{
		"example": {1, 0, 0},
		"input":   {1, 0, 0},
	}}
	m := NewSemanticMatcher(encoder, 0.55)
	categories := []*store.IntentCategory{testCategory(1, "A")}
	rules := []*store.IntentRule{testRule(1, 1, store.RuleTypeSemantic, "example", 1.0)}

	for i := 0; i < 3; i++ {
		_, err := m.Recognize(ctx, "input", categories, rules, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, encoder.batches, "rule vectors must be memoized across requests")
}

func TestSemanticNoSemanticRules(t *testing.T) {
	ctx := context.Background()
	m := NewSemanticMatcher(&stubEncoder{}, 0.55)
	categories := []*store.IntentCategory{testCategory(1, "A")}
	rules := []*store.IntentRule{testRule(1, 1, store.RuleTypeKeyword, "零件", 1.0)}

	result, err := m.Recognize(ctx, "input", categories, rules, nil)
	require.NoError(t, err)
	require.Nil(t, result)
}
