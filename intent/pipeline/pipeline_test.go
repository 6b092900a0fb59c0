package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/intentd/intent/embedding"
	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/intent/matcher"
	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store"
)

// fakeMatcher scripts one matcher step in the chain.
type fakeMatcher struct {
	typ     string
	enabled bool
	result  *matcher.Result
	err     error
	panics  bool
	calls   int
}

func (m *fakeMatcher) Type() string                            { return m.typ }
func (m *fakeMatcher) Enabled() bool                           { return m.enabled }
func (m *fakeMatcher) Initialize(ctx context.Context) error    { return nil }
func (m *fakeMatcher) Shutdown()                               {}
func (m *fakeMatcher) Recognize(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (*matcher.Result, error) {
	m.calls++
	if m.panics {
		panic("boom")
	}
	return m.result, m.err
}

func result(intent string, confidence float64) *matcher.Result {
	return &matcher.Result{Intent: intent, Confidence: confidence, RecognizerType: "fake"}
}

func TestFirstAcceptableStopsAtFloor(t *testing.T) {
	first := &fakeMatcher{typ: "keyword", enabled: true, result: result("A", 0.9)}
	second := &fakeMatcher{typ: "regex", enabled: true, result: result("B", 0.95)}
	p := New(first, second)

	outcome := p.Recognize(context.Background(), "text", nil, nil, nil)
	require.NotNil(t, outcome.Result)
	require.Equal(t, "A", outcome.Result.Intent)
	require.Equal(t, 0, second.calls, "iteration must stop at the first acceptable result")
	require.Len(t, outcome.Chain, 1)
	require.Equal(t, matcher.StatusSuccess, outcome.Chain[0].Status)
}

func TestSubFloorResultDoesNotStop(t *testing.T) {
	first := &fakeMatcher{typ: "keyword", enabled: true, result: result("A", 0.4)}
	second := &fakeMatcher{typ: "regex", enabled: true, result: result("B", 0.8)}
	p := New(first, second)

	outcome := p.Recognize(context.Background(), "text", nil, nil, nil)
	require.NotNil(t, outcome.Result)
	require.Equal(t, "B", outcome.Result.Intent)
	require.Len(t, outcome.Chain, 2)
}

func TestDisabledMatcherSkipped(t *testing.T) {
	disabled := &fakeMatcher{typ: "semantic", enabled: false}
	active := &fakeMatcher{typ: "llm", enabled: true, result: result("A", 0.9)}
	p := New(disabled, active)

	outcome := p.Recognize(context.Background(), "text", nil, nil, nil)
	require.Equal(t, 0, disabled.calls)
	require.Len(t, outcome.Chain, 2)
	require.Equal(t, matcher.StatusSkipped, outcome.Chain[0].Status)
	require.Equal(t, "disabled", outcome.Chain[0].Reason)
}

func TestMatcherErrorRecordedAndIterationContinues(t *testing.T) {
	failing := &fakeMatcher{typ: "keyword", enabled: true, err: context.DeadlineExceeded}
	working := &fakeMatcher{typ: "regex", enabled: true, result: result("A", 0.9)}
	p := New(failing, working)

	outcome := p.Recognize(context.Background(), "text", nil, nil, nil)
	require.NotNil(t, outcome.Result)
	require.Equal(t, matcher.StatusError, outcome.Chain[0].Status)
	require.NotEmpty(t, outcome.Chain[0].Error)
	require.Equal(t, matcher.StatusSuccess, outcome.Chain[1].Status)
}

func TestMatcherPanicBecomesChainError(t *testing.T) {
	panicking := &fakeMatcher{typ: "keyword", enabled: true, panics: true}
	p := New(panicking)

	outcome := p.Recognize(context.Background(), "text", nil, nil, nil)
	require.Nil(t, outcome.Result)
	require.Equal(t, matcher.StatusError, outcome.Chain[0].Status)
	require.Contains(t, outcome.Chain[0].Error, "panicked")
}

func TestNothingAcceptedReturnsChainOnly(t *testing.T) {
	first := &fakeMatcher{typ: "keyword", enabled: true}
	second := &fakeMatcher{typ: "regex", enabled: true, result: result("A", 0.3)}
	p := New(first, second)

	outcome := p.Recognize(context.Background(), "text", nil, nil, nil)
	require.Nil(t, outcome.Result)
	require.Len(t, outcome.Chain, 2)
	require.Equal(t, matcher.StatusNoMatch, outcome.Chain[0].Status)
	// A result below the acceptance floor is discarded and recorded as a
	// miss, not a success.
	require.Equal(t, matcher.StatusNoMatch, outcome.Chain[1].Status)
}

func TestSubFloorResultRecordedAsNoMatch(t *testing.T) {
	first := &fakeMatcher{typ: "keyword", enabled: true, result: result("A", 0.4)}
	second := &fakeMatcher{typ: "regex", enabled: true, result: result("B", 0.8)}
	p := New(first, second)

	outcome := p.Recognize(context.Background(), "text", nil, nil, nil)
	require.NotNil(t, outcome.Result)
	require.Equal(t, "B", outcome.Result.Intent)
	require.Equal(t, matcher.StatusNoMatch, outcome.Chain[0].Status)
	require.Equal(t, matcher.StatusSuccess, outcome.Chain[1].Status)
}

func TestRecognizeAllPicksHighestConfidence(t *testing.T) {
	first := &fakeMatcher{typ: "keyword", enabled: true, result: result("A", 0.6)}
	second := &fakeMatcher{typ: "regex", enabled: true, result: result("B", 0.8)}
	third := &fakeMatcher{typ: "semantic", enabled: true, result: result("C", 0.7)}
	p := New(first, second, third)

	outcome := p.RecognizeAll(context.Background(), "text", nil, nil, nil)
	require.NotNil(t, outcome.Result)
	require.Equal(t, "B", outcome.Result.Intent)
	require.Len(t, outcome.Chain, 3)
}

func testApp(appKey string) *store.Application {
	return &store.Application{
		AppKey:        appKey,
		IsActive:      true,
		EnableKeyword: true,
		EnableRegex:   true,
	}
}

func newTestCompiler() *Compiler {
	p := &profile.Profile{SemanticSimilarityThreshold: 0.55}
	return NewCompiler(p, llm.NewClient(p), embedding.Get(p))
}

func TestCompilerCachesByFingerprint(t *testing.T) {
	ctx := context.Background()
	c := newTestCompiler()
	app := testApp("app-1")

	p1, err := c.Get(ctx, app)
	require.NoError(t, err)
	p2, err := c.Get(ctx, app)
	require.NoError(t, err)
	require.Same(t, p1, p2, "same config must reuse the compiled pipeline")
}

func TestCompilerFingerprintChangesWithFlags(t *testing.T) {
	ctx := context.Background()
	c := newTestCompiler()
	app := testApp("app-1")

	p1, err := c.Get(ctx, app)
	require.NoError(t, err)
	require.Len(t, p1.Matchers(), 2)

	app.EnableRegex = false
	p2, err := c.Get(ctx, app)
	require.NoError(t, err)
	require.NotSame(t, p1, p2)
	require.Len(t, p2.Matchers(), 1)
}

func TestCompilerInvalidateByAppKey(t *testing.T) {
	ctx := context.Background()
	c := newTestCompiler()
	app := testApp("app-1")
	other := testApp("app-2")

	p1, err := c.Get(ctx, app)
	require.NoError(t, err)
	pOther, err := c.Get(ctx, other)
	require.NoError(t, err)

	c.Invalidate("app-1")

	p2, err := c.Get(ctx, app)
	require.NoError(t, err)
	require.NotSame(t, p1, p2, "invalidation must force a recompile")

	pOtherAgain, err := c.Get(ctx, other)
	require.NoError(t, err)
	require.Same(t, pOther, pOtherAgain, "other tenants must be untouched")
}
