// Package pipeline composes matchers into a chain with first-acceptable
// semantics and compiles per-application pipelines into a fingerprint-keyed
// cache.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/intentd/intent/matcher"
	"github.com/hrygo/intentd/intent/metrics"
	"github.com/hrygo/intentd/store"
)

// acceptanceFloor is the internal confidence bar a matcher result must clear
// for the pipeline to stop iterating. It is distinct from the per-application
// threshold enforced by the fallback controller.
const acceptanceFloor = 0.5

// Outcome is what one pipeline invocation produced: a result (or nil) plus
// the full audit chain. The chain is retained even when Result is nil so the
// fallback controller can attach it to failure responses.
type Outcome struct {
	Result *matcher.Result
	Chain  []matcher.ChainEntry
}

// Pipeline holds an ordered list of matchers, cheapest first.
type Pipeline struct {
	matchers []matcher.Matcher
}

func New(matchers ...matcher.Matcher) *Pipeline {
	return &Pipeline{matchers: matchers}
}

// Matchers returns the composed matchers in pipeline order.
func (p *Pipeline) Matchers() []matcher.Matcher {
	return p.matchers
}

func (p *Pipeline) Shutdown() {
	for _, m := range p.matchers {
		m.Shutdown()
	}
}

// Recognize iterates matchers in order until one yields a result above the
// acceptance floor. Matcher errors are recorded in the chain and iteration
// continues; the pipeline itself never fails.
func (p *Pipeline) Recognize(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) *Outcome {
	outcome := &Outcome{}

	for _, m := range p.matchers {
		if !m.Enabled() {
			outcome.Chain = append(outcome.Chain, matcher.ChainEntry{
				Recognizer: m.Type(),
				Status:     matcher.StatusSkipped,
				Reason:     "disabled",
			})
			continue
		}

		entry, result := p.invoke(ctx, m, text, categories, rules, reqContext)
		if result != nil && result.Confidence > acceptanceFloor {
			outcome.Chain = append(outcome.Chain, entry)
			outcome.Result = result
			return outcome
		}
		if result != nil {
			// Discarded below the floor; the chain records it as a miss.
			entry.Status = matcher.StatusNoMatch
		}
		outcome.Chain = append(outcome.Chain, entry)
	}

	return outcome
}

// RecognizeAll runs every enabled matcher and returns the highest-confidence
// result. Used only on explicit request.
func (p *Pipeline) RecognizeAll(ctx context.Context, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) *Outcome {
	outcome := &Outcome{}

	for _, m := range p.matchers {
		if !m.Enabled() {
			outcome.Chain = append(outcome.Chain, matcher.ChainEntry{
				Recognizer: m.Type(),
				Status:     matcher.StatusSkipped,
				Reason:     "disabled",
			})
			continue
		}

		entry, result := p.invoke(ctx, m, text, categories, rules, reqContext)
		outcome.Chain = append(outcome.Chain, entry)

		if result == nil {
			continue
		}
		if outcome.Result == nil || result.Confidence > outcome.Result.Confidence {
			outcome.Result = result
		}
	}

	return outcome
}

func (p *Pipeline) invoke(ctx context.Context, m matcher.Matcher, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (matcher.ChainEntry, *matcher.Result) {
	start := time.Now()
	result, err := recognizeSafely(ctx, m, text, categories, rules, reqContext)
	metrics.MatcherDuration.WithLabelValues(m.Type()).Observe(time.Since(start).Seconds())
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	entry := matcher.ChainEntry{
		Recognizer: m.Type(),
		TimeMs:     elapsed,
	}

	switch {
	case err != nil:
		entry.Status = matcher.StatusError
		if ctx.Err() != nil {
			entry.Reason = "timeout"
		}
		entry.Error = err.Error()
		slog.Warn("matcher failed", "recognizer", m.Type(), "error", err)
		return entry, nil
	case result == nil:
		entry.Status = matcher.StatusNoMatch
		return entry, nil
	default:
		entry.Status = matcher.StatusSuccess
		entry.Intent = result.Intent
		confidence := result.Confidence
		entry.Confidence = &confidence
		return entry, result
	}
}

// recognizeSafely converts a matcher panic into an error so one faulty rule
// set cannot take down the request.
func recognizeSafely(ctx context.Context, m matcher.Matcher, text string, categories []*store.IntentCategory, rules []*store.IntentRule, reqContext map[string]any) (result *matcher.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errors.Errorf("matcher %s panicked: %v", m.Type(), r)
		}
	}()
	return m.Recognize(ctx, text, categories, rules, reqContext)
}
