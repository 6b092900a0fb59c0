package recognizer

import (
	"context"
	"time"

	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/intent/matcher"
	"github.com/hrygo/intentd/intent/metrics"
	"github.com/hrygo/intentd/store"
)

// tryLLMFallback invokes the LLM classifier outside the pipeline and appends
// its verdict to the chain under the "llm_fallback" name. Returns nil when
// the fallback is unavailable or errored; the sentinel result is returned
// as-is so the caller can surface it with fallback_used set.
func (s *Service) tryLLMFallback(ctx context.Context, text string, categories []*store.IntentCategory, chain *[]matcher.ChainEntry) *matcher.Result {
	if !s.profile.EnableLLMFallback {
		*chain = append(*chain, matcher.ChainEntry{
			Recognizer: recognizerLLMFallback,
			Status:     matcher.StatusSkipped,
			Reason:     "disabled",
		})
		return nil
	}
	if !s.llmClient.Configured() {
		*chain = append(*chain, matcher.ChainEntry{
			Recognizer: recognizerLLMFallback,
			Status:     matcher.StatusError,
			Reason:     llm.ReasonMissingConfig,
			Error:      "LLM configuration incomplete",
		})
		return nil
	}

	llmMatcher := matcher.NewLLMMatcher(s.llmClient, true)

	start := time.Now()
	result, _ := llmMatcher.Recognize(ctx, text, categories, nil, nil)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if result.LLMErrorReason != "" {
		*chain = append(*chain, matcher.ChainEntry{
			Recognizer: recognizerLLMFallback,
			Status:     matcher.StatusError,
			Reason:     result.LLMErrorReason,
			Error:      "LLM classification failed: " + result.LLMErrorReason,
			TimeMs:     elapsed,
		})
		return nil
	}

	entry := matcher.ChainEntry{
		Recognizer: recognizerLLMFallback,
		Intent:     result.Intent,
		TimeMs:     elapsed,
	}
	confidence := result.Confidence
	entry.Confidence = &confidence
	if result.Intent == matcher.Sentinel {
		entry.Status = matcher.StatusNoMatch
	} else {
		entry.Status = matcher.StatusSuccess
	}
	*chain = append(*chain, entry)

	metrics.FallbackTotal.WithLabelValues("llm").Inc()
	result.RecognizerType = recognizerLLMFallback
	return result
}

// staticFallback resolves the application's configured fallback intent if it
// names an active category. A static fallback carries confidence 0.0 so the
// caller can tell it apart from a real match.
func staticFallback(app *store.Application, categories []*store.IntentCategory, chain *[]matcher.ChainEntry) *matcher.Result {
	if app == nil || app.FallbackIntentCode == "" {
		return nil
	}
	for _, c := range categories {
		if c.IsActive && c.Code == app.FallbackIntentCode {
			confidence := 0.0
			*chain = append(*chain, matcher.ChainEntry{
				Recognizer: recognizerFallback,
				Status:     matcher.StatusSuccess,
				Intent:     c.Code,
				Confidence: &confidence,
				TimeMs:     0.0,
			})
			metrics.FallbackTotal.WithLabelValues("static").Inc()
			return &matcher.Result{
				Intent:         c.Code,
				Confidence:     0.0,
				RecognizerType: recognizerFallback,
			}
		}
	}
	return nil
}
