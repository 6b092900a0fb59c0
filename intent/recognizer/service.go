// Package recognizer coordinates a single recognition request: result cache,
// app context lookup, pipeline execution, threshold enforcement, LLM and
// static fallbacks, response shaping, logging and metrics.
package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/intent/logsink"
	"github.com/hrygo/intentd/intent/matcher"
	"github.com/hrygo/intentd/intent/metrics"
	"github.com/hrygo/intentd/intent/pipeline"
	"github.com/hrygo/intentd/intent/resultcache"
	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store"
)

const batchConcurrency = 10

// Request is one recognition request.
type Request struct {
	AppKey  string         `json:"app_key"`
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
}

// Service is the recognition coordinator. It never returns an error to the
// caller: every failure mode becomes an in-band failure response.
type Service struct {
	profile   *profile.Profile
	store     *store.Store
	compiler  *pipeline.Compiler
	cache     *resultcache.Cache
	sink      *logsink.Sink
	llmClient *llm.Client
}

func NewService(profile *profile.Profile, st *store.Store, compiler *pipeline.Compiler, cache *resultcache.Cache, sink *logsink.Sink, llmClient *llm.Client) *Service {
	s := &Service{
		profile:   profile,
		store:     st,
		compiler:  compiler,
		cache:     cache,
		sink:      sink,
		llmClient: llmClient,
	}
	// Admin writes drop the compiled pipelines of the touched app.
	st.OnInvalidate(compiler.Invalidate)
	return s
}

// Recognize runs the full recognition flow for one text.
func (s *Service) Recognize(ctx context.Context, req *Request) *Response {
	start := time.Now()
	requestID := uuid.NewString()

	resp := s.recognize(ctx, req, start)
	resp.ProcessingTimeMs = elapsedMs(start)

	outcome := "success"
	if !resp.Success {
		outcome = resp.FailureType
	}
	metrics.RecognitionTotal.WithLabelValues(req.AppKey, outcome).Inc()
	metrics.RecognitionDuration.WithLabelValues(req.AppKey).Observe(time.Since(start).Seconds())

	s.logResponse(requestID, req, resp)
	return resp
}

func (s *Service) recognize(ctx context.Context, req *Request, start time.Time) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recognition panicked", "app_key", req.AppKey, "panic", r)
			resp = buildFailureResponse(FailureSystemError,
				fmt.Sprintf("internal error: %v", r), nil, elapsedMs(start), failureOpts{})
		}
	}()

	// 1. Result cache.
	if s.profile.EnableCache && s.cache != nil {
		if data, ok := s.cache.Get(ctx, req.AppKey, req.Text, req.Context); ok {
			var cached Response
			if err := json.Unmarshal(data, &cached); err != nil {
				slog.Warn("discarding undecodable cached response", "app_key", req.AppKey, "error", err)
			} else {
				metrics.CacheHitTotal.WithLabelValues(req.AppKey).Inc()
				cached.Cached = true
				cached.Success = true
				cached.RecognitionChain = []matcher.ChainEntry{{
					Recognizer: recognizerCache,
					Status:     matcher.StatusSuccess,
					TimeMs:     elapsedMs(start),
				}}
				return &cached
			}
		}
	}

	// 2. App context.
	appCtx, err := s.store.GetAppContext(ctx, req.AppKey)
	if err != nil {
		slog.Error("failed to load app context", "app_key", req.AppKey, "error", err)
		return buildFailureResponse(FailureSystemError,
			"failed to load app configuration: "+err.Error(), nil, elapsedMs(start), failureOpts{})
	}
	if appCtx == nil {
		return s.recognizeWithoutConfig(ctx, req, start)
	}
	app := appCtx.Application

	// 3. Compiled pipeline.
	pl, err := s.compiler.Get(ctx, app)
	if err != nil {
		slog.Error("failed to compile pipeline", "app_key", req.AppKey, "error", err)
		return buildFailureResponse(FailureSystemError,
			"failed to build recognition pipeline: "+err.Error(), nil, elapsedMs(start), failureOpts{})
	}

	outcome := pl.Recognize(ctx, req.Text, appCtx.Categories, appCtx.Rules, req.Context)
	chain := outcome.Chain
	result := outcome.Result

	threshold := app.ConfidenceThreshold
	if threshold <= 0 {
		threshold = s.profile.DefaultConfidenceThreshold
	}

	// 4. No pipeline result: LLM fallback, then static fallback. A sentinel
	// verdict from the LLM falls through to the static fallback intent.
	if result == nil {
		if app.EnableLLMFallback || s.profile.EnableLLMFallback {
			if llmResult := s.tryLLMFallback(ctx, req.Text, appCtx.Categories, &chain); llmResult != nil && llmResult.Intent != matcher.Sentinel {
				resp := buildSuccessResponse(llmResult, chain, elapsedMs(start), true,
					"LLM fallback (no match from rule-based recognizers)")
				s.maybeCache(ctx, req, app, resp)
				return resp
			}
		}
		if fb := staticFallback(app, appCtx.Categories, &chain); fb != nil {
			resp := buildSuccessResponse(fb, chain, elapsedMs(start), true,
				"Fallback intent (no match from recognizers)")
			s.maybeCache(ctx, req, app, resp)
			return resp
		}
		return buildFailureResponse(FailureNoMatch,
			"No matching intent found and no fallback configured",
			chain, elapsedMs(start), failureOpts{threshold: &threshold})
	}

	// 5. Below the application threshold: LLM fallback only. A sentinel falls
	// through to the low_confidence failure carrying the original result.
	if result.Confidence < threshold {
		if app.EnableLLMFallback {
			if llmResult := s.tryLLMFallback(ctx, req.Text, appCtx.Categories, &chain); llmResult != nil && llmResult.Intent != matcher.Sentinel {
				resp := buildSuccessResponse(llmResult, chain, elapsedMs(start), true,
					fmt.Sprintf("LLM fallback (original confidence %.2f < %v)", result.Confidence, threshold))
				s.maybeCache(ctx, req, app, resp)
				return resp
			}
		}
		return buildFailureResponse(FailureLowConfidence,
			fmt.Sprintf("Intent confidence %.2f below threshold %v", result.Confidence, threshold),
			chain, elapsedMs(start), failureOpts{
				intent:       result.Intent,
				confidence:   result.Confidence,
				matchedRules: result.MatchedRules,
				threshold:    &threshold,
			})
	}

	// 6. Accepted.
	resp = buildSuccessResponse(result, chain, elapsedMs(start), false, "")
	s.maybeCache(ctx, req, app, resp)
	return resp
}

// recognizeWithoutConfig handles a missing or empty app configuration. When
// the global LLM fallback is on, the request is still attempted against all
// active categories before giving up.
func (s *Service) recognizeWithoutConfig(ctx context.Context, req *Request, start time.Time) *Response {
	var chain []matcher.ChainEntry
	if s.profile.EnableLLMFallback {
		categories, err := s.store.ListActiveCategoriesGlobal(ctx)
		if err != nil {
			slog.Warn("failed to list global categories for llm fallback", "error", err)
		} else if len(categories) > 0 {
			if llmResult := s.tryLLMFallback(ctx, req.Text, categories, &chain); llmResult != nil && llmResult.Intent != matcher.Sentinel {
				return buildSuccessResponse(llmResult, chain, elapsedMs(start), true,
					"LLM fallback (app configuration missing)")
			}
		}
	}

	reason := fmt.Sprintf("App configuration not found: %s", req.AppKey)
	if app, err := s.store.GetApplicationByKey(ctx, req.AppKey); err == nil && app != nil && app.IsActive {
		reason = fmt.Sprintf("No active intents configured for app: %s", req.AppKey)
	}
	return buildFailureResponse(FailureConfigMissing, reason, chain, elapsedMs(start), failureOpts{})
}

// RecognizeBatch processes texts concurrently. One failing item never fails
// the batch; it degrades to an in-band error result.
func (s *Service) RecognizeBatch(ctx context.Context, appKey string, texts []string, reqContext map[string]any) *BatchResponse {
	results := make([]*Response, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			results[i] = s.Recognize(gctx, &Request{AppKey: appKey, Text: text, Context: reqContext})
			return nil
		})
	}
	_ = g.Wait()

	cached := 0
	for i, r := range results {
		if r == nil {
			// Recognize never returns nil; keep the slot well-formed anyway.
			results[i] = buildFailureResponse(FailureSystemError, "internal error", nil, 0, failureOpts{})
			continue
		}
		if r.Cached {
			cached++
		}
	}

	return &BatchResponse{
		Results:     results,
		TotalCount:  len(results),
		CachedCount: cached,
	}
}

// maybeCache stores a successful response when both the instance and the
// application opt in. Failures are in-band responses and are never cached.
func (s *Service) maybeCache(ctx context.Context, req *Request, app *store.Application, resp *Response) {
	if !resp.Success || !s.profile.EnableCache || s.cache == nil || app == nil || !app.EnableCache {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Warn("failed to serialize response for caching", "app_key", req.AppKey, "error", err)
		return
	}
	s.cache.Set(ctx, req.AppKey, req.Text, req.Context, data)
}

func (s *Service) logResponse(requestID string, req *Request, resp *Response) {
	if s.sink == nil {
		return
	}
	chainJSON, _ := json.Marshal(resp.RecognitionChain)
	rulesJSON, _ := json.Marshal(resp.MatchedRules)
	s.sink.Enqueue(&store.RecognitionLog{
		RequestID:        requestID,
		AppKey:           req.AppKey,
		InputText:        req.Text,
		RecognizedIntent: resp.Intent,
		Confidence:       resp.Confidence,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		IsSuccess:        resp.Success,
		ErrorMessage:     resp.FailureReason,
		RecognitionChain: string(chainJSON),
		MatchedRules:     string(rulesJSON),
	})
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
