package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/intentd/intent/embedding"
	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/intent/matcher"
	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store"
	"github.com/hrygo/intentd/store/cache"
)

const (
	pipelineCacheSize = 256
	// Compiled pipelines live until invalidation; the TTL is a backstop.
	pipelineCacheTTL = 24 * time.Hour
)

// Compiler builds per-application pipelines and caches them under a config
// fingerprint. Reads dominate; construction happens once per distinct config.
type Compiler struct {
	profile   *profile.Profile
	llmClient *llm.Client
	encoder   embedding.Encoder

	mu    sync.Mutex
	cache *cache.LRUCache[string, *Pipeline]
}

func NewCompiler(profile *profile.Profile, llmClient *llm.Client, encoder embedding.Encoder) *Compiler {
	return &Compiler{
		profile:   profile,
		llmClient: llmClient,
		encoder:   encoder,
		cache:     cache.NewLRUCache[string, *Pipeline](pipelineCacheSize, pipelineCacheTTL),
	}
}

// Get returns the compiled pipeline for the application, building it on
// first use. Double-checks under the mutex so concurrent misses compile once.
func (c *Compiler) Get(ctx context.Context, app *store.Application) (*Pipeline, error) {
	key := c.cacheKey(app)
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}

	p, err := c.compile(ctx, app)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, p, pipelineCacheTTL)
	slog.Info("compiled recognition pipeline",
		"app_key", app.AppKey, "matchers", len(p.Matchers()))
	return p, nil
}

// Invalidate drops every compiled pipeline belonging to the app key.
func (c *Compiler) Invalidate(appKey string) {
	removed := c.cache.InvalidatePrefix(appKey + ":")
	if removed > 0 {
		slog.Info("invalidated compiled pipelines", "app_key", appKey, "count", removed)
	}
}

func (c *Compiler) compile(ctx context.Context, app *store.Application) (*Pipeline, error) {
	var matchers []matcher.Matcher
	if app.EnableKeyword {
		matchers = append(matchers, matcher.NewKeywordMatcher())
	}
	if app.EnableRegex {
		matchers = append(matchers, matcher.NewRegexMatcher())
	}
	if app.EnableSemantic {
		matchers = append(matchers, matcher.NewSemanticMatcher(c.encoder, c.profile.SemanticSimilarityThreshold))
	}
	if app.EnableLLMFallback && c.profile.EnableLLMFallback {
		matchers = append(matchers, matcher.NewLLMMatcher(c.llmClient, true))
	}

	p := New(matchers...)
	for _, m := range p.Matchers() {
		if err := m.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize %s matcher: %w", m.Type(), err)
		}
	}
	return p, nil
}

// cacheKey is app_key + ":" + md5 over the pipeline-relevant config tuple,
// so prefix invalidation by app key stays possible.
func (c *Compiler) cacheKey(app *store.Application) string {
	tuple := fmt.Sprintf("%s|%t|%t|%t|%t|%.4f",
		app.AppKey,
		app.EnableKeyword,
		app.EnableRegex,
		app.EnableSemantic,
		app.EnableLLMFallback,
		c.profile.SemanticSimilarityThreshold,
	)
	sum := md5.Sum([]byte(tuple))
	return app.AppKey + ":" + hex.EncodeToString(sum[:])
}
