// Package store provides database access to applications, categories, rules
// and recognition logs, with an in-process TTL cache for assembled
// per-application contexts.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store/cache"
)

const (
	contextCacheSize = 100
	contextCacheTTL  = 5 * time.Minute
)

// AppContext is the derived, non-persistent aggregate consumed by the
// recognition pipeline: the active application, its active categories, and
// all active+enabled rules for those categories.
type AppContext struct {
	Application *Application
	Categories  []*IntentCategory
	Rules       []*IntentRule
}

// InvalidationHook is notified when an application's configuration changes.
// The pipeline compiler registers one to drop compiled pipelines by app key.
type InvalidationHook func(appKey string)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	contextCache *cache.LRUCache[string, *AppContext]

	hooksMu sync.RWMutex
	hooks   []InvalidationHook
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:       driver,
		profile:      profile,
		contextCache: cache.NewLRUCache[string, *AppContext](contextCacheSize, contextCacheTTL),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// OnInvalidate registers a hook fired whenever an application's
// pipeline-relevant configuration is mutated or removed.
func (s *Store) OnInvalidate(hook InvalidationHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *Store) fireInvalidation(appKey string) {
	// Admin writes clear the whole context cache, not just the touched app.
	s.contextCache.Clear()
	s.hooksMu.RLock()
	hooks := make([]InvalidationHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.hooksMu.RUnlock()
	for _, hook := range hooks {
		hook(appKey)
	}
}

func contextCacheKey(appKey string) string {
	return "context:" + appKey
}

// ============================================================================
// Application
// ============================================================================

func (s *Store) CreateApplication(ctx context.Context, create *Application) (*Application, error) {
	return s.driver.CreateApplication(ctx, create)
}

// GetApplicationByKey returns the application for the given app key, or nil
// when no such application exists.
func (s *Store) GetApplicationByKey(ctx context.Context, appKey string) (*Application, error) {
	list, err := s.driver.ListApplications(ctx, &FindApplication{AppKey: &appKey})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) ListApplications(ctx context.Context, find *FindApplication) ([]*Application, error) {
	return s.driver.ListApplications(ctx, find)
}

// UpdateApplication mutates an application and invalidates every cache keyed
// by its app key, including compiled pipelines.
func (s *Store) UpdateApplication(ctx context.Context, update *UpdateApplication) (*Application, error) {
	updated, err := s.driver.UpdateApplication(ctx, update)
	if err != nil {
		return nil, err
	}
	s.fireInvalidation(updated.AppKey)
	slog.Info("application updated, caches invalidated", "app_key", updated.AppKey)
	return updated, nil
}

func (s *Store) DeleteApplication(ctx context.Context, delete *DeleteApplication) error {
	id := delete.ID
	list, err := s.driver.ListApplications(ctx, &FindApplication{ID: &id})
	if err != nil {
		return err
	}
	if err := s.driver.DeleteApplication(ctx, delete); err != nil {
		return err
	}
	if len(list) > 0 {
		s.fireInvalidation(list[0].AppKey)
	}
	return nil
}

// ============================================================================
// Categories and rules
// ============================================================================

func (s *Store) CreateIntentCategory(ctx context.Context, create *IntentCategory) (*IntentCategory, error) {
	category, err := s.driver.CreateIntentCategory(ctx, create)
	if err != nil {
		return nil, err
	}
	// Category writes change the assembled context of the owning application.
	s.invalidateByApplicationID(ctx, create.ApplicationID)
	return category, nil
}

// ListCategoriesByApplication returns the active categories of an application,
// highest priority first.
func (s *Store) ListCategoriesByApplication(ctx context.Context, applicationID int32) ([]*IntentCategory, error) {
	active := true
	return s.driver.ListIntentCategories(ctx, &FindIntentCategory{
		ApplicationID: &applicationID,
		IsActive:      &active,
	})
}

// ListActiveCategoriesGlobal returns every active category across all
// applications. Used by the fallback controller when the app context is
// missing and the instance-wide LLM fallback is enabled.
func (s *Store) ListActiveCategoriesGlobal(ctx context.Context) ([]*IntentCategory, error) {
	active := true
	return s.driver.ListIntentCategories(ctx, &FindIntentCategory{IsActive: &active})
}

func (s *Store) CreateIntentRule(ctx context.Context, create *IntentRule) (*IntentRule, error) {
	rule, err := s.driver.CreateIntentRule(ctx, create)
	if err != nil {
		return nil, err
	}
	categoryID := create.CategoryID
	categories, err := s.driver.ListIntentCategories(ctx, &FindIntentCategory{ID: &categoryID})
	if err == nil && len(categories) > 0 {
		s.invalidateByApplicationID(ctx, categories[0].ApplicationID)
	}
	return rule, nil
}

// ListActiveRulesForCategories returns all active and enabled rules attached
// to the given categories.
func (s *Store) ListActiveRulesForCategories(ctx context.Context, categoryIDs []int32) ([]*IntentRule, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	active := true
	enabled := true
	return s.driver.ListIntentRules(ctx, &FindIntentRule{
		CategoryIDs: categoryIDs,
		IsActive:    &active,
		Enabled:     &enabled,
	})
}

func (s *Store) invalidateByApplicationID(ctx context.Context, applicationID int32) {
	id := applicationID
	list, err := s.driver.ListApplications(ctx, &FindApplication{ID: &id})
	if err != nil || len(list) == 0 {
		return
	}
	s.fireInvalidation(list[0].AppKey)
}

// ============================================================================
// AppContext
// ============================================================================

// GetAppContext assembles the recognition context for an app key, serving
// from the in-process TTL cache when possible. Returns nil (no error) when
// the application does not exist, is inactive, or has no active categories.
func (s *Store) GetAppContext(ctx context.Context, appKey string) (*AppContext, error) {
	if cached, ok := s.contextCache.Get(contextCacheKey(appKey)); ok {
		return cached, nil
	}

	application, err := s.GetApplicationByKey(ctx, appKey)
	if err != nil {
		return nil, err
	}
	if application == nil || !application.IsActive {
		slog.Warn("application not found or inactive", "app_key", appKey)
		return nil, nil
	}

	categories, err := s.ListCategoriesByApplication(ctx, application.ID)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		slog.Warn("no active categories for application", "app_key", appKey)
		return nil, nil
	}

	categoryIDs := make([]int32, 0, len(categories))
	for _, c := range categories {
		categoryIDs = append(categoryIDs, c.ID)
	}
	rules, err := s.ListActiveRulesForCategories(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}

	appCtx := &AppContext{
		Application: application,
		Categories:  categories,
		Rules:       rules,
	}
	s.contextCache.SetWithDefaultTTL(contextCacheKey(appKey), appCtx)
	return appCtx, nil
}

// ============================================================================
// RecognitionLog
// ============================================================================

func (s *Store) CreateRecognitionLog(ctx context.Context, create *RecognitionLog) (*RecognitionLog, error) {
	return s.driver.CreateRecognitionLog(ctx, create)
}

func (s *Store) ListRecognitionLogs(ctx context.Context, find *FindRecognitionLog) ([]*RecognitionLog, error) {
	return s.driver.ListRecognitionLogs(ctx, find)
}

func (s *Store) GetRecognitionStats(ctx context.Context, find *FindRecognitionLog) (*RecognitionStats, error) {
	return s.driver.GetRecognitionStats(ctx, find)
}
