package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/intentd/internal/profile"
)

type fakeDriver struct {
	applications []*Application
	categories   []*IntentCategory
	rules        []*IntentRule
	logs         []*RecognitionLog

	listAppCalls int
}

func (d *fakeDriver) GetDB() *sql.DB { return nil }
func (d *fakeDriver) Close() error   { return nil }

func (d *fakeDriver) Migrate(ctx context.Context) error { return nil }

func (d *fakeDriver) CreateApplication(ctx context.Context, create *Application) (*Application, error) {
	create.ID = int32(len(d.applications) + 1)
	d.applications = append(d.applications, create)
	return create, nil
}

func (d *fakeDriver) ListApplications(ctx context.Context, find *FindApplication) ([]*Application, error) {
	d.listAppCalls++
	var list []*Application
	for _, a := range d.applications {
		if find.ID != nil && a.ID != *find.ID {
			continue
		}
		if find.AppKey != nil && a.AppKey != *find.AppKey {
			continue
		}
		if find.IsActive != nil && a.IsActive != *find.IsActive {
			continue
		}
		list = append(list, a)
	}
	return list, nil
}

func (d *fakeDriver) UpdateApplication(ctx context.Context, update *UpdateApplication) (*Application, error) {
	for _, a := range d.applications {
		if a.ID == update.ID {
			if update.Name != nil {
				a.Name = *update.Name
			}
			if update.IsActive != nil {
				a.IsActive = *update.IsActive
			}
			if update.EnableKeyword != nil {
				a.EnableKeyword = *update.EnableKeyword
			}
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (d *fakeDriver) DeleteApplication(ctx context.Context, delete *DeleteApplication) error {
	for i, a := range d.applications {
		if a.ID == delete.ID {
			d.applications = append(d.applications[:i], d.applications[i+1:]...)
			return nil
		}
	}
	return nil
}

func (d *fakeDriver) CreateIntentCategory(ctx context.Context, create *IntentCategory) (*IntentCategory, error) {
	create.ID = int32(len(d.categories) + 1)
	d.categories = append(d.categories, create)
	return create, nil
}

func (d *fakeDriver) ListIntentCategories(ctx context.Context, find *FindIntentCategory) ([]*IntentCategory, error) {
	var list []*IntentCategory
	for _, c := range d.categories {
		if find.ID != nil && c.ID != *find.ID {
			continue
		}
		if find.ApplicationID != nil && c.ApplicationID != *find.ApplicationID {
			continue
		}
		if find.IsActive != nil && c.IsActive != *find.IsActive {
			continue
		}
		list = append(list, c)
	}
	return list, nil
}

func (d *fakeDriver) CreateIntentRule(ctx context.Context, create *IntentRule) (*IntentRule, error) {
	create.ID = int32(len(d.rules) + 1)
	d.rules = append(d.rules, create)
	return create, nil
}

func (d *fakeDriver) ListIntentRules(ctx context.Context, find *FindIntentRule) ([]*IntentRule, error) {
	var list []*IntentRule
	for _, r := range d.rules {
		if len(find.CategoryIDs) > 0 {
			found := false
			for _, id := range find.CategoryIDs {
				if r.CategoryID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if find.IsActive != nil && r.IsActive != *find.IsActive {
			continue
		}
		if find.Enabled != nil && r.Enabled != *find.Enabled {
			continue
		}
		list = append(list, r)
	}
	return list, nil
}

func (d *fakeDriver) CreateRecognitionLog(ctx context.Context, create *RecognitionLog) (*RecognitionLog, error) {
	create.ID = int64(len(d.logs) + 1)
	d.logs = append(d.logs, create)
	return create, nil
}

func (d *fakeDriver) ListRecognitionLogs(ctx context.Context, find *FindRecognitionLog) ([]*RecognitionLog, error) {
	return d.logs, nil
}

func (d *fakeDriver) GetRecognitionStats(ctx context.Context, find *FindRecognitionLog) (*RecognitionStats, error) {
	stats := &RecognitionStats{TotalCount: int64(len(d.logs))}
	for _, l := range d.logs {
		if l.IsSuccess {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
	}
	return stats, nil
}

func newTestStore(t *testing.T) (*Store, *fakeDriver) {
	t.Helper()
	driver := &fakeDriver{}
	return New(driver, &profile.Profile{}), driver
}

func seedApp(t *testing.T, s *Store, appKey string) *Application {
	t.Helper()
	ctx := context.Background()
	app, err := s.CreateApplication(ctx, &Application{
		AppKey:        appKey,
		Name:          "测试应用",
		IsActive:      true,
		EnableKeyword: true,
	})
	require.NoError(t, err)
	category, err := s.CreateIntentCategory(ctx, &IntentCategory{
		ApplicationID: app.ID,
		Code:          "QUERY_PART",
		Name:          "查询零件",
		Priority:      10,
		IsActive:      true,
	})
	require.NoError(t, err)
	_, err = s.CreateIntentRule(ctx, &IntentRule{
		CategoryID: category.ID,
		RuleType:   RuleTypeKeyword,
		Content:    "零件,部件",
		Weight:     1.0,
		IsActive:   true,
		Enabled:    true,
	})
	require.NoError(t, err)
	return app
}

func TestGetAppContext(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	seedApp(t, s, "app-1")

	appCtx, err := s.GetAppContext(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, appCtx)
	require.Equal(t, "app-1", appCtx.Application.AppKey)
	require.Len(t, appCtx.Categories, 1)
	require.Len(t, appCtx.Rules, 1)
}

func TestGetAppContextCached(t *testing.T) {
	ctx := context.Background()
	s, driver := newTestStore(t)
	seedApp(t, s, "app-1")

	_, err := s.GetAppContext(ctx, "app-1")
	require.NoError(t, err)
	callsAfterFirst := driver.listAppCalls

	_, err = s.GetAppContext(ctx, "app-1")
	require.NoError(t, err)
	require.Equal(t, callsAfterFirst, driver.listAppCalls, "second lookup should be served from cache")
}

func TestGetAppContextUnknownApp(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	appCtx, err := s.GetAppContext(ctx, "no-such-app")
	require.NoError(t, err)
	require.Nil(t, appCtx)
}

func TestGetAppContextInactiveApp(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	app := seedApp(t, s, "app-1")
	inactive := false
	_, err := s.UpdateApplication(ctx, &UpdateApplication{ID: app.ID, IsActive: &inactive})
	require.NoError(t, err)

	appCtx, err := s.GetAppContext(ctx, "app-1")
	require.NoError(t, err)
	require.Nil(t, appCtx)
}

func TestUpdateApplicationInvalidatesContext(t *testing.T) {
	ctx := context.Background()
	s, driver := newTestStore(t)
	app := seedApp(t, s, "app-1")

	_, err := s.GetAppContext(ctx, "app-1")
	require.NoError(t, err)

	name := "renamed"
	_, err = s.UpdateApplication(ctx, &UpdateApplication{ID: app.ID, Name: &name})
	require.NoError(t, err)

	before := driver.listAppCalls
	appCtx, err := s.GetAppContext(ctx, "app-1")
	require.NoError(t, err)
	require.NotNil(t, appCtx)
	require.Greater(t, driver.listAppCalls, before, "context must be rebuilt after update")
	require.Equal(t, "renamed", appCtx.Application.Name)
}

func TestInvalidationHookFired(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	app := seedApp(t, s, "app-1")

	var fired []string
	s.OnInvalidate(func(appKey string) {
		fired = append(fired, appKey)
	})

	name := "renamed"
	_, err := s.UpdateApplication(ctx, &UpdateApplication{ID: app.ID, Name: &name})
	require.NoError(t, err)
	require.Equal(t, []string{"app-1"}, fired)

	err = s.DeleteApplication(ctx, &DeleteApplication{ID: app.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"app-1", "app-1"}, fired)
}

func TestListActiveCategoriesGlobal(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	seedApp(t, s, "app-1")
	seedApp(t, s, "app-2")

	categories, err := s.ListActiveCategoriesGlobal(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
}
