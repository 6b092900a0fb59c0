package logsink

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"

	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store"
)

// blockableDriver is a log-only driver whose writes can be paused, used to
// exercise queue backpressure.
type blockableDriver struct {
	mu      sync.Mutex
	entries []*store.RecognitionLog

	gate     chan struct{}
	gateOn   atomic.Bool
	busy     atomic.Bool
	failOnce atomic.Bool
}

func newBlockableDriver() *blockableDriver {
	return &blockableDriver{gate: make(chan struct{})}
}

func (d *blockableDriver) block()         { d.gateOn.Store(true) }
func (d *blockableDriver) failNext()      { d.failOnce.Store(true) }
func (d *blockableDriver) inFlight() bool { return d.busy.Load() }

func (d *blockableDriver) unblock() {
	if d.gateOn.CompareAndSwap(true, false) {
		close(d.gate)
	}
}

func (d *blockableDriver) logs() []*store.RecognitionLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*store.RecognitionLog, len(d.entries))
	copy(out, d.entries)
	return out
}

func (d *blockableDriver) CreateRecognitionLog(ctx context.Context, create *store.RecognitionLog) (*store.RecognitionLog, error) {
	if d.gateOn.Load() {
		d.busy.Store(true)
		<-d.gate
	}
	d.busy.Store(false)
	if d.failOnce.CompareAndSwap(true, false) {
		return nil, errors.New("write failed")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = int64(len(d.entries) + 1)
	d.entries = append(d.entries, create)
	return create, nil
}

func (d *blockableDriver) GetDB() *sql.DB                    { return nil }
func (d *blockableDriver) Close() error                      { return nil }
func (d *blockableDriver) Migrate(ctx context.Context) error { return nil }

func (d *blockableDriver) CreateApplication(ctx context.Context, create *store.Application) (*store.Application, error) {
	return nil, errors.New("not implemented")
}

func (d *blockableDriver) ListApplications(ctx context.Context, find *store.FindApplication) ([]*store.Application, error) {
	return nil, nil
}

func (d *blockableDriver) UpdateApplication(ctx context.Context, update *store.UpdateApplication) (*store.Application, error) {
	return nil, errors.New("not implemented")
}

func (d *blockableDriver) DeleteApplication(ctx context.Context, delete *store.DeleteApplication) error {
	return nil
}

func (d *blockableDriver) CreateIntentCategory(ctx context.Context, create *store.IntentCategory) (*store.IntentCategory, error) {
	return nil, errors.New("not implemented")
}

func (d *blockableDriver) ListIntentCategories(ctx context.Context, find *store.FindIntentCategory) ([]*store.IntentCategory, error) {
	return nil, nil
}

func (d *blockableDriver) CreateIntentRule(ctx context.Context, create *store.IntentRule) (*store.IntentRule, error) {
	return nil, errors.New("not implemented")
}

func (d *blockableDriver) ListIntentRules(ctx context.Context, find *store.FindIntentRule) ([]*store.IntentRule, error) {
	return nil, nil
}

func (d *blockableDriver) ListRecognitionLogs(ctx context.Context, find *store.FindRecognitionLog) ([]*store.RecognitionLog, error) {
	return d.logs(), nil
}

func (d *blockableDriver) GetRecognitionStats(ctx context.Context, find *store.FindRecognitionLog) (*store.RecognitionStats, error) {
	return &store.RecognitionStats{}, nil
}

func newTestStore(t *testing.T) (*store.Store, *blockableDriver) {
	t.Helper()
	driver := newBlockableDriver()
	return store.New(driver, &profile.Profile{}), driver
}

func newEntry(appKey, text string) *store.RecognitionLog {
	return &store.RecognitionLog{
		AppKey:    appKey,
		InputText: text,
		IsSuccess: true,
	}
}
