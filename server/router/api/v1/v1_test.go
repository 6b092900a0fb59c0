package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/intentd/intent/llm"
	"github.com/hrygo/intentd/intent/logsink"
	"github.com/hrygo/intentd/intent/pipeline"
	"github.com/hrygo/intentd/intent/recognizer"
	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/server"
	"github.com/hrygo/intentd/store"
	"github.com/hrygo/intentd/store/db/sqlite"
)

func newTestServer(t *testing.T, adminKey string) *server.Server {
	t.Helper()
	ctx := context.Background()

	prof := &profile.Profile{
		Driver:                     "sqlite",
		DSN:                        filepath.Join(t.TempDir(), "intentd_test.db"),
		DefaultConfidenceThreshold: 0.7,
		MaxBatchSize:               2,
		RequestTimeout:             30,
		APIKeyHeader:               "X-API-Key",
		AdminAPIKey:                adminKey,
	}

	driver, err := sqlite.NewDB(prof)
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })

	st := store.New(driver, prof)
	require.NoError(t, st.Migrate(ctx))

	app, err := st.CreateApplication(ctx, &store.Application{
		AppKey:        "test-app",
		Name:          "测试应用",
		IsActive:      true,
		EnableKeyword: true,
	})
	require.NoError(t, err)
	category, err := st.CreateIntentCategory(ctx, &store.IntentCategory{
		ApplicationID: app.ID,
		Code:          "QUERY_PART",
		Name:          "查询零件",
		Priority:      10,
		IsActive:      true,
	})
	require.NoError(t, err)
	_, err = st.CreateIntentRule(ctx, &store.IntentRule{
		CategoryID: category.ID,
		RuleType:   store.RuleTypeKeyword,
		Content:    "零件,部件",
		Weight:     1.0,
		IsActive:   true,
		Enabled:    true,
	})
	require.NoError(t, err)

	llmClient := llm.NewClient(prof)
	compiler := pipeline.NewCompiler(prof, llmClient, nil)
	sink := logsink.New(st, 100)
	t.Cleanup(sink.Shutdown)

	svc := recognizer.NewService(prof, st, compiler, nil, sink, llmClient)
	return server.NewServer(prof, st, svc)
}

func doJSON(t *testing.T, s *server.Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestRecognizeEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize",
		`{"app_key":"test-app","text":"查询零件"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp recognizer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "QUERY_PART", resp.Intent)
	require.NotEmpty(t, resp.RecognitionChain)
}

func TestRecognizeInBandFailure(t *testing.T) {
	s := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize",
		`{"app_key":"test-app","text":"今天天气真不错"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp recognizer.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Equal(t, recognizer.FailureNoMatch, resp.FailureType)
	require.NotEmpty(t, resp.Suggestion)
}

func TestRecognizeValidation(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name string
		body string
	}{
		{"malformed body", `{not json`},
		{"missing app key", `{"text":"查询零件"}`},
		{"empty text", `{"app_key":"test-app","text":""}`},
		{"whitespace only text", `{"app_key":"test-app","text":"   \t\n  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRecognizeAuth(t *testing.T) {
	s := newTestServer(t, "secret-key")
	body := `{"app_key":"test-app","text":"查询零件"}`

	rec := doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize", body,
		map[string]string{"X-API-Key": "wrong-key"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize", body,
		map[string]string{"X-API-Key": "secret-key"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecognizeBatchEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize/batch",
		`{"app_key":"test-app","texts":["查询零件","今天天气真不错"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp recognizer.BatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.TotalCount)
	require.Len(t, resp.Results, 2)
	require.True(t, resp.Results[0].Success)
	require.False(t, resp.Results[1].Success)
}

func TestRecognizeBatchTooLarge(t *testing.T) {
	s := newTestServer(t, "")

	// MaxBatchSize is 2 in the test profile.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize/batch",
		`{"app_key":"test-app","texts":["一","二","三"]}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, "secret-key")

	// Health probes bypass API-key auth.
	rec := doJSON(t, s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/intent/recognize",
		`{"app_key":"test-app","text":"查询零件"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/stats?app_key=test-app", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.RecognitionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
}

func TestLogsEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	rec := doJSON(t, s, http.MethodGet, "/api/v1/logs?app_key=test-app&limit=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
}
