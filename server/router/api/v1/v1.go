// Package v1 implements the recognition API: recognize, batch recognize, and
// read-only log/stats queries, guarded by an API-key middleware.
package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/intentd/intent/recognizer"
	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store"
)

type APIV1Service struct {
	Profile    *profile.Profile
	Store      *store.Store
	Recognizer *recognizer.Service

	auth *apiKeyAuth
}

func NewAPIV1Service(profile *profile.Profile, st *store.Store, svc *recognizer.Service) *APIV1Service {
	return &APIV1Service{
		Profile:    profile,
		Store:      st,
		Recognizer: svc,
		auth:       newAPIKeyAuth(profile),
	}
}

func (s *APIV1Service) Register(g *echo.Group) {
	g.Use(s.auth.middleware)
	g.POST("/intent/recognize", s.recognizeIntent)
	g.POST("/intent/recognize/batch", s.recognizeIntentBatch)
	g.GET("/logs", s.listRecognitionLogs)
	g.GET("/stats", s.getRecognitionStats)
}

type recognizeRequest struct {
	AppKey  string         `json:"app_key"`
	Text    string         `json:"text"`
	Context map[string]any `json:"context"`
}

func (s *APIV1Service) recognizeIntent(c echo.Context) error {
	var req recognizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.AppKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "app_key is required")
	}
	text := collapseWhitespace(req.Text)
	if text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text must not be empty")
	}

	resp := s.Recognizer.Recognize(c.Request().Context(), &recognizer.Request{
		AppKey:  req.AppKey,
		Text:    text,
		Context: req.Context,
	})
	return c.JSON(http.StatusOK, resp)
}

type recognizeBatchRequest struct {
	AppKey  string         `json:"app_key"`
	Texts   []string       `json:"texts"`
	Context map[string]any `json:"context"`
}

func (s *APIV1Service) recognizeIntentBatch(c echo.Context) error {
	var req recognizeBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if req.AppKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "app_key is required")
	}
	if len(req.Texts) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "texts must not be empty")
	}
	if len(req.Texts) > s.Profile.MaxBatchSize {
		return echo.NewHTTPError(http.StatusBadRequest,
			"batch size exceeds limit of "+strconv.Itoa(s.Profile.MaxBatchSize))
	}

	texts := make([]string, len(req.Texts))
	for i, t := range req.Texts {
		texts[i] = collapseWhitespace(t)
		if texts[i] == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "texts must not contain empty entries")
		}
	}

	resp := s.Recognizer.RecognizeBatch(c.Request().Context(), req.AppKey, texts, req.Context)
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) listRecognitionLogs(c echo.Context) error {
	find := &store.FindRecognitionLog{
		Limit:  50,
		Offset: 0,
	}
	if appKey := c.QueryParam("app_key"); appKey != "" {
		find.AppKey = &appKey
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit > 0 && limit <= 500 {
		find.Limit = limit
	}
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil && offset > 0 {
		find.Offset = offset
	}

	logs, err := s.Store.ListRecognitionLogs(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list recognition logs")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

func (s *APIV1Service) getRecognitionStats(c echo.Context) error {
	find := &store.FindRecognitionLog{}
	if appKey := c.QueryParam("app_key"); appKey != "" {
		find.AppKey = &appKey
	}

	stats, err := s.Store.GetRecognitionStats(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute recognition stats")
	}
	return c.JSON(http.StatusOK, stats)
}

// collapseWhitespace normalizes runs of whitespace to single spaces and trims
// the ends, so "  你好   世界 " and "你好 世界" are the same input.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
