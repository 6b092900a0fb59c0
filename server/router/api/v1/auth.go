package v1

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/intentd/internal/profile"
	"github.com/hrygo/intentd/store/cache"
)

const (
	authCacheSize = 128
	authCacheTTL  = 5 * time.Minute
)

// apiKeyAuth validates the configured header against the static admin key.
// Verified keys are remembered for a few minutes so the constant-time compare
// runs once per key, not once per request.
type apiKeyAuth struct {
	header   string
	adminKey string
	verified *cache.LRUCache[string, bool]
}

func newAPIKeyAuth(profile *profile.Profile) *apiKeyAuth {
	header := profile.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	return &apiKeyAuth{
		header:   header,
		adminKey: profile.AdminAPIKey,
		verified: cache.NewLRUCache[string, bool](authCacheSize, authCacheTTL),
	}
}

func (a *apiKeyAuth) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Empty admin key disables authentication.
		if a.adminKey == "" {
			return next(c)
		}
		presented := c.Request().Header.Get(a.header)
		if presented == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing api key")
		}
		if !a.verify(presented) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
		}
		return next(c)
	}
}

func (a *apiKeyAuth) verify(presented string) bool {
	if ok, hit := a.verified.Get(presented); hit {
		return ok
	}
	ok := subtle.ConstantTimeCompare([]byte(presented), []byte(a.adminKey)) == 1
	if ok {
		// Only positive results are cached; a rejected key is recompared so a
		// rotated admin key takes effect immediately.
		a.verified.SetWithDefaultTTL(presented, true)
	}
	return ok
}
