package collab

import (
	"context"
	"net/url"
	"time"

	domsvc "IgniteX/internal/domain/service"
	"IgniteX/pkg/cache"
)

// HTTPPerformanceTracker queries the strategy performance service for
// historical win rates. Win rates move slowly, so responses are cached in
// the shared cache layer and survive across instances.
type HTTPPerformanceTracker struct {
	base     *HTTPServiceBase
	cache    cache.Service
	cacheTTL time.Duration
}

// NewHTTPPerformanceTracker creates the performance tracker client. cache
// may be nil, in which case every lookup hits the collaborator.
func NewHTTPPerformanceTracker(baseURL string, timeout, cacheTTL time.Duration, c cache.Service) *HTTPPerformanceTracker {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &HTTPPerformanceTracker{
		base:     NewHTTPServiceBase(baseURL, timeout),
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

type winRateResponse struct {
	Strategy string  `json:"strategy"`
	WinRate  float64 `json:"win_rate"` // percentage, 0-100
}

func (t *HTTPPerformanceTracker) WinRate(ctx context.Context, strategy string) (float64, error) {
	key := cache.GenerateKey("winrate", strategy)
	if t.cache != nil {
		var cached winRateResponse
		if err := t.cache.Get(ctx, key, &cached); err == nil {
			return cached.WinRate, nil
		}
	}

	var wr winRateResponse
	path := "/strategies/" + url.PathEscape(strategy) + "/winrate"
	if err := t.base.GetJSONWithRetry(ctx, path, &wr, 3); err != nil {
		return 0, err
	}
	if t.cache != nil {
		_ = t.cache.Set(ctx, key, wr, t.cacheTTL)
	}
	return wr.WinRate, nil
}

var _ domsvc.WinRateSource = (*HTTPPerformanceTracker)(nil)
