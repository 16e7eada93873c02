package collab

import (
	"context"
	"time"

	"IgniteX/internal/domain/models"
	domsvc "IgniteX/internal/domain/service"
	icache "IgniteX/internal/service/cache"
)

const regimeCacheKey = "regime:current"

// HTTPRegimeDetector queries the external market-state service for the
// current regime. Responses are cached in-process for a short TTL so the
// gate chain does not hit the collaborator on every candidate.
type HTTPRegimeDetector struct {
	base     *HTTPServiceBase
	cache    *icache.TTLCache
	cacheTTL time.Duration
}

// NewHTTPRegimeDetector creates the regime client.
func NewHTTPRegimeDetector(baseURL string, timeout, cacheTTL time.Duration) *HTTPRegimeDetector {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &HTTPRegimeDetector{
		base:     NewHTTPServiceBase(baseURL, timeout),
		cache:    icache.NewTTLCache(),
		cacheTTL: cacheTTL,
	}
}

type regimeResponse struct {
	State      string  `json:"state"`
	Confidence float64 `json:"confidence"`
}

func (d *HTTPRegimeDetector) CurrentRegime(ctx context.Context) (models.Regime, error) {
	if v, ok := d.cache.Get(regimeCacheKey); ok {
		if r, ok2 := v.(models.Regime); ok2 {
			return r, nil
		}
	}

	var rr regimeResponse
	if err := d.base.GetJSONWithRetry(ctx, "/regime/current", &rr, 3); err != nil {
		return models.Regime{}, err
	}
	r := models.Regime{
		State:      rr.State,
		Confidence: rr.Confidence,
		DetectedAt: time.Now(),
	}
	d.cache.Set(regimeCacheKey, r, d.cacheTTL)
	return r, nil
}

var _ domsvc.RegimeSource = (*HTTPRegimeDetector)(nil)
