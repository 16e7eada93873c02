package models

import "time"

// DistributedSignal is the durable, user-visible record written at release
// time. (user_id, signal_id) is the dedup key: a retried write after a
// transient failure must not create a second logical row.
type DistributedSignal struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	SignalID     string    `json:"signal_id"`
	Symbol       string    `json:"symbol"`
	SignalType   Direction `json:"signal_type"`
	Confidence   float64   `json:"confidence"`
	QualityScore float64   `json:"quality_score"`
	EntryPrice   float64   `json:"entry_price"`
	TakeProfits  []float64 `json:"take_profits"`
	StopLoss     float64   `json:"stop_loss"`
	Tier         Tier      `json:"tier"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Viewed       bool      `json:"viewed"`
	Clicked      bool      `json:"clicked"`
}

// Active reports whether the signal is still fresh. expires_at is the
// authoritative freshness field for all consumers.
func (s *DistributedSignal) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Regime is the market state supplied by the external regime detector.
type Regime struct {
	State      string    `json:"state"` // "trending", "rangebound", "volatile", "quiet"
	Confidence float64   `json:"confidence"`
	DetectedAt time.Time `json:"detected_at"`
}

const (
	RegimeTrending   = "trending"
	RegimeRangebound = "rangebound"
	RegimeVolatile   = "volatile"
	RegimeQuiet      = "quiet"
)

// DistributionResult summarizes one release pass for a tier.
type DistributionResult struct {
	Tier         Tier                 `json:"tier"`
	Recipients   int                  `json:"recipients"`
	Distributed  int                  `json:"distributed"`
	SkippedQuota int                  `json:"skipped_quota"`
	BufferEmpty  bool                 `json:"buffer_empty"`
	ReleasedAt   time.Time            `json:"released_at"`
	Signals      []*DistributedSignal `json:"signals,omitempty"`
}

// TierStats is the per-tier operational snapshot exposed to dashboards.
type TierStats struct {
	Tier              Tier             `json:"tier"`
	IsRunning         bool             `json:"is_running"`
	BufferSize        int              `json:"buffer_size"`
	NextDropInMinutes float64          `json:"next_drop_in_minutes"`
	DropsToday        int              `json:"drops_today"`
	TopSignals        []BufferedSignal `json:"top_signals"`
}
