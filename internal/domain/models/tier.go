package models

import (
	"fmt"
	"time"
)

// Tier is a subscription level governing drop frequency and daily quota.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
	TierMax  Tier = "MAX"
)

// AllTiers lists tiers in ascending order of service level.
var AllTiers = []Tier{TierFree, TierPro, TierMax}

// ParseTier converts a string to a known tier.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierPro, TierMax:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier: %q", s)
}

// TierPolicy is the static per-tier configuration.
type TierPolicy struct {
	DropInterval time.Duration
	DailyQuota   int
	SignalTTL    time.Duration
}

// TierPolicies maps each tier to its policy.
type TierPolicies map[Tier]TierPolicy

// Validate checks that every tier has a policy and that the drop interval
// and daily quota are mutually consistent (quota drops fit in a day).
func (p TierPolicies) Validate() error {
	for _, tier := range AllTiers {
		pol, ok := p[tier]
		if !ok {
			return fmt.Errorf("tier %s: missing policy", tier)
		}
		if pol.DropInterval <= 0 {
			return fmt.Errorf("tier %s: drop_interval must be positive", tier)
		}
		if pol.DailyQuota <= 0 {
			return fmt.Errorf("tier %s: daily_quota must be positive", tier)
		}
		if pol.SignalTTL <= 0 {
			return fmt.Errorf("tier %s: signal_ttl must be positive", tier)
		}
		perDay := int((24 * time.Hour) / pol.DropInterval)
		if perDay != pol.DailyQuota {
			return fmt.Errorf("tier %s: drop_interval %s yields %d drops/day, daily_quota is %d",
				tier, pol.DropInterval, perDay, pol.DailyQuota)
		}
	}
	return nil
}

// QuotaStatus reports a user's consumption within the current period.
type QuotaStatus struct {
	UserID    string `json:"user_id"`
	Tier      Tier   `json:"tier"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}
