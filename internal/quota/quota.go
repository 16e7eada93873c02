// Package quota enforces per-user daily distribution limits.
//
// Periods are calendar-day aligned in UTC: a user's counter covers
// 00:00:00Z to 23:59:59Z and rollover happens lazily on the first access
// within a new day, never via a timer.
package quota

import (
	"time"

	"IgniteX/internal/domain/models"
)

// PeriodKey formats the UTC calendar day used to scope counters.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// PeriodStart returns the UTC midnight opening the period containing t.
func PeriodStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func statusOf(userID string, tier models.Tier, limit, used int) *models.QuotaStatus {
	if used > limit {
		used = limit
	}
	return &models.QuotaStatus{
		UserID:    userID,
		Tier:      tier,
		Limit:     limit,
		Used:      used,
		Remaining: limit - used,
	}
}
