package gate

import (
	"sync"
	"sync/atomic"
)

// Thresholds is an immutable snapshot of the runtime-tunable gate settings.
// Readers never observe a partially updated set; writers swap the whole
// snapshot atomically.
type Thresholds struct {
	MinRawConfidence float64 `json:"min_raw_confidence"` // 0-100, plausibility floor
	Quality          float64 `json:"quality"`            // 0-100, composite score floor
	MLProbability    float64 `json:"ml_probability"`     // 0-1
	WinRate          float64 `json:"win_rate"`           // 0-100, strategy historical win rate floor
}

// ThresholdStore holds the current threshold snapshot. Reads are lock-free;
// the mutex serializes Update's read-modify-write so concurrent partial
// updates cannot lose each other's fields.
type ThresholdStore struct {
	mu sync.Mutex
	v  atomic.Pointer[Thresholds]
}

func NewThresholdStore(initial Thresholds) *ThresholdStore {
	s := &ThresholdStore{}
	s.v.Store(&initial)
	return s
}

// Get returns the current snapshot.
func (s *ThresholdStore) Get() Thresholds {
	return *s.v.Load()
}

// Set replaces the whole snapshot.
func (s *ThresholdStore) Set(t Thresholds) {
	s.v.Store(&t)
}

// Update replaces only the provided fields and returns the new snapshot.
// Changes apply to candidates evaluated after the swap; buffered signals
// are not re-evaluated.
func (s *ThresholdStore) Update(quality, mlProbability, winRate *float64) Thresholds {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := *s.v.Load()
	if quality != nil {
		cur.Quality = *quality
	}
	if mlProbability != nil {
		cur.MLProbability = *mlProbability
	}
	if winRate != nil {
		cur.WinRate = *winRate
	}
	s.v.Store(&cur)
	return cur
}
