package gate

import (
	"sync"
	"testing"
)

func TestConcurrentUpdatesKeepBothFields(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := NewThresholdStore(Thresholds{
			MinRawConfidence: 50,
			Quality:          60,
			MLProbability:    0.40,
			WinRate:          45,
		})

		quality := 70.0
		winRate := 50.0
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Update(&quality, nil, nil)
		}()
		go func() {
			defer wg.Done()
			s.Update(nil, nil, &winRate)
		}()
		wg.Wait()

		got := s.Get()
		if got.Quality != 70 || got.WinRate != 50 {
			t.Fatalf("lost update: quality=%v win_rate=%v", got.Quality, got.WinRate)
		}
		if got.MLProbability != 0.40 {
			t.Fatalf("untouched field changed: %v", got.MLProbability)
		}
	}
}
