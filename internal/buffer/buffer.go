package buffer

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
)

// AdmitResult is the admission policy outcome.
type AdmitResult int

const (
	// Admitted means the signal was stored with free capacity.
	Admitted AdmitResult = iota
	// AdmittedEvicted means the signal displaced the current minimum.
	AdmittedEvicted
	// Outranked means the buffer was full of higher-ranked signals and the
	// arrival was discarded. Policy outcome, not an error.
	Outranked
	// Duplicate means the candidate id is already buffered.
	Duplicate
)

// Buffer is the bounded, rank-ordered holding area for gate-passed
// candidates. Ordering is final quality score descending, ties broken by
// earliest buffered time so equally-good older signals are not starved.
// The buffer is tier-agnostic: tier eligibility is decided at distribution
// time, not at insertion.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	items    sigHeap
	byID     map[string]*entry
	metrics  domrepo.Metrics
	now      func() time.Time
}

type entry struct {
	sig   models.BufferedSignal
	index int
}

// Stats is the observability snapshot of the buffer.
type Stats struct {
	Size     int                     `json:"size"`
	Capacity int                     `json:"capacity"`
	Top      []models.BufferedSignal `json:"top"`
}

// Option configures the buffer.
type Option func(*Buffer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Buffer) { b.now = now }
}

// New creates a buffer with the given capacity.
func New(capacity int, metrics domrepo.Metrics, opts ...Option) *Buffer {
	if capacity <= 0 {
		capacity = 50
	}
	b := &Buffer{
		capacity: capacity,
		items:    make(sigHeap, 0, capacity),
		byID:     make(map[string]*entry, capacity),
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Admit applies the bounded admission policy: when full, the new signal
// displaces the current minimum only if it outranks it; otherwise the new
// signal itself is discarded. Returns the evicted signal when one was
// displaced.
func (b *Buffer) Admit(sig models.BufferedSignal) (AdmitResult, *models.BufferedSignal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sig.BufferedAt.IsZero() {
		sig.BufferedAt = b.now()
	}
	if _, ok := b.byID[sig.ID]; ok {
		// same candidate re-submitted; keep the existing entry
		return Duplicate, nil
	}

	if len(b.items) < b.capacity {
		e := &entry{sig: sig}
		heap.Push(&b.items, e)
		b.byID[sig.ID] = e
		b.metrics.RecordBuffered()
		b.metrics.RecordBufferSize(len(b.items))
		return Admitted, nil
	}

	worst := b.items.worst()
	if !ranksAbove(&sig, &worst.sig) {
		return Outranked, nil
	}
	evicted := worst.sig
	heap.Remove(&b.items, worst.index)
	delete(b.byID, evicted.ID)
	e := &entry{sig: sig}
	heap.Push(&b.items, e)
	b.byID[sig.ID] = e
	b.metrics.RecordBuffered()
	b.metrics.RecordBufferSize(len(b.items))
	return AdmittedEvicted, &evicted
}

// Top returns a copy of the highest-ranked signal without removing it.
func (b *Buffer) Top() (models.BufferedSignal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return models.BufferedSignal{}, false
	}
	return b.items[0].sig, true
}

// Take removes and returns the highest-ranked signal. Consumers must use
// Take rather than Top+Remove: popping under the lock is what keeps a
// candidate from being handed to two concurrent releases.
func (b *Buffer) Take() (models.BufferedSignal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return models.BufferedSignal{}, false
	}
	e := heap.Pop(&b.items).(*entry)
	delete(b.byID, e.sig.ID)
	b.metrics.RecordBufferSize(len(b.items))
	return e.sig, true
}

// PeekTop returns copies of up to n signals in rank order.
func (b *Buffer) PeekTop(n int) []models.BufferedSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.items) {
		n = len(b.items)
	}
	out := make([]models.BufferedSignal, 0, len(b.items))
	for _, e := range b.items {
		out = append(out, e.sig)
	}
	sort.Slice(out, func(i, j int) bool { return ranksAbove(&out[i], &out[j]) })
	return out[:n]
}

// Remove deletes the signal with the given candidate id. Returns false if
// it was not present (already consumed or evicted).
func (b *Buffer) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&b.items, e.index)
	delete(b.byID, id)
	b.metrics.RecordBufferSize(len(b.items))
	return true
}

// EvictExpired drops signals older than maxAge, returning how many were
// removed. Stale candidates are dropped even if never released.
func (b *Buffer) EvictExpired(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := b.now().Add(-maxAge)
	var stale []string
	for _, e := range b.items {
		if e.sig.BufferedAt.Before(cutoff) {
			stale = append(stale, e.sig.ID)
		}
	}
	for _, id := range stale {
		e := b.byID[id]
		heap.Remove(&b.items, e.index)
		delete(b.byID, id)
	}
	if len(stale) > 0 {
		b.metrics.RecordBufferSize(len(b.items))
	}
	return len(stale)
}

// Size returns the current number of buffered signals.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns the observability snapshot with a top-n preview.
func (b *Buffer) Stats(topN int) Stats {
	return Stats{
		Size:     b.Size(),
		Capacity: b.capacity,
		Top:      b.PeekTop(topN),
	}
}

// ranksAbove reports whether a outranks b: higher score first, then the
// earlier buffered signal.
func ranksAbove(a, b *models.BufferedSignal) bool {
	if a.FinalQualityScore != b.FinalQualityScore {
		return a.FinalQualityScore > b.FinalQualityScore
	}
	return a.BufferedAt.Before(b.BufferedAt)
}

// sigHeap is a max-heap: the root is the highest-ranked signal.
type sigHeap []*entry

func (h sigHeap) Len() int            { return len(h) }
func (h sigHeap) Less(i, j int) bool  { return ranksAbove(&h[i].sig, &h[j].sig) }
func (h sigHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *sigHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *sigHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// worst returns the lowest-ranked entry. Linear scan; the buffer is small.
func (h sigHeap) worst() *entry {
	w := h[0]
	for _, e := range h[1:] {
		if ranksAbove(&w.sig, &e.sig) {
			w = e
		}
	}
	return w
}
