package limiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Two workers racing for the same domain must never both be told
// "no wait needed": every reservation after the first has to inherit a
// strictly later slot.
func TestReserveSlotNoDoubleClaim(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewConcurrentSlotLimiterWithClock(fixedClock(base))

	const workers = 8
	const delay = time.Second

	waits := make([]time.Duration, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(slot int) {
			defer wg.Done()
			waits[slot] = l.ReserveSlot("www.gov.si", "193.2.1.1", delay)
		}(i)
	}
	wg.Wait()

	// Each wait must be a distinct multiple of delay: 0, 1s, 2s, ...
	seen := make(map[time.Duration]bool, workers)
	for _, w := range waits {
		assert.False(t, seen[w], "two workers claimed the same slot: %v", w)
		seen[w] = true
	}
	for i := 0; i < workers; i++ {
		assert.True(t, seen[time.Duration(i)*delay], "missing slot %d", i)
	}
}
