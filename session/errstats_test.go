package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStatsCountsConcurrently(t *testing.T) {
	stats := NewErrorStats()

	const workers, perWorker = 16, 250
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				stats.Inc(CategoryUnknownField)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(workers*perWorker), stats.Value(CategoryUnknownField))
	assert.Zero(t, stats.Value(CategoryFormat))

	snap := stats.Snapshot()
	assert.Len(t, snap, len(Categories()))
	assert.Equal(t, uint64(workers*perWorker), snap[CategoryUnknownField])

	stats.Reset()
	for _, c := range Categories() {
		assert.Zero(t, stats.Value(c), c.String())
	}
}

func TestErrorStatsNilIsInert(t *testing.T) {
	var stats *ErrorStats
	stats.Inc(CategoryEncode)
	stats.Reset()
	assert.Zero(t, stats.Value(CategoryEncode))
	assert.Len(t, stats.Snapshot(), len(Categories()))
}

func TestCategoryNames(t *testing.T) {
	want := []string{"unknown_field", "unknown_type", "format", "unreadable", "encode", "encode_failed"}
	for i, c := range Categories() {
		assert.Equal(t, want[i], c.String())
	}
	assert.Equal(t, "unknown", Category(200).String())
}
